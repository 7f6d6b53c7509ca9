package strategy

import (
	"math/rand"

	"github.com/venomqa/venomqa/internal/core"
	"github.com/venomqa/venomqa/internal/graph"
)

// Weighted picks from the frontier via weighted random selection keyed by
// action name, defaulting absent weights to 1.0. Like Random it is seeded for
// reproducibility.
type Weighted struct {
	weights map[string]float64
	rng     *rand.Rand
	pending []graph.Pair
}

func NewWeighted(weights map[string]float64, seed int64) *Weighted {
	return &Weighted{weights: weights, rng: rand.New(rand.NewSource(seed))}
}

func (w *Weighted) Name() string                 { return "weighted" }
func (w *Weighted) RequiresArbitraryOrder() bool { return true }
func (w *Weighted) NotifyViolation(graph.Pair)   {}

func (w *Weighted) Notify(stateID string, validActions []*core.Action) {
	for _, a := range validActions {
		w.pending = append(w.pending, graph.Pair{StateID: stateID, ActionName: a.Name})
	}
}

func (w *Weighted) weightOf(actionName string) float64 {
	if v, ok := w.weights[actionName]; ok {
		return v
	}
	return 1.0
}

func (w *Weighted) Pick(g *graph.Graph) (graph.Pair, bool) {
	live := w.pending[:0:0]
	for _, p := range w.pending {
		if stillValid(g, p) {
			live = append(live, p)
		}
	}
	w.pending = live
	if len(w.pending) == 0 {
		return graph.Pair{}, false
	}

	var total float64
	for _, p := range w.pending {
		total += w.weightOf(p.ActionName)
	}
	if total <= 0 {
		return graph.Pair{}, false
	}
	target := w.rng.Float64() * total
	var acc float64
	chosenIdx := len(w.pending) - 1
	for i, p := range w.pending {
		acc += w.weightOf(p.ActionName)
		if target < acc {
			chosenIdx = i
			break
		}
	}
	chosen := w.pending[chosenIdx]
	w.pending = append(w.pending[:chosenIdx], w.pending[chosenIdx+1:]...)
	return chosen, true
}
