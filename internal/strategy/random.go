package strategy

import (
	"math/rand"

	"github.com/venomqa/venomqa/internal/core"
	"github.com/venomqa/venomqa/internal/graph"
)

// Random picks uniformly at random from the unexplored frontier, using a seeded
// RNG for reproducibility. A seed of 0 is a valid, deterministic seed in its
// own right — callers that want nondeterministic behavior pass a seed derived
// from wall-clock time themselves before constructing the Strategy.
type Random struct {
	rng     *rand.Rand
	pending []graph.Pair
}

func NewRandom(seed int64) *Random {
	return &Random{rng: rand.New(rand.NewSource(seed))}
}

func (r *Random) Name() string                 { return "random" }
func (r *Random) RequiresArbitraryOrder() bool { return true }
func (r *Random) NotifyViolation(graph.Pair)   {}

func (r *Random) Notify(stateID string, validActions []*core.Action) {
	for _, a := range validActions {
		r.pending = append(r.pending, graph.Pair{StateID: stateID, ActionName: a.Name})
	}
}

func (r *Random) Pick(g *graph.Graph) (graph.Pair, bool) {
	live := r.pending[:0:0]
	for _, p := range r.pending {
		if stillValid(g, p) {
			live = append(live, p)
		}
	}
	r.pending = live
	if len(r.pending) == 0 {
		return graph.Pair{}, false
	}
	idx := r.rng.Intn(len(r.pending))
	chosen := r.pending[idx]
	r.pending = append(r.pending[:idx], r.pending[idx+1:]...)
	return chosen, true
}
