package strategy

import (
	"github.com/venomqa/venomqa/internal/core"
	"github.com/venomqa/venomqa/internal/graph"
)

// CoverageGuided orders the frontier by global action-execution count,
// ascending — it always prefers an action name it has dispatched the fewest
// times so far, breaking ties by discovery order. This biases exploration
// toward actions the run has under-exercised, which is the policy's whole
// purpose: pushing action coverage up.
type CoverageGuided struct {
	pending []graph.Pair
}

func NewCoverageGuided() *CoverageGuided { return &CoverageGuided{} }

func (c *CoverageGuided) Name() string                 { return "coverage" }
func (c *CoverageGuided) RequiresArbitraryOrder() bool { return true }
func (c *CoverageGuided) NotifyViolation(graph.Pair)   {}

func (c *CoverageGuided) Notify(stateID string, validActions []*core.Action) {
	for _, a := range validActions {
		c.pending = append(c.pending, graph.Pair{StateID: stateID, ActionName: a.Name})
	}
}

func (c *CoverageGuided) Pick(g *graph.Graph) (graph.Pair, bool) {
	live := c.pending[:0:0]
	for _, p := range c.pending {
		if stillValid(g, p) {
			live = append(live, p)
		}
	}
	c.pending = live
	if len(c.pending) == 0 {
		return graph.Pair{}, false
	}

	counts := actionExecutionCounts(g)
	best := 0
	for i := 1; i < len(c.pending); i++ {
		if counts[c.pending[i].ActionName] < counts[c.pending[best].ActionName] {
			best = i
		}
	}
	chosen := c.pending[best]
	c.pending = append(c.pending[:best], c.pending[best+1:]...)
	return chosen, true
}

func actionExecutionCounts(g *graph.Graph) map[string]int {
	counts := make(map[string]int)
	for _, t := range g.Transitions() {
		counts[t.ActionName]++
	}
	return counts
}
