package strategy

import (
	"github.com/venomqa/venomqa/internal/core"
	"github.com/venomqa/venomqa/internal/graph"
)

// DFS explores the frontier LIFO, last-inserted-first. Its backtracking always
// returns to the most recently taken checkpoint, so it is the one strategy
// compatible with stack-scoped (savepoint) adapters as well as arbitrary-order
// ones.
type DFS struct {
	stack []graph.Pair
}

func NewDFS() *DFS { return &DFS{} }

func (d *DFS) Name() string                 { return "dfs" }
func (d *DFS) RequiresArbitraryOrder() bool { return false }
func (d *DFS) NotifyViolation(graph.Pair)   {}

func (d *DFS) Notify(stateID string, validActions []*core.Action) {
	for _, a := range validActions {
		d.stack = append(d.stack, graph.Pair{StateID: stateID, ActionName: a.Name})
	}
}

func (d *DFS) Pick(g *graph.Graph) (graph.Pair, bool) {
	for len(d.stack) > 0 {
		last := len(d.stack) - 1
		p := d.stack[last]
		d.stack = d.stack[:last]
		if stillValid(g, p) {
			return p, true
		}
	}
	return graph.Pair{}, false
}
