package strategy

import (
	"github.com/venomqa/venomqa/internal/core"
	"github.com/venomqa/venomqa/internal/graph"
)

// BFS explores the frontier in FIFO/insertion order. It is restricted to
// arbitrary-order adapters: a breadth-first search routinely rolls back to a
// checkpoint older than the most recently taken one, which a stack-scoped
// savepoint adapter cannot service.
type BFS struct {
	queue []graph.Pair
}

func NewBFS() *BFS { return &BFS{} }

func (b *BFS) Name() string                   { return "bfs" }
func (b *BFS) RequiresArbitraryOrder() bool   { return true }
func (b *BFS) NotifyViolation(graph.Pair)     {}

func (b *BFS) Notify(stateID string, validActions []*core.Action) {
	for _, a := range validActions {
		b.queue = append(b.queue, graph.Pair{StateID: stateID, ActionName: a.Name})
	}
}

func (b *BFS) Pick(g *graph.Graph) (graph.Pair, bool) {
	for len(b.queue) > 0 {
		p := b.queue[0]
		b.queue = b.queue[1:]
		if stillValid(g, p) {
			return p, true
		}
	}
	return graph.Pair{}, false
}
