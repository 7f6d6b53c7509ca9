// Package strategy implements the exploration policies: BFS, DFS, Random,
// CoverageGuided, Weighted, and MCTS. Each is a small, self-contained
// frontier-ordering policy that consumes Graph discovery notifications and
// produces the next (state, action) pair for the Agent to dispatch. The shared
// bookkeeping (live-validity re-checking against the Graph) lives here;
// individual files hold only the ordering policy.
package strategy

import (
	"github.com/venomqa/venomqa/internal/core"
	"github.com/venomqa/venomqa/internal/graph"
)

// Strategy is the exploration policy contract.
type Strategy interface {
	// Name identifies the strategy, e.g. for config validation and logs.
	Name() string

	// RequiresArbitraryOrder reports whether this strategy may restore to a
	// non-most-recent checkpoint, which is forbidden against stack-scoped
	// adapters. DFS is the only strategy that answers false: its LIFO backtracking
	// always restores to the most recently taken checkpoint first, matching a
	// savepoint stack's own discipline.
	RequiresArbitraryOrder() bool

	// Pick returns the next (state, action) pair to explore, or ok=false when the
	// strategy has nothing left to offer (its frontier is dry).
	Pick(g *graph.Graph) (pair graph.Pair, ok bool)

	// Notify is called whenever the Graph adds a canonical state — at
	// initialization for the root state, and subsequently for every newly
	// discovered state. validActions is the set computed against that state's own
	// context snapshot.
	Notify(stateID string, validActions []*core.Action)

	// NotifyViolation informs the strategy that dispatching pair produced a
	// violation. Only MCTS uses this (reward backpropagation); other strategies
	// ignore it.
	NotifyViolation(pair graph.Pair)
}

// stillValid re-derives whether pair is still a legal, unexplored dispatch at
// Pick time: the Graph's explored/call-count bookkeeping may have moved on
// since the pair was queued (e.g. a sibling path exhausted its max_calls
// budget). Re-checking here, rather than trusting the queued snapshot, keeps
// every strategy correct without duplicating Graph's filtering logic.
func stillValid(g *graph.Graph, p graph.Pair) bool {
	if g.IsExplored(p.StateID, p.ActionName) {
		return false
	}
	s, ok := g.State(p.StateID)
	if !ok {
		return false
	}
	ctx := core.NewContext()
	if s.Checkpoint != nil && s.Checkpoint.ContextSnapshot != nil {
		ctx = s.Checkpoint.ContextSnapshot
	}
	for _, a := range g.ValidActions(s, ctx) {
		if a.Name == p.ActionName {
			return true
		}
	}
	return false
}
