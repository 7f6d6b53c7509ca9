// Package result defines ExplorationResult: the final artifact an Agent run
// produces. It depends on both internal/core and internal/graph, which is why
// it cannot live in internal/core itself (core must stay free of a Graph
// dependency so lower layers never import back up the stack).
package result

import (
	"time"

	"github.com/venomqa/venomqa/internal/core"
	"github.com/venomqa/venomqa/internal/graph"
)

// Counters tallies the run-level statistics reported alongside the graph and
// violation list.
type Counters struct {
	StatesVisited     int
	TransitionsTaken  int
	InvariantsChecked int
	DurationMS        int64
}

// ExplorationResult is what the Agent returns. Reporters
// (console/HTML/JSON/JUnit/Markdown) consume this; their formats are not part
// of the core contract.
type ExplorationResult struct {
	// RunID is stamped on every log line of the run and is the run key the
	// violation archive records findings under.
	RunID          string
	Graph          *graph.Graph
	Violations     []core.Violation
	Counters       Counters
	ActionCoverage map[string]bool
	Seed           int64
	Warnings       []string
}

// CoverageFraction returns the proportion of registered actions that were
// executed at least once, used to evaluate the coverage_target stop condition.
func (r *ExplorationResult) CoverageFraction() float64 {
	if len(r.ActionCoverage) == 0 {
		return 1.0
	}
	covered := 0
	for _, hit := range r.ActionCoverage {
		if hit {
			covered++
		}
	}
	return float64(covered) / float64(len(r.ActionCoverage))
}

// HasCriticalViolation reports whether any recorded Violation is
// CRITICAL-severity, used by the Agent's fail_fast policy.
func (r *ExplorationResult) HasCriticalViolation() bool {
	for _, v := range r.Violations {
		if v.Severity == core.SeverityCritical {
			return true
		}
	}
	return false
}

// ExitStatus encodes the CLI exit-status discipline: 0 = no violations, 1 =
// violations present. Configuration and infrastructure failures (2, 3) are
// surfaced as the error returned by agent.New or alongside the partial result
// from Agent.Run, and are mapped by the caller, not here.
func (r *ExplorationResult) ExitStatus() int {
	if len(r.Violations) > 0 {
		return 1
	}
	return 0
}

// New builds an empty ExplorationResult for a run started against g, seeded
// with seed and coverage tracking for the given action names.
func New(g *graph.Graph, seed int64, actionNames []string) *ExplorationResult {
	coverage := make(map[string]bool, len(actionNames))
	for _, n := range actionNames {
		coverage[n] = false
	}
	return &ExplorationResult{
		Graph:          g,
		ActionCoverage: coverage,
		Seed:           seed,
	}
}

// RecordTransition updates counters and coverage after a transition is
// dispatched and recorded into the Graph.
func (r *ExplorationResult) RecordTransition(actionName string) {
	r.Counters.TransitionsTaken++
	r.ActionCoverage[actionName] = true
}

// RecordViolations appends v to the violation list; violations are append-only
// for the lifetime of a run.
func (r *ExplorationResult) RecordViolations(v ...core.Violation) {
	r.Violations = append(r.Violations, v...)
}

// RecordInvariantsChecked adds n to the total invariant-evaluation counter,
// independent of how many of those evaluations produced a violation.
func (r *ExplorationResult) RecordInvariantsChecked(n int) {
	r.Counters.InvariantsChecked += n
}

// Finish stamps the final states-visited count and run duration.
func (r *ExplorationResult) Finish(started time.Time) {
	r.Counters.StatesVisited = r.Graph.StateCount()
	r.Counters.DurationMS = time.Since(started).Milliseconds()
}
