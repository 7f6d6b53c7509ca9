// Package invariant evaluates core.Invariant predicates around each action
// dispatch and turns their outcomes into core.Violation records. The tagged
// pass/fail/fail-with-message result keeps control flow explicit: a failed
// check is data, not a raised error.
package invariant

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/venomqa/venomqa/internal/core"
	"github.com/venomqa/venomqa/internal/graph"
)

// Evaluator runs a fixed set of Invariants at a given Timing phase and reports
// the resulting Violations.
type Evaluator struct {
	invariants []*core.Invariant
	logger     *slog.Logger
}

// New builds an Evaluator. Duplicate invariant names are a ConfigurationError,
// matching the Graph's own duplicate-action rejection.
func New(invariants []*core.Invariant, logger *slog.Logger) (*Evaluator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	seen := make(map[string]bool, len(invariants))
	for _, inv := range invariants {
		if seen[inv.Name] {
			return nil, &core.ConfigurationError{Reason: "duplicate invariant name: " + inv.Name}
		}
		seen[inv.Name] = true
	}
	sorted := append([]*core.Invariant(nil), invariants...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return &Evaluator{invariants: sorted, logger: logger}, nil
}

// appliesAt reports whether inv should run during phase.
func appliesAt(inv *core.Invariant, phase core.Timing) bool {
	return inv.Timing == phase || inv.Timing == core.BothTiming
}

// Evaluate runs every Invariant scheduled for phase against w, returning
// one Violation per invariant that failed or errored. stateID is the state
// that triggered this phase (pre-action state for PRE_ACTION, post-action
// state for POST_ACTION); actionName is the action being evaluated around.
// g supplies the reproduction path via ShortestPath.
func (e *Evaluator) Evaluate(ctx context.Context, phase core.Timing, w core.WorldView, stateID, actionName string, g *graph.Graph) (violations []core.Violation, checked int) {
	for _, inv := range e.invariants {
		if !appliesAt(inv, phase) {
			continue
		}
		checked++
		outcome, checkErr := e.run(ctx, inv, w)
		if checkErr == nil && outcome.Result == core.CheckPass {
			continue
		}

		message := outcome.Message
		if checkErr != nil {
			message = checkErr.Error()
		} else if outcome.Result == core.CheckFail {
			message = fmt.Sprintf("invariant %q failed", inv.Name)
		}

		violations = append(violations, core.Violation{
			InvariantName: inv.Name,
			Severity:      inv.Severity,
			Message:       message,
			StateID:       stateID,
			ActionName:    actionName,
			ReproPath:     g.ShortestPath(stateID),
			Timestamp:     time.Now(),
		})
	}
	return violations, checked
}

// run invokes inv.Check, recovering a panic and treating it identically to a
// returned error.
func (e *Evaluator) run(ctx context.Context, inv *core.Invariant, w core.WorldView) (outcome core.CheckOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &core.InvariantCheckError{Invariant: inv.Name, Cause: fmt.Errorf("panic: %v", r)}
		}
	}()
	outcome, checkErr := inv.Check(ctx, w)
	if checkErr != nil {
		return core.CheckOutcome{}, &core.InvariantCheckError{Invariant: inv.Name, Cause: checkErr}
	}
	return outcome, nil
}
