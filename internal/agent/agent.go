// Package agent implements the Agent exploration loop: the single-threaded
// pick → rollback → pre-check → act → observe → post-check → record cycle that
// drives a World through the reachable (state, action) space until its Strategy
// is exhausted or a budget is reached. Per-step logging attaches slog fields to
// every iteration.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/venomqa/venomqa/internal/core"
	"github.com/venomqa/venomqa/internal/ctxstore"
	"github.com/venomqa/venomqa/internal/graph"
	"github.com/venomqa/venomqa/internal/invariant"
	"github.com/venomqa/venomqa/internal/metrics"
	"github.com/venomqa/venomqa/internal/report/live"
	"github.com/venomqa/venomqa/internal/result"
	"github.com/venomqa/venomqa/internal/strategy"
	"github.com/venomqa/venomqa/internal/world"
	"github.com/venomqa/venomqa/pkg/logger"
)

// Options carries the configuration recognized by the core.
type Options struct {
	MaxSteps       int     // upper bound on loop iterations; 0 means a default of 1000
	MaxDepth       int     // upper bound on transitions from the initial state; 0 means unbounded
	CoverageTarget float64 // stop early once this action-coverage fraction is reached; 0 means none
	FailFast       bool    // stop after the first CRITICAL violation
	Seed           int64
}

func (o Options) maxSteps() int {
	if o.MaxSteps <= 0 {
		return 1000
	}
	return o.MaxSteps
}

// Agent owns one exploration run end to end. Two Agents must never share a
// World or adapter.
type Agent struct {
	world     *world.World
	graph     *graph.Graph
	strategy  strategy.Strategy
	evaluator *invariant.Evaluator
	opts      Options
	logger    *slog.Logger
	runLog    *slog.Logger // logger bound to the current run's ID/strategy/seed
	metrics   *metrics.CoreMetrics
	depth     map[string]int
	currentID string
	live      *live.Hub
}

// SetLiveHub attaches an optional WebSocket progress feed; every dispatched
// step publishes a StepEvent to it. Nil (the default) disables the feed
// entirely, at no cost to the loop.
func (a *Agent) SetLiveHub(h *live.Hub) { a.live = h }

func (a *Agent) publish(ev live.StepEvent) {
	if a.live != nil {
		a.live.Publish(ev)
	}
}

// New constructs an Agent. Strategy/adapter incompatibility and duplicate
// action/invariant names are detected here, at construction time, before
// exploration ever begins.
func New(w *world.World, actions []*core.Action, invariants []*core.Invariant, strat strategy.Strategy, opts Options, log *slog.Logger) (*Agent, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := w.CheckRestoreDiscipline(strat.RequiresArbitraryOrder()); err != nil {
		return nil, err
	}

	g := graph.New()
	for _, a := range actions {
		if err := g.RegisterAction(a); err != nil {
			return nil, err
		}
	}

	eval, err := invariant.New(invariants, log)
	if err != nil {
		return nil, err
	}

	return &Agent{
		world:     w,
		graph:     g,
		strategy:  strat,
		evaluator: eval,
		opts:      opts,
		logger:    log.With("component", "agent"),
		metrics:   metrics.DefaultRegistry().Core(),
		depth:     make(map[string]int),
	}, nil
}

// SetMetrics overrides the Prometheus collectors the Agent reports to, e.g. to
// point at the Core metrics of a NewRegistry(...) with its own namespace.
func (a *Agent) SetMetrics(m *metrics.CoreMetrics) { a.metrics = m }

// Graph exposes the Agent's Graph, e.g. for a live-progress reporter to inspect
// mid-run (read-only queries are safe; Graph guards itself with a RWMutex).
func (a *Agent) Graph() *graph.Graph { return a.graph }

// Run drives the exploration loop to completion and returns the accumulated
// ExplorationResult. A non-nil error means an adapter failed to begin, to
// observe, to checkpoint (CheckpointError) or to roll back (RollbackError);
// these are terminal, and the returned result reflects only the steps
// completed before the failure. Errors and panics raised by an Action's
// Execute are not returned here: World.Act records them on the ActionResult.
func (a *Agent) Run(ctx context.Context) (*result.ExplorationResult, error) {
	started := time.Now()
	actionNames := make([]string, 0, len(a.graph.Actions()))
	for _, act := range a.graph.Actions() {
		actionNames = append(actionNames, act.Name)
	}
	res := result.New(a.graph, a.opts.Seed, actionNames)
	res.RunID = logger.NewRunID()
	a.runLog = logger.ForRun(a.logger, res.RunID, a.strategy.Name(), a.opts.Seed)
	a.runLog.Info("exploration starting", "actions", len(actionNames), "max_steps", a.opts.maxSteps())

	// Registered before Begin so a mid-Begin failure still releases whatever
	// adapters did come up; End is a no-op on an adapter that never began.
	defer func() {
		if endErr := a.world.End(ctx); endErr != nil {
			a.runLog.Error("teardown reported errors", "error", endErr)
		}
	}()
	if err := a.world.Begin(ctx); err != nil {
		return res, err
	}

	initialObs, err := a.world.Observe(ctx)
	if err != nil {
		return res, fmt.Errorf("observing initial state: %w", err)
	}
	initial, _ := a.graph.AddState(initialObs)
	a.graph.SetInitial(initial.ID)
	a.depth[initial.ID] = 0
	a.currentID = initial.ID

	cpStarted := time.Now()
	rootCP, err := a.world.Checkpoint(ctx, "root")
	a.observeCheckpointDuration(cpStarted)
	if err != nil {
		return res, err
	}
	a.graph.AttachCheckpoint(initial.ID, rootCP)
	a.strategy.Notify(initial.ID, a.graph.ValidActions(initial, a.world.Context()))

	for step := 0; step < a.opts.maxSteps(); step++ {
		if ctx.Err() != nil {
			break
		}
		if a.opts.CoverageTarget > 0 && res.CoverageFraction() >= a.opts.CoverageTarget {
			break
		}

		pair, ok := a.strategy.Pick(a.graph)
		if !ok {
			break
		}

		if a.opts.MaxDepth > 0 && a.depth[pair.StateID]+1 > a.opts.MaxDepth {
			a.graph.MarkExplored(pair.StateID, pair.ActionName)
			continue
		}

		if err := a.dispatch(ctx, step, pair, res); err != nil {
			return res, err
		}

		if a.opts.FailFast && res.HasCriticalViolation() {
			break
		}
	}

	res.Finish(started)
	a.runLog.Info("exploration finished",
		"states", res.Counters.StatesVisited,
		"transitions", res.Counters.TransitionsTaken,
		"violations", len(res.Violations),
	)
	a.publish(live.StepEvent{Type: "run_finished", Message: fmt.Sprintf("%d violations, %d states", len(res.Violations), res.Counters.StatesVisited)})
	return res, nil
}

// dispatch runs one full step of the loop for a single picked pair.
func (a *Agent) dispatch(ctx context.Context, step int, pair graph.Pair, res *result.ExplorationResult) error {
	stepLog := logger.ForStep(a.runLog, step, pair.StateID, pair.ActionName)

	s, ok := a.graph.State(pair.StateID)
	if !ok {
		a.graph.MarkExplored(pair.StateID, pair.ActionName)
		return nil
	}

	if a.currentID != pair.StateID {
		if s.Checkpoint == nil {
			a.graph.MarkExplored(pair.StateID, pair.ActionName)
			return nil
		}
		rbStarted := time.Now()
		err := a.world.Rollback(ctx, s.Checkpoint)
		a.observeCheckpointDuration(rbStarted)
		if err != nil {
			return err
		}
		stepLog.Debug("rolled back", "checkpoint", s.Checkpoint.ID)
		a.currentID = pair.StateID
		a.checkRollbackCoherence(ctx, s, res)
	}

	action, ok := a.graph.ActionByName(pair.ActionName)
	if !ok {
		a.graph.MarkExplored(pair.StateID, pair.ActionName)
		return nil
	}

	a.publish(live.StepEvent{Type: "step_started", StateID: pair.StateID, Action: pair.ActionName, Phase: "pre_action"})

	preViolations, preChecked := a.evaluator.Evaluate(ctx, core.PreAction, a.world, pair.StateID, pair.ActionName, a.graph)
	res.RecordViolations(preViolations...)
	res.RecordInvariantsChecked(preChecked)
	a.recordViolationMetrics(preViolations)
	a.notifyNewViolations(pair, preViolations)
	for _, v := range preViolations {
		stepLog.Warn("violation recorded", "invariant", v.InvariantName, "severity", v.Severity.String(), "phase", "pre_action")
	}

	actStarted := time.Now()
	actionResult, err := a.world.Act(ctx, action, a.world.Context())
	if a.metrics != nil {
		a.metrics.ActionDuration.WithLabelValues(pair.ActionName).Observe(time.Since(actStarted).Seconds())
	}
	if err != nil {
		return err
	}

	if actionResult.Skipped() {
		stepLog.Debug("action skipped")
		a.graph.MarkExplored(pair.StateID, pair.ActionName)
		a.world.Context().RecordExecuted(pair.ActionName, actionResult.Status)
		return nil
	}
	a.world.Context().RecordExecuted(pair.ActionName, actionResult.Status)

	obs, err := a.world.Observe(ctx)
	if err != nil {
		return fmt.Errorf("observing after %q: %w", pair.ActionName, err)
	}
	newState, created := a.graph.AddState(obs)
	if created && a.metrics != nil {
		a.metrics.StatesTotal.Inc()
	}

	if newState.Checkpoint == nil {
		cpStarted := time.Now()
		cp, err := a.world.Checkpoint(ctx, pair.ActionName)
		a.observeCheckpointDuration(cpStarted)
		if err != nil {
			return err
		}
		a.graph.AttachCheckpoint(newState.ID, cp)
	}

	nextDepth := a.depth[pair.StateID] + 1
	if existing, ok := a.depth[newState.ID]; !ok || nextDepth < existing {
		a.depth[newState.ID] = nextDepth
	}
	a.currentID = newState.ID

	a.graph.AddTransition(core.Transition{
		FromStateID: pair.StateID,
		ActionName:  pair.ActionName,
		ToStateID:   newState.ID,
		Result:      actionResult,
		Timestamp:   time.Now(),
	})
	res.RecordTransition(pair.ActionName)
	stepLog.Debug("transition recorded", "to_state", newState.ID, "new_state", created)
	if a.metrics != nil {
		a.metrics.TransitionsTotal.Inc()
	}

	postViolations, postChecked := a.evaluator.Evaluate(ctx, core.PostAction, a.world, newState.ID, pair.ActionName, a.graph)
	res.RecordViolations(postViolations...)
	res.RecordInvariantsChecked(postChecked)
	a.recordViolationMetrics(postViolations)
	a.notifyNewViolations(pair, postViolations)
	for _, v := range postViolations {
		stepLog.Warn("violation recorded", "invariant", v.InvariantName, "severity", v.Severity.String())
		a.publish(live.StepEvent{Type: "violation", StateID: v.StateID, Action: v.ActionName, Message: v.Message})
	}

	if created {
		a.strategy.Notify(newState.ID, a.graph.ValidActions(newState, a.world.Context()))
	}
	a.publish(live.StepEvent{Type: "step_finished", StateID: newState.ID, Action: pair.ActionName, Phase: "post_action"})
	return nil
}

// checkRollbackCoherence observes the World right after a rollback and
// compares against the observations that produced this State. A mismatch
// means something outside the Agent's control (e.g. a background worker on
// the SUT) mutated state between the original observation and this rollback.
// This is recorded as a non-fatal warning, never a CheckpointError/
// RollbackError — the rollback itself succeeded.
func (a *Agent) checkRollbackCoherence(ctx context.Context, s core.State, res *result.ExplorationResult) {
	obs, err := a.world.Observe(ctx)
	if err != nil {
		return
	}
	if !core.ObservationsEqual(obs, s.Observations) {
		msg := fmt.Sprintf("state %s diverged after rollback: observation no longer matches the one that produced this state (possible SUT background mutation)", s.ID)
		res.Warnings = append(res.Warnings, msg)
		a.runLog.Warn("rollback coherence mismatch", "state", s.ID)
	}

	if s.Checkpoint != nil {
		if drift := ctxstore.Diff(s.Checkpoint.ContextSnapshot, a.world.Context()); !ctxstore.Empty(drift) {
			a.runLog.Error("context coherence violated after rollback", "state", s.ID, "changed_keys", len(drift))
		}
	}
}

// observeCheckpointDuration records the elapsed time of a World-level
// checkpoint or rollback, which spans every adapter the World holds atomically.
func (a *Agent) observeCheckpointDuration(started time.Time) {
	if a.metrics == nil {
		return
	}
	a.metrics.CheckpointDuration.WithLabelValues("world").Observe(time.Since(started).Seconds())
}

func (a *Agent) recordViolationMetrics(violations []core.Violation) {
	if a.metrics == nil {
		return
	}
	for _, v := range violations {
		a.metrics.ViolationsTotal.WithLabelValues(v.Severity.String()).Inc()
	}
}

func (a *Agent) notifyNewViolations(pair graph.Pair, violations []core.Violation) {
	for range violations {
		a.strategy.NotifyViolation(pair)
	}
}
