// Package world implements the World: the union of the API client, a named
// set of Rollbackable adapters, and the Context. It orchestrates
// checkpoint/rollback/observe across adapters in deterministic order (try
// each adapter in a fixed order, stop and report on the first failure)
// generalized from "pick one working backend" to "every adapter must
// succeed, atomically, every time".
package world

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/venomqa/venomqa/internal/core"
)

// World owns one non-rollbackable API client, a named set of Rollbackable
// adapters, and the live Context.
type World struct {
	api      core.APIClient
	adapters map[string]core.Rollbackable
	names    []string // deterministic iteration order (sorted at construction)
	ctx      *core.Context
	logger   *slog.Logger
}

// New constructs a World. Adapter iteration order is the sort order of the
// adapter names, fixed for the lifetime of the World so every checkpoint and
// rollback walks adapters in the same deterministic order.
func New(api core.APIClient, adapters map[string]core.Rollbackable, logger *slog.Logger) *World {
	if logger == nil {
		logger = slog.Default()
	}
	names := make([]string, 0, len(adapters))
	for n := range adapters {
		names = append(names, n)
	}
	sort.Strings(names)
	return &World{
		api:      api,
		adapters: adapters,
		names:    names,
		ctx:      core.NewContext(),
		logger:   logger.With("component", "world"),
	}
}

func (w *World) Context() *core.Context { return w.ctx }

func (w *World) API() core.APIClient { return w.api }

func (w *World) AdapterNames() []string {
	out := make([]string, len(w.names))
	copy(out, w.names)
	return out
}

func (w *World) Adapter(name string) (any, bool) {
	a, ok := w.adapters[name]
	return a, ok
}

// RollbackableAdapter exposes the typed adapter, for code (the Agent,
// strategy-compatibility checks) that needs Rollbackable methods rather than
// the WorldView's untyped Adapter lookup.
func (w *World) RollbackableAdapter(name string) (core.Rollbackable, bool) {
	a, ok := w.adapters[name]
	return a, ok
}

// Begin calls Begin on every adapter, in deterministic order. If any fails,
// the already-begun adapters are left as-is and the caller aborts the run
// before taking any checkpoint; End still runs against every adapter on the
// way out.
func (w *World) Begin(ctx context.Context) error {
	for _, name := range w.names {
		if err := w.adapters[name].Begin(ctx); err != nil {
			return &core.ConfigurationError{Reason: fmt.Sprintf("adapter %q failed to begin", name), Cause: err}
		}
	}
	return nil
}

// End calls End on every adapter, in deterministic order, continuing past
// individual failures so every adapter gets a chance to discard its mutations;
// the first error encountered (if any) is returned after all adapters have been
// asked to end.
func (w *World) End(ctx context.Context) error {
	var firstErr error
	for _, name := range w.names {
		if err := w.adapters[name].End(ctx); err != nil {
			w.logger.Error("adapter failed to end cleanly", "adapter", name, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("adapter %q: %w", name, err)
			}
		}
	}
	return firstErr
}

// Act invokes action.Execute against the API client and Context. Panics and
// errors from Execute are caught and wrapped into an errored ActionResult; the
// path continues.
func (w *World) Act(ctx context.Context, action *core.Action, vars *core.Context) (result *core.ActionResult, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result = &core.ActionResult{
				Status:  core.ActionErrored,
				Elapsed: time.Since(start),
				Err:     &core.ActionExecutionError{Action: action.Name, Cause: fmt.Errorf("panic: %v", r)},
			}
			err = nil
		}
	}()

	w.logger.Debug("dispatching action", "action", action.Name)
	result, execErr := action.Execute(ctx, w.api, vars)
	elapsed := time.Since(start)
	if execErr != nil {
		return &core.ActionResult{
			Status:  core.ActionErrored,
			Elapsed: elapsed,
			Err:     &core.ActionExecutionError{Action: action.Name, Cause: execErr},
		}, nil
	}
	if result == nil {
		result = &core.ActionResult{Status: core.ActionOK}
	}
	if result.Elapsed == 0 {
		result.Elapsed = elapsed
	}
	return result, nil
}

// Checkpoint walks adapters in deterministic order, capturing one child handle
// per adapter plus a Context snapshot. If any adapter fails, already captured
// children carry no external resource that must be released in this design
// (every adapter's checkpoint handle is a plain in-process value, not an
// external lock) so "released" reduces to "discarded"; no partial World-level
// Checkpoint is ever returned.
func (w *World) Checkpoint(ctx context.Context, name string) (*core.Checkpoint, error) {
	children := make(map[string]core.SystemCheckpoint, len(w.names))
	for _, adapterName := range w.names {
		child, err := w.adapters[adapterName].Checkpoint(ctx, name)
		if err != nil {
			return nil, &core.CheckpointError{Adapter: adapterName, Cause: err}
		}
		children[adapterName] = child
	}
	return &core.Checkpoint{
		ID:              uuid.NewString(),
		Name:            name,
		Children:        children,
		ContextSnapshot: w.ctx.Snapshot(),
		CreatedAt:       time.Now(),
	}, nil
}

// Rollback restores every adapter to its child handle and restores the Context
// snapshot. Any adapter failure is fatal — the caller must abort the
// exploration run.
func (w *World) Rollback(ctx context.Context, cp *core.Checkpoint) error {
	for _, adapterName := range w.names {
		child, ok := cp.Children[adapterName]
		if !ok {
			return &core.RollbackError{Adapter: adapterName, Cause: fmt.Errorf("checkpoint %s has no handle for this adapter", cp.ID)}
		}
		if err := w.adapters[adapterName].Rollback(ctx, child); err != nil {
			return &core.RollbackError{Adapter: adapterName, Cause: err}
		}
	}
	w.ctx.Restore(cp.ContextSnapshot)
	return nil
}

// Observe collects one Observation per adapter, sorted by adapter name.
func (w *World) Observe(ctx context.Context) ([]core.Observation, error) {
	out := make([]core.Observation, 0, len(w.names))
	for _, adapterName := range w.names {
		obs, err := w.adapters[adapterName].Observe(ctx)
		if err != nil {
			return nil, fmt.Errorf("adapter %q observe failed: %w", adapterName, err)
		}
		out = append(out, obs)
	}
	return out, nil
}

// CheckRestoreDiscipline returns an error if any adapter is StackOrder while
// wantsArbitrary is true — the Strategy/adapter compatibility rule, enforced
// once at Agent construction (never mid-run).
func (w *World) CheckRestoreDiscipline(wantsArbitrary bool) error {
	if !wantsArbitrary {
		return nil
	}
	for _, name := range w.names {
		if w.adapters[name].Discipline() == core.StackOrder {
			return &core.ConfigurationError{
				Reason: fmt.Sprintf("adapter %q uses stack-scoped restore but the selected strategy may restore out of order", name),
			}
		}
	}
	return nil
}
