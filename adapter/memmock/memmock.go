// Package memmock implements an in-memory mock Rollbackable adapter, standing
// in for a queue, mail sink, or other side-effect store a real deployment
// would otherwise mock out entirely. A mutex-guarded map with
// deep-copy-on-write semantics gives it the checkpoint/rollback pair such a
// store never otherwise needs.
package memmock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/venomqa/venomqa/internal/core"
)

// Adapter is a generic in-memory container keyed by string, holding core.Value
// entries. It stands in for any SUT collaborator a real deployment would
// otherwise mock out entirely — an in-process queue, a mail-capture sink, a
// blob store — whose full contents are exactly what Checkpoint/Rollback need to
// copy.
type Adapter struct {
	mu     sync.RWMutex
	name   string
	data   map[string]core.Value
	logger *slog.Logger
}

func New(name string, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		name:   name,
		data:   make(map[string]core.Value),
		logger: logger.With("adapter", name),
	}
}

func (a *Adapter) Name() string                        { return a.name }
func (a *Adapter) Discipline() core.RestoreDiscipline   { return core.ArbitraryOrder }
func (a *Adapter) Begin(ctx context.Context) error      { return nil }
func (a *Adapter) End(ctx context.Context) error        { return nil }

// Put stores a value under key; this is how a test fixture or an Action's
// Execute mutates the mock container to simulate the SUT's own side effect on
// it (e.g. "the SUT enqueued a confirmation email").
func (a *Adapter) Put(key string, v core.Value) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.data[key] = v
}

func (a *Adapter) Get(key string) (core.Value, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.data[key]
	return v, ok
}

func (a *Adapter) Delete(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.data, key)
}

func (a *Adapter) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.data)
}

type copyHandle struct {
	snapshot map[string]core.Value
}

func (h *copyHandle) Opaque() any { return h.snapshot }

// Checkpoint deep-copies the entire container.
func (a *Adapter) Checkpoint(ctx context.Context, name string) (core.SystemCheckpoint, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	snap := make(map[string]core.Value, len(a.data))
	for k, v := range a.data {
		snap[k] = v.DeepCopy()
	}
	return &copyHandle{snapshot: snap}, nil
}

// Rollback replaces the container with the copy captured at checkpoint time.
func (a *Adapter) Rollback(ctx context.Context, handle core.SystemCheckpoint) error {
	h, ok := handle.(*copyHandle)
	if !ok {
		return fmt.Errorf("memmock: rollback handle of wrong type for adapter %q", a.name)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	restored := make(map[string]core.Value, len(h.snapshot))
	for k, v := range h.snapshot {
		restored[k] = v.DeepCopy()
	}
	a.data = restored
	return nil
}

// Observe returns a deterministic summary: every key/value currently held.
func (a *Adapter) Observe(ctx context.Context) (core.Observation, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	data := make(map[string]core.Value, len(a.data))
	for k, v := range a.data {
		data[k] = v.DeepCopy()
	}
	return core.Observation{System: a.name, Data: data}, nil
}

var _ core.Rollbackable = (*Adapter)(nil)
