// Package ctxstore provides structured diffing over Context snapshots:
// added/modified/deleted keys between two point-in-time maps. Used by the
// Agent to detect and log a Context-coherence mismatch after World.Rollback.
package ctxstore

import (
	"sort"

	"github.com/venomqa/venomqa/internal/core"
)

// FieldChange describes one key that differs between two Context snapshots.
type FieldChange struct {
	Key      string
	Kind     string // "added", "modified", "deleted"
	OldValue core.Value
	NewValue core.Value
}

// Diff compares before and after snapshot-by-snapshot and returns every
// changed key in sorted order, deterministic for reproduction logs.
func Diff(before, after *core.Context) []FieldChange {
	var changes []FieldChange
	if before == nil {
		before = core.NewContext()
	}
	if after == nil {
		after = core.NewContext()
	}

	seen := make(map[string]bool)
	for _, k := range before.Keys() {
		seen[k] = true
		oldV, _ := before.Get(k)
		newV, ok := after.Get(k)
		if !ok {
			changes = append(changes, FieldChange{Key: k, Kind: "deleted", OldValue: oldV})
			continue
		}
		if !oldV.Equal(newV) {
			changes = append(changes, FieldChange{Key: k, Kind: "modified", OldValue: oldV, NewValue: newV})
		}
	}
	for _, k := range after.Keys() {
		if seen[k] {
			continue
		}
		newV, _ := after.Get(k)
		changes = append(changes, FieldChange{Key: k, Kind: "added", NewValue: newV})
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Key < changes[j].Key })
	return changes
}

// Empty reports whether a Diff found no changed keys, i.e. its two inputs hold
// identical contents — used by the Agent's post-rollback Context coherence
// check.
func Empty(changes []FieldChange) bool { return len(changes) == 0 }
