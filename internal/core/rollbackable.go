package core

import "context"

// RestoreDiscipline tags whether an adapter's checkpoint/rollback pairs may
// be restored in arbitrary order or only in a stack (LIFO) order, the
// constraint a native savepoint backend imposes. The Agent uses this to
// reject an incompatible Strategy/adapter pairing at construction
// (ConfigurationError), never at runtime.
type RestoreDiscipline int

const (
	// ArbitraryOrder adapters (file copies, cache dumps, deep-copied containers)
	// may roll back to any previously taken checkpoint in any order.
	ArbitraryOrder RestoreDiscipline = iota

	// StackOrder adapters (native DB savepoints) may only roll back to the most
	// recently taken checkpoint that has not itself been rolled past; rolling back
	// to an older checkpoint invalidates newer ones.
	StackOrder
)

// Rollbackable is the uniform contract every external mutable system exposes.
// Begin/End bracket the entire exploration run; Checkpoint/Rollback/Observe are
// called once per exploration step.
type Rollbackable interface {
	// Name identifies this adapter in deterministic iteration order and in
	// Observation.System / Checkpoint.Children keys.
	Name() string

	// Discipline reports this adapter's restore-order capability.
	Discipline() RestoreDiscipline

	// Begin acquires the enclosing transactional context for the run.
	Begin(ctx context.Context) error

	// End releases it. Implementations MUST discard any outstanding mutations
	// (e.g. roll back the outer transaction), never commit.
	End(ctx context.Context) error

	// Checkpoint produces an opaque handle capable of later restoring exactly what
	// Observe would have returned at the moment Checkpoint was called.
	Checkpoint(ctx context.Context, name string) (SystemCheckpoint, error)

	// Rollback restores the adapter to the state captured by handle.
	Rollback(ctx context.Context, handle SystemCheckpoint) error

	// Observe returns a deterministic, comparison-safe summary of current state,
	// used for state identity. Must be cheap.
	Observe(ctx context.Context) (Observation, error)
}
