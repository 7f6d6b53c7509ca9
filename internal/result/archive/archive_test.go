package archive_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/venomqa/venomqa/internal/core"
	"github.com/venomqa/venomqa/internal/graph"
	"github.com/venomqa/venomqa/internal/result"
	"github.com/venomqa/venomqa/internal/result/archive"
)

func newResult(t *testing.T, violations ...core.Violation) *result.ExplorationResult {
	t.Helper()
	g := graph.New()
	res := result.New(g, 1, []string{"create_order"})
	res.RecordViolations(violations...)
	return res
}

func TestArchive_RecordFlagsOnlyNewFindings(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "archive.db")

	a, err := archive.Open(ctx, archive.DialectSQLite, dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	v := core.Violation{
		InvariantName: "refund_count_le_1",
		Severity:      core.SeverityCritical,
		Message:       "refund issued twice",
		StateID:       "abc123",
		ActionName:    "refund_order",
		ReproPath:     []string{"create_order", "refund_order", "refund_order"},
		Timestamp:     time.Now(),
	}

	fresh, err := a.Record(ctx, "run-1", newResult(t, v))
	require.NoError(t, err)
	require.Len(t, fresh, 1)

	fresh, err = a.Record(ctx, "run-2", newResult(t, v))
	require.NoError(t, err)
	require.Empty(t, fresh, "a violation with the same fingerprint should not be reported as new twice")
}

func TestArchive_DistinctFingerprintsAreBothFresh(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "archive.db")

	a, err := archive.Open(ctx, archive.DialectSQLite, dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	v1 := core.Violation{InvariantName: "inv_a", StateID: "s1", ActionName: "act_a", Timestamp: time.Now()}
	v2 := core.Violation{InvariantName: "inv_b", StateID: "s2", ActionName: "act_b", Timestamp: time.Now()}

	fresh, err := a.Record(ctx, "run-1", newResult(t, v1, v2))
	require.NoError(t, err)
	require.Len(t, fresh, 2)
}
