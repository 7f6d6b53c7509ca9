// Package sqlite implements the file-backed embedded-DB Rollbackable adapter:
// Checkpoint copies the database file to a temp location and Rollback restores
// by file replacement. Because a file copy can be taken and restored in any
// order, this adapter supports arbitrary restore order, which makes it the
// drop-in substitute for a project that needs BFS against a savepoint-only
// database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	_ "modernc.org/sqlite"

	"github.com/venomqa/venomqa/internal/core"
)

// Adapter is a core.Rollbackable over one SQLite file.
type Adapter struct {
	name   string
	cfg    *Config
	logger *slog.Logger

	db      *sql.DB
	tmpSeq  int
	tmpDir  string
}

func New(name string, cfg *Config, logger *slog.Logger) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{name: name, cfg: cfg, logger: logger.With("adapter", name)}, nil
}

func (a *Adapter) Name() string                      { return a.name }
func (a *Adapter) Discipline() core.RestoreDiscipline { return core.ArbitraryOrder }

func (a *Adapter) Begin(ctx context.Context) error {
	db, err := sql.Open("sqlite", a.cfg.Path)
	if err != nil {
		return fmt.Errorf("sqlite adapter %q: open: %w", a.name, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("sqlite adapter %q: ping: %w", a.name, err)
	}
	// A single connection keeps the file copy consistent with what
	// Observe/Checkpoint see — SQLite's own locking makes two live connections
	// racy for the file-copy checkpoint strategy below.
	db.SetMaxOpenConns(1)

	dir, err := os.MkdirTemp("", "venomqa-sqlite-"+a.name+"-*")
	if err != nil {
		db.Close()
		return fmt.Errorf("sqlite adapter %q: temp dir: %w", a.name, err)
	}

	a.db = db
	a.tmpDir = dir
	a.logger.Info("sqlite adapter begun", "path", a.cfg.Path)
	return nil
}

func (a *Adapter) End(ctx context.Context) error {
	if a.db != nil {
		a.db.Close()
		a.db = nil
	}
	if a.tmpDir != "" {
		os.RemoveAll(a.tmpDir)
		a.tmpDir = ""
	}
	return nil
}

type fileSnapshotHandle struct {
	path string
}

func (h *fileSnapshotHandle) Opaque() any { return h.path }

// Checkpoint copies the database file to a temp location.
func (a *Adapter) Checkpoint(ctx context.Context, name string) (core.SystemCheckpoint, error) {
	a.tmpSeq++
	dst := fmt.Sprintf("%s/%d-%s.snap", a.tmpDir, a.tmpSeq, name)
	if err := copyFile(a.cfg.Path, dst); err != nil {
		return nil, fmt.Errorf("sqlite adapter %q: checkpoint: %w", a.name, err)
	}
	return &fileSnapshotHandle{path: dst}, nil
}

// Rollback restores the database file from the checkpointed copy. The live
// connection is closed and reopened around the file swap since SQLite cannot
// safely replace a file underneath an open handle on every platform.
func (a *Adapter) Rollback(ctx context.Context, handle core.SystemCheckpoint) error {
	h, ok := handle.(*fileSnapshotHandle)
	if !ok {
		return fmt.Errorf("sqlite adapter %q: rollback handle of wrong type", a.name)
	}
	if a.db != nil {
		a.db.Close()
	}
	if err := copyFile(h.path, a.cfg.Path); err != nil {
		return fmt.Errorf("sqlite adapter %q: rollback: %w", a.name, err)
	}
	db, err := sql.Open("sqlite", a.cfg.Path)
	if err != nil {
		return fmt.Errorf("sqlite adapter %q: reopen after rollback: %w", a.name, err)
	}
	db.SetMaxOpenConns(1)
	a.db = db
	return nil
}

// Observe reads every configured table, mirroring the Postgres adapter's
// deterministic row-sorted summary.
func (a *Adapter) Observe(ctx context.Context) (core.Observation, error) {
	data := make(map[string]any, len(a.cfg.ObserveTables))
	for _, table := range a.cfg.ObserveTables {
		rows, err := a.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s", table)) //nolint:gosec // operator-configured table name
		if err != nil {
			return core.Observation{}, fmt.Errorf("sqlite adapter %q: observe %s: %w", a.name, table, err)
		}
		cols, err := rows.Columns()
		if err != nil {
			rows.Close()
			return core.Observation{}, err
		}

		var tableRows []any
		for rows.Next() {
			vals := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range vals {
				ptrs[i] = &vals[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				rows.Close()
				return core.Observation{}, fmt.Errorf("sqlite adapter %q: scan %s: %w", a.name, table, err)
			}
			row := make(map[string]any, len(cols))
			for i, c := range cols {
				row[c] = normalizeSQLValue(vals[i])
			}
			tableRows = append(tableRows, row)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return core.Observation{}, err
		}
		sort.Slice(tableRows, func(i, j int) bool {
			return fmt.Sprint(tableRows[i]) < fmt.Sprint(tableRows[j])
		})
		data[table] = tableRows
	}
	return core.NewObservation(a.name, data, nil)
}

func normalizeSQLValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case int, int32, int64, float64, string, bool, nil:
		return x
	default:
		return fmt.Sprintf("%v", x)
	}
}

// ExecForTest runs sql against the live connection, used by fixtures and tests
// the way the Postgres adapter's equivalent is.
func (a *Adapter) ExecForTest(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return a.db.ExecContext(ctx, query, args...)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

var _ core.Rollbackable = (*Adapter)(nil)
