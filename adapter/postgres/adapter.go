// Package postgres implements the savepoint-backed Rollbackable adapter for
// relational databases: Begin opens one long-running transaction with
// autocommit disabled, Checkpoint issues a nested SAVEPOINT, Rollback discards
// to that savepoint, and End always rolls back the outer transaction, never
// commits. Savepoints are stack-scoped (core.StackOrder): rolling back to an
// earlier one invalidates later ones.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/venomqa/venomqa/internal/core"
)

// Adapter is a core.Rollbackable backed by one PostgreSQL connection held in a
// single uncommitted transaction for the lifetime of an exploration run.
type Adapter struct {
	name   string
	cfg    *Config
	logger *slog.Logger

	pool *pgxpool.Pool
	tx   pgx.Tx

	savepointSeq int
}

// New constructs an Adapter. Connection is deferred to Begin.
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
func (a *Adapter) Discipline() core.RestoreDiscipline { return core.StackOrder }

// Begin acquires the pool and opens the one transaction every checkpoint in
// this run will be a savepoint within.
func (a *Adapter) Begin(ctx context.Context) error {
	connCtx, cancel := context.WithTimeout(ctx, a.cfg.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.New(connCtx, a.cfg.DSN)
	if err != nil {
		return fmt.Errorf("postgres adapter %q: connect: %w", a.name, err)
	}
	if err := pool.Ping(connCtx); err != nil {
		pool.Close()
		return fmt.Errorf("postgres adapter %q: ping: %w", a.name, err)
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		pool.Close()
		return fmt.Errorf("postgres adapter %q: begin tx: %w", a.name, err)
	}

	a.pool = pool
	a.tx = tx
	a.logger.Info("postgres adapter begun", "tables", a.cfg.ObserveTables)
	return nil
}

// End always rolls back the outer transaction and releases the pool.
func (a *Adapter) End(ctx context.Context) error {
	if a.tx != nil {
		if err := a.tx.Rollback(ctx); err != nil && err != pgx.ErrTxClosed {
			a.logger.Warn("outer rollback failed", "error", err)
		}
		a.tx = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	return nil
}

type savepointHandle struct {
	name string
}

func (h *savepointHandle) Opaque() any { return h.name }

// Checkpoint issues a nested SAVEPOINT.
func (a *Adapter) Checkpoint(ctx context.Context, name string) (core.SystemCheckpoint, error) {
	a.savepointSeq++
	sp := fmt.Sprintf("venomqa_sp_%d", a.savepointSeq)
	if _, err := a.tx.Exec(ctx, "SAVEPOINT "+sp); err != nil {
		return nil, fmt.Errorf("postgres adapter %q: savepoint %s: %w", a.name, sp, err)
	}
	a.logger.Debug("checkpoint", "savepoint", sp, "name", name)
	return &savepointHandle{name: sp}, nil
}

// Rollback discards to the savepoint named by handle. Per the stack-scoped
// constraint, rolling back to a savepoint older than the most recent one
// silently invalidates anything issued after it — Postgres itself enforces this
// (ROLLBACK TO releases later savepoints).
func (a *Adapter) Rollback(ctx context.Context, handle core.SystemCheckpoint) error {
	h, ok := handle.(*savepointHandle)
	if !ok {
		return fmt.Errorf("postgres adapter %q: rollback handle of wrong type", a.name)
	}
	if _, err := a.tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+h.name); err != nil {
		return fmt.Errorf("postgres adapter %q: rollback to %s: %w", a.name, h.name, err)
	}
	return nil
}

// Observe reads every configured table in full and folds it into a single
// Observation keyed by "<table>" -> list of row maps (column name -> value),
// with rows sorted by their canonical string form for determinism.
func (a *Adapter) Observe(ctx context.Context) (core.Observation, error) {
	data := make(map[string]any, len(a.cfg.ObserveTables))
	for _, table := range a.cfg.ObserveTables {
		rows, err := a.tx.Query(ctx, fmt.Sprintf("SELECT * FROM %s", table)) //nolint:gosec // table names are operator-configured, not user input
		if err != nil {
			return core.Observation{}, fmt.Errorf("postgres adapter %q: observe %s: %w", a.name, table, err)
		}
		fieldDescs := rows.FieldDescriptions()
		colNames := make([]string, len(fieldDescs))
		for i, fd := range fieldDescs {
			colNames[i] = string(fd.Name)
		}

		var tableRows []any
		for rows.Next() {
			vals, err := rows.Values()
			if err != nil {
				rows.Close()
				return core.Observation{}, fmt.Errorf("postgres adapter %q: scan %s: %w", a.name, table, err)
			}
			row := make(map[string]any, len(vals))
			for i, v := range vals {
				row[colNames[i]] = normalizeSQLValue(v)
			}
			tableRows = append(tableRows, row)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return core.Observation{}, fmt.Errorf("postgres adapter %q: rows %s: %w", a.name, table, err)
		}
		sortRowsDeterministically(tableRows)
		data[table] = tableRows
	}
	return core.NewObservation(a.name, data, nil)
}

// normalizeSQLValue narrows pgx's decoded Go types down to what core.FromGo
// accepts (int64/float64/string/bool/nil/[]any/map[string]any).
func normalizeSQLValue(v any) any {
	switch x := v.(type) {
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int64, float64, string, bool, nil:
		return x
	case [16]byte: // uuid.UUID's underlying array
		return fmt.Sprintf("%x", x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

// sortRowsDeterministically orders rows by their canonical string form so
// Observe's result does not depend on the database's own row order (which
// SELECT * without ORDER BY never guarantees).
func sortRowsDeterministically(rows []any) {
	sort.Slice(rows, func(i, j int) bool {
		return fmt.Sprint(rows[i]) < fmt.Sprint(rows[j])
	})
}

// ExecForTest runs sql against the adapter's live transaction. It exists so
// test fixtures and Action.Execute implementations that mutate the database
// directly (rather than through the SUT's own HTTP API) can do so without
// reaching into the adapter's unexported tx field.
func (a *Adapter) ExecForTest(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := a.tx.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ core.Rollbackable = (*Adapter)(nil)
