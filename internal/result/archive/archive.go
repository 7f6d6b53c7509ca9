// Package archive persists ExplorationResult violations to a small bookkeeping
// schema, goose-migrated on first use, so repeated runs against the same
// project can diff newly-seen violations against ones already recorded.
// Defaults to a small embedded SQLite archive (no database server required
// just to remember what a previous run found) with an optional Postgres
// dialect for teams that centralize findings.
package archive

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/venomqa/venomqa/internal/core"
	"github.com/venomqa/venomqa/internal/result"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Dialect selects the goose/database/sql dialect the Archive speaks.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "postgres"
)

// Archive is a small store of previously-recorded violations, keyed by a
// stable fingerprint (invariant name + triggering state ID + action name) so
// the same bug found on a later run is recognized as already-known rather than
// reported twice.
type Archive struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

// Open connects to dsn (a sqlite file path, or a postgres connection string
// when dialect is DialectPostgres), migrates the bookkeeping schema with
// goose, and returns a ready Archive. Callers must Close it when done.
func Open(ctx context.Context, dialect Dialect, dsn string, logger *slog.Logger) (*Archive, error) {
	if logger == nil {
		logger = slog.Default()
	}
	driver := "sqlite"
	if dialect == DialectPostgres {
		driver = "pgx"
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", dialect, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: ping: %w", err)
	}

	if err := goose.SetDialect(string(dialect)); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: set dialect: %w", err)
	}
	goose.SetBaseFS(migrationsFS)
	if err := goose.Up(db, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: migrate: %w", err)
	}

	logger.Info("violation archive ready", "dialect", dialect)
	return &Archive{db: db, dialect: dialect, logger: logger.With("component", "archive")}, nil
}

func (a *Archive) Close() error { return a.db.Close() }

// Record inserts one archive row per violation in res, tagged with runID, and
// returns the subset whose fingerprint had no earlier row — the "new findings
// since last run" view a CLI reporter surfaces to the user. Earlier rows are
// never updated; every call adds its own rows.
func (a *Archive) Record(ctx context.Context, runID string, res *result.ExplorationResult) ([]core.Violation, error) {
	if runID == "" {
		runID = uuid.NewString()
	}
	var fresh []core.Violation
	for _, v := range res.Violations {
		fp := fingerprint(v)
		seen, err := a.wasSeen(ctx, fp)
		if err != nil {
			return nil, err
		}
		if err := a.insert(ctx, runID, fp, v); err != nil {
			return nil, err
		}
		if !seen {
			fresh = append(fresh, v)
		}
	}
	return fresh, nil
}

func fingerprint(v core.Violation) string {
	return v.InvariantName + "|" + v.StateID + "|" + v.ActionName
}

func (a *Archive) wasSeen(ctx context.Context, fingerprint string) (bool, error) {
	query := "SELECT COUNT(1) FROM violation_archive WHERE fingerprint = " + a.placeholder(1)
	var n int
	if err := a.db.QueryRowContext(ctx, query, fingerprint).Scan(&n); err != nil {
		return false, fmt.Errorf("archive: lookup: %w", err)
	}
	return n > 0, nil
}

func (a *Archive) insert(ctx context.Context, runID, fingerprint string, v core.Violation) error {
	cols := []string{
		"id", "run_id", "fingerprint", "invariant_name", "severity", "message",
		"state_id", "action_name", "repro_path", "observed_at",
	}
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = a.placeholder(i + 1)
	}
	query := fmt.Sprintf("INSERT INTO violation_archive (%s) VALUES (%s)",
		joinComma(cols), joinComma(placeholders))

	_, err := a.db.ExecContext(ctx, query,
		uuid.NewString(), runID, fingerprint, v.InvariantName, v.Severity.String(), v.Message,
		v.StateID, v.ActionName, joinComma(v.ReproPath), v.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("archive: insert: %w", err)
	}
	return nil
}

// placeholder renders the n-th bind parameter in the dialect's own syntax:
// pgx requires $1, $2, ...; the sqlite driver accepts the portable "?".
func (a *Archive) placeholder(n int) string {
	if a.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func joinComma(path []string) string {
	out := ""
	for i, p := range path {
		if i > 0 {
			out += ","
		}
		out += p
	}
	return out
}
