package sqlite

import "fmt"

// Config configures the file-backed embedded-DB Rollbackable adapter. Unlike
// the Postgres adapter, checkpoints are plain file copies, so they support
// arbitrary restore order (core.ArbitraryOrder).
type Config struct {
	// Path is the SQLite database file. An in-memory database (":memory:") is
	// not supported since Checkpoint/Rollback operate on the file itself.
	Path string

	// ObserveTables lists the tables Observe summarizes, same convention as the
	// Postgres adapter.
	ObserveTables []string
}

func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("sqlite adapter: path is required")
	}
	if len(c.ObserveTables) == 0 {
		return fmt.Errorf("sqlite adapter: observe_tables must list at least one table")
	}
	return nil
}
