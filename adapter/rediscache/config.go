package rediscache

import (
	"fmt"
	"time"
)

// Config configures the key-value cache Rollbackable adapter: checkpoint
// dumps the binary-encoded value of every key, rollback flushes and
// re-inserts.
type Config struct {
	Addr     string
	Password string
	DB       int
	PoolSize int

	// ObserveKeys lists the keys Observe reports on (or, if empty, Observe uses
	// KEYS "*" — acceptable for the small fixture-sized keyspaces an exploration
	// run targets, never for a production cache).
	ObserveKeys []string

	// DumpCacheSize bounds the in-process LRU of recent DUMP blobs
	// (hashicorp/golang-lru/v2) that avoids re-issuing DUMP for keys unchanged
	// since the last checkpoint during a long DFS run.
	DumpCacheSize int

	DialTimeout time.Duration
}

func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("rediscache adapter: addr is required")
	}
	if c.DumpCacheSize <= 0 {
		c.DumpCacheSize = 256
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	return nil
}
