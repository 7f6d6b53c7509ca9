// Package rediscache implements a key-value-cache Rollbackable adapter:
// checkpoint dumps the binary-encoded value of every key (redis DUMP), rollback
// flushes the keyspace and RESTOREs each dump. Supports arbitrary restore order
// since each checkpoint is a self-contained snapshot of the whole keyspace.
package rediscache

import (
	"context"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"

	"github.com/venomqa/venomqa/internal/core"
)

// Adapter is a core.Rollbackable over one Redis keyspace (logical DB).
type Adapter struct {
	name   string
	cfg    *Config
	logger *slog.Logger

	client  *redis.Client
	dumpLRU *lru.Cache[string, cachedDump]

	// plainValues is set at Begin when the server does not speak DUMP/RESTORE
	// (miniredis, some managed offerings). Checkpoints then capture plain string
	// values and Rollback re-inserts them with SET.
	plainValues bool
}

// cachedDump remembers the plain value a key had the last time its DUMP
// payload was captured, so Checkpoint can tell a key is unchanged from a
// cheap GET instead of re-issuing DUMP.
type cachedDump struct {
	value   string
	payload string
}

func New(name string, cfg *Config, logger *slog.Logger) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	dumpLRU, err := lru.New[string, cachedDump](cfg.DumpCacheSize)
	if err != nil {
		return nil, fmt.Errorf("rediscache adapter %q: lru: %w", name, err)
	}
	return &Adapter{name: name, cfg: cfg, logger: logger.With("adapter", name), dumpLRU: dumpLRU}, nil
}

func (a *Adapter) Name() string                      { return a.name }
func (a *Adapter) Discipline() core.RestoreDiscipline { return core.ArbitraryOrder }

func (a *Adapter) Begin(ctx context.Context) error {
	client := redis.NewClient(&redis.Options{
		Addr:        a.cfg.Addr,
		Password:    a.cfg.Password,
		DB:          a.cfg.DB,
		PoolSize:    a.cfg.PoolSize,
		DialTimeout: a.cfg.DialTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("rediscache adapter %q: ping: %w", a.name, err)
	}
	a.client = client

	// Probe DUMP support once: a server that speaks it answers redis.Nil for a
	// missing key; one that doesn't answers an unknown-command error.
	if err := client.Dump(ctx, "venomqa:dump-probe").Err(); err != nil && err != redis.Nil {
		a.plainValues = true
		a.logger.Info("server lacks DUMP/RESTORE, checkpoints will capture plain values", "error", err)
	}

	a.logger.Info("rediscache adapter begun", "addr", a.cfg.Addr, "db", a.cfg.DB)
	return nil
}

// End flushes the logical DB back to empty and closes the connection — the
// Redis analogue of "never commit": nothing the exploration wrote is left
// behind for the next run.
func (a *Adapter) End(ctx context.Context) error {
	if a.client == nil {
		return nil
	}
	if err := a.client.FlushDB(ctx).Err(); err != nil {
		a.logger.Warn("flush on end failed", "error", err)
	}
	err := a.client.Close()
	a.client = nil
	return err
}

type dumpHandle struct {
	dumps map[string]string // key -> DUMP payload, or plain value when plain is set
	plain bool
}

func (h *dumpHandle) Opaque() any { return h.dumps }

// Checkpoint dumps the binary-encoded value of every observed key. A key
// whose plain value still matches what the LRU cached from the previous
// checkpoint is assumed unchanged and reuses the cached DUMP payload instead
// of re-issuing DUMP — a single GET is cheaper than DUMP for the string-sized
// values this adapter expects (see Observe), and most keys go untouched
// between consecutive checkpoints in a DFS-heavy exploration.
func (a *Adapter) Checkpoint(ctx context.Context, name string) (core.SystemCheckpoint, error) {
	keys, err := a.keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("rediscache adapter %q: checkpoint keys: %w", a.name, err)
	}
	dumps := make(map[string]string, len(keys))
	reused := 0
	for _, k := range keys {
		val, err := a.client.Get(ctx, k).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			return nil, fmt.Errorf("rediscache adapter %q: get %s: %w", a.name, k, err)
		}
		if a.plainValues {
			dumps[k] = val
			continue
		}
		if cached, ok := a.dumpLRU.Get(k); ok && cached.value == val {
			dumps[k] = cached.payload
			reused++
			continue
		}

		d, err := a.client.Dump(ctx, k).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			return nil, fmt.Errorf("rediscache adapter %q: dump %s: %w", a.name, k, err)
		}
		dumps[k] = d
		a.dumpLRU.Add(k, cachedDump{value: val, payload: d})
	}
	if reused > 0 {
		a.logger.Debug("checkpoint reused cached dumps", "reused", reused, "total", len(keys))
	}
	return &dumpHandle{dumps: dumps, plain: a.plainValues}, nil
}

// Rollback flushes the keyspace then RESTOREs every dumped key.
func (a *Adapter) Rollback(ctx context.Context, handle core.SystemCheckpoint) error {
	h, ok := handle.(*dumpHandle)
	if !ok {
		return fmt.Errorf("rediscache adapter %q: rollback handle of wrong type", a.name)
	}
	if err := a.client.FlushDB(ctx).Err(); err != nil {
		return fmt.Errorf("rediscache adapter %q: flush: %w", a.name, err)
	}
	for k, dump := range h.dumps {
		if h.plain {
			if err := a.client.Set(ctx, k, dump, 0).Err(); err != nil {
				return fmt.Errorf("rediscache adapter %q: set %s: %w", a.name, k, err)
			}
			continue
		}
		if err := a.client.RestoreReplace(ctx, k, 0, dump).Err(); err != nil {
			return fmt.Errorf("rediscache adapter %q: restore %s: %w", a.name, k, err)
		}
	}
	return nil
}

// Observe returns every observed key's current string value (Redis values used
// by an exploration fixture are expected to be simple strings/JSON, not opaque
// binary blobs, so this — unlike Checkpoint's DUMP — is human-legible for
// debugging a captured Observation).
func (a *Adapter) Observe(ctx context.Context) (core.Observation, error) {
	keys, err := a.keys(ctx)
	if err != nil {
		return core.Observation{}, fmt.Errorf("rediscache adapter %q: observe keys: %w", a.name, err)
	}
	data := make(map[string]any, len(keys))
	for _, k := range keys {
		v, err := a.client.Get(ctx, k).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			return core.Observation{}, fmt.Errorf("rediscache adapter %q: get %s: %w", a.name, k, err)
		}
		data[k] = v
	}
	return core.NewObservation(a.name, data, nil)
}

func (a *Adapter) keys(ctx context.Context) ([]string, error) {
	if len(a.cfg.ObserveKeys) > 0 {
		return a.cfg.ObserveKeys, nil
	}
	return a.client.Keys(ctx, "*").Result()
}

// ClientForTest exposes the underlying client for fixtures and tests that need
// to mutate the cache directly, the way memmock.Adapter.Put does for the
// in-memory adapter.
func (a *Adapter) ClientForTest() *redis.Client { return a.client }

var _ core.Rollbackable = (*Adapter)(nil)
