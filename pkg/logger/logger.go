// Package logger builds the explorer's structured slog loggers and mints the
// run and call identifiers that correlate log lines with graph states,
// stub-journal entries, and archived violations. One exploration run logs one
// line per step, checkpoint, rollback, and violation; every line carries the
// run's identity so interleaved runs against a shared log sink stay
// separable.
package logger

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config describes one log sink: level, json or text, and where it writes.
// Output "file" rotates via lumberjack.
type Config struct {
	Level      string
	Format     string
	Output     string
	Filename   string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

var levels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// ParseLevel maps a config string to a slog.Level. Unknown or empty strings
// fall back to info.
func ParseLevel(level string) slog.Level {
	if lvl, ok := levels[strings.ToLower(strings.TrimSpace(level))]; ok {
		return lvl
	}
	return slog.LevelInfo
}

// Build constructs the logger c describes. Debug level also records source
// locations: a misbehaving exploration is usually reconstructed from its log
// alone, after the run's state is long gone.
func (c Config) Build() *slog.Logger {
	level := ParseLevel(c.Level)
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}
	w := c.writer()
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (c Config) writer() io.Writer {
	switch strings.ToLower(c.Output) {
	case "stderr":
		return os.Stderr
	case "file":
		if c.Filename == "" {
			return os.Stdout
		}
		return &lumberjack.Logger{
			Filename:   c.Filename,
			MaxSize:    c.MaxSize, // megabytes
			MaxBackups: c.MaxBackups,
			MaxAge:     c.MaxAge, // days
			Compress:   c.Compress,
		}
	default:
		return os.Stdout
	}
}

// NewRunID mints the identifier stamped on every log line, archive row, and
// result of one exploration run.
func NewRunID() string { return randomID("run") }

// NewCallID mints the identifier the stub recorder assigns to each inbound
// third-party call, tying its journal entry to the matching log line and to
// the X-Call-ID header echoed back to the System Under Test.
func NewCallID() string { return randomID("call") }

func randomID(prefix string) string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
	}
	return prefix + "_" + hex.EncodeToString(b)
}

// ForRun binds the fields every line of one exploration run carries: the run
// ID, the strategy driving it, and the seed needed to reproduce it.
func ForRun(l *slog.Logger, runID, strategy string, seed int64) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	return l.With("run_id", runID, "strategy", strategy, "seed", seed)
}

// ForStep binds one loop iteration's identifiers, so a line can be matched to
// the graph state it was dispatched from and the action it dispatched.
func ForStep(l *slog.Logger, step int, stateID, action string) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	return l.With("step", step, "state_id", stateID, "action", action)
}
