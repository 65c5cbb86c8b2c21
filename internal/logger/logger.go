// Package logger provides the broker's structured logging setup: a single
// global slog.Logger with a runtime-adjustable level, initialized from the
// BROKER_LOG_LEVEL environment variable.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

const envLogLevel = "BROKER_LOG_LEVEL"

var (
	atomicLevel = &dynamicLevel{v: int64(slog.LevelInfo)}
	global      *slog.Logger
	initOnce    sync.Once
)

type dynamicLevel struct{ v int64 }

func (d *dynamicLevel) Level() slog.Level { return slog.Level(atomic.LoadInt64(&d.v)) }
func (d *dynamicLevel) set(l slog.Level)  { atomic.StoreInt64(&d.v, int64(l)) }

// Init initializes the global logger from BROKER_LOG_LEVEL (default info).
// Safe to call multiple times; only the first call takes effect.
func Init() {
	initOnce.Do(func() {
		lvl, _ := parseLevel(os.Getenv(envLogLevel))
		atomicLevel.set(lvl)
		global = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: atomicLevel}))
	})
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error", "err":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// SetLevel changes the runtime log level. Returns false if level is not a
// recognized name, leaving the current level unchanged.
func SetLevel(level string) bool {
	Init()
	lvl, ok := parseLevel(level)
	if !ok {
		return false
	}
	atomicLevel.set(lvl)
	return true
}

// UseWriter swaps the output writer (intended for tests). Retains the
// current level.
func UseWriter(w io.Writer) {
	Init()
	global = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: atomicLevel}))
}

// Logger returns the global logger, initializing it on first use.
func Logger() *slog.Logger { Init(); return global }

// WithStream attaches the stream id field, used throughout the ingest and
// subscribe handlers to correlate log lines with a stream.
func WithStream(l *slog.Logger, streamID string) *slog.Logger {
	return l.With("stream_id", streamID)
}
