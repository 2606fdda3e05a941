package vgeom

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/vgeom/cache"
	"github.com/gogpu/vgeom/pipeline"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for vgeom and its sub-packages.
// By default, vgeom produces no log output. Call SetLogger to enable logging.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by vgeom:
//   - [slog.LevelDebug]: format registration, munge cache hits, misses and evictions
//   - [slog.LevelInfo]: lifecycle events (renderer created, config applied)
//   - [slog.LevelWarn]: tolerated misuse (writes to registered formats,
//     out-of-range rows, duplicate column names)
//
// Example:
//
//	vgeom.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	cache.SetLogger(l)
	pipeline.SetLogger(l)
}

// Logger returns the current logger used by vgeom.
// Sub-packages (backend/webgpu, codec) call this to share the same logger
// configuration.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
