package lockingcache

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with cache-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// With returns a Logger that adds the given attributes to every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
	}
}

// LogLoad logs a Loader.Load call made on behalf of Get.
func (l *Logger) LogLoad(ctx context.Context, key any, size int64, d time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed",
			"key", key,
			"duration", d,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "load completed",
			"key", key,
			"size", size,
			"duration", d,
		)
	}
}

// LogEvict logs the removal of an entry. A non-nil err is the Loader.Remove
// failure; the entry is gone from the cache either way.
func (l *Logger) LogEvict(ctx context.Context, key any, size int64, err error) {
	if err != nil {
		l.WarnContext(ctx, "evicted with removal error",
			"key", key,
			"size", size,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "removed from cache",
			"key", key,
			"size", size,
		)
	}
}

// LogCleanup logs the outcome of a cleanup sweep.
func (l *Logger) LogCleanup(ctx context.Context, target int64, res CleanupResult, d time.Duration) {
	if res.Pinned > 0 && res.SizeAfter > target {
		l.InfoContext(ctx, "cleanup stopped above target, entries in use",
			"target", target,
			"size", res.SizeAfter,
			"removed", res.Removed,
			"pinned", res.Pinned,
			"duration", d,
		)
	} else {
		l.DebugContext(ctx, "cleanup completed",
			"target", target,
			"size", res.SizeAfter,
			"removed", res.Removed,
			"duration", d,
		)
	}
}

// LogOverBudget logs a cache that is still above its high-water mark after cleanup.
func (l *Logger) LogOverBudget(ctx context.Context, size, maxSize int64) {
	l.WarnContext(ctx, "cache over budget after cleanup",
		"size", size,
		"max_size", maxSize,
	)
}
