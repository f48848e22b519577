package distinctset

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with distinctset-specific context.
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

// WithItemSize adds an item_size field to the logger.
func (l *Logger) WithItemSize(size int) *Logger {
	return &Logger{
		Logger: l.Logger.With("item_size", size),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// LogAppendBatch logs a batch append operation.
func (l *Logger) LogAppendBatch(ctx context.Context, appended, skipped int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "batch append failed",
			"appended", appended,
			"skipped", skipped,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "batch append completed",
			"appended", appended,
			"skipped", skipped,
		)
	}
}

// LogMerge logs a merge of two partial aggregates.
func (l *Logger) LogMerge(ctx context.Context, leftLen, rightLen int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "merge failed",
			"left_len", leftLen,
			"right_len", rightLen,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "merge completed",
			"left_len", leftLen,
			"right_len", rightLen,
		)
	}
}

// LogSnapshot logs a snapshot save operation.
func (l *Logger) LogSnapshot(ctx context.Context, name string, size int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"name", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot saved",
			"name", name,
			"size", size,
		)
	}
}

// LogRestore logs a snapshot load operation.
func (l *Logger) LogRestore(ctx context.Context, name string, count int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "restore failed",
			"name", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "restore completed",
			"name", name,
			"count", count,
		)
	}
}
