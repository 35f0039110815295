package shardq

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with router-specific context.
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

// WithSpace adds a space field to the logger.
func (l *Logger) WithSpace(space string) *Logger {
	return &Logger{
		Logger: l.Logger.With("space", space),
	}
}

// WithNode adds a storage node id field to the logger.
func (l *Logger) WithNode(node string) *Logger {
	return &Logger{
		Logger: l.Logger.With("node", node),
	}
}

// LogCall logs one completed router operation.
func (l *Logger) LogCall(ctx context.Context, op Operation, space string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "call failed",
			"op", string(op),
			"space", space,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "call completed",
			"op", string(op),
			"space", space,
		)
	}
}

// LogBatch logs a batch write with its partial-failure breakdown.
func (l *Logger) LogBatch(ctx context.Context, op Operation, space string, rows, failedPartitions int) {
	if failedPartitions > 0 {
		l.WarnContext(ctx, "batch completed with failures",
			"op", string(op),
			"space", space,
			"rows", rows,
			"failed_partitions", failedPartitions,
		)
	} else {
		l.DebugContext(ctx, "batch completed",
			"op", string(op),
			"space", space,
			"rows", rows,
		)
	}
}

// LogSchemaRetry logs a stale-schema invalidation and retry.
func (l *Logger) LogSchemaRetry(ctx context.Context, space string) {
	l.InfoContext(ctx, "stale schema, caches invalidated, retrying once",
		"space", space,
	)
}
