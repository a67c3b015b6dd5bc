package geostore

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with geostore-specific context.
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

// WithNodeID adds a node id field to the logger.
func (l *Logger) WithNodeID(id int64) *Logger {
	return &Logger{
		Logger: l.Logger.With("node_id", id),
	}
}

// WithPathID adds a path id field to the logger.
func (l *Logger) WithPathID(id int64) *Logger {
	return &Logger{
		Logger: l.Logger.With("path_id", id),
	}
}

// LogUpsertNode logs a node upsert.
func (l *Logger) LogUpsertNode(ctx context.Context, id int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "node upsert failed",
			"node_id", id,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "node upsert completed",
			"node_id", id,
		)
	}
}

// LogUpsertPath logs a path upsert.
func (l *Logger) LogUpsertPath(ctx context.Context, id int64, nodeRefs int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "path upsert failed",
			"path_id", id,
			"node_refs", nodeRefs,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "path upsert completed",
			"path_id", id,
			"node_refs", nodeRefs,
		)
	}
}

// LogDelete logs a delete.
func (l *Logger) LogDelete(ctx context.Context, kind string, id int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed",
			"kind", kind,
			"id", id,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "delete completed",
			"kind", kind,
			"id", id,
		)
	}
}

// LogBulkLoad logs a bulk load.
func (l *Logger) LogBulkLoad(ctx context.Context, total, failed int) {
	if failed > 0 {
		l.WarnContext(ctx, "bulk load completed with failures",
			"total", total,
			"failed", failed,
			"success", total-failed,
		)
	} else {
		l.InfoContext(ctx, "bulk load completed",
			"count", total,
		)
	}
}

// LogFlush logs a flush.
func (l *Logger) LogFlush(ctx context.Context, err error) {
	if err != nil {
		l.ErrorContext(ctx, "flush failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "flush completed")
	}
}

// LogIntegrityCheck logs an integrity verification.
func (l *Logger) LogIntegrityCheck(ctx context.Context, warnings int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "integrity check failed",
			"error", err,
		)
	} else if warnings > 0 {
		l.WarnContext(ctx, "integrity check found dangling references",
			"warnings", warnings,
		)
	} else {
		l.InfoContext(ctx, "integrity check passed")
	}
}
