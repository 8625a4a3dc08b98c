// Package logging provides structured logging for the database core using
// Go's slog package.
package logging

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

const (
	// OperationIDKey is the context key for the current operation's ID.
	OperationIDKey ContextKey = "operation_id"
)

var (
	// defaultLogger is the global logger instance.
	defaultLogger *slog.Logger
)

func init() {
	// Initialize with a default logger (JSON format, Info level)
	InitLogger(LevelInfo, FormatJSON)
}

// Level represents a log level.
type Level int

const (
	// LevelDebug is for debug messages.
	LevelDebug Level = iota
	// LevelInfo is for informational messages.
	LevelInfo
	// LevelWarn is for warning messages.
	LevelWarn
	// LevelError is for error messages.
	LevelError
)

// Format represents a log output format.
type Format int

const (
	// FormatJSON outputs logs in JSON format.
	FormatJSON Format = iota
	// FormatText outputs logs in human-readable text format.
	FormatText
)

// InitLogger initializes the global logger with the specified level and format.
func InitLogger(level Level, format Format) {
	var slogLevel slog.Level
	switch level {
	case LevelDebug:
		slogLevel = slog.LevelDebug
	case LevelInfo:
		slogLevel = slog.LevelInfo
	case LevelWarn:
		slogLevel = slog.LevelWarn
	case LevelError:
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: slogLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Customize timestamp format
			if a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, a.Value.Time().Format(time.RFC3339))
			}
			return a
		},
	}

	var handler slog.Handler
	if format == FormatJSON {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

// GetLogger returns the global logger instance.
func GetLogger() *slog.Logger {
	return defaultLogger
}

// WithOperationID attaches an operation ID to the context.
func WithOperationID(ctx context.Context, operationID string) context.Context {
	return context.WithValue(ctx, OperationIDKey, operationID)
}

// OperationID retrieves the operation ID from the context, if any.
func OperationID(ctx context.Context) string {
	if id, ok := ctx.Value(OperationIDKey).(string); ok {
		return id
	}
	return ""
}

// LoggerFromContext returns a logger with context values attached.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	logger := defaultLogger
	if id := OperationID(ctx); id != "" {
		logger = logger.With("operation_id", id)
	}
	return logger
}

// Helper functions for common logging patterns

// Debug logs a debug message with optional key-value pairs.
func Debug(msg string, args ...any) {
	defaultLogger.Debug(msg, args...)
}

// Info logs an info message with optional key-value pairs.
func Info(msg string, args ...any) {
	defaultLogger.Info(msg, args...)
}

// Warn logs a warning message with optional key-value pairs.
func Warn(msg string, args ...any) {
	defaultLogger.Warn(msg, args...)
}

// Error logs an error message with optional key-value pairs.
func Error(msg string, args ...any) {
	defaultLogger.Error(msg, args...)
}

// DebugContext logs a debug message with context.
func DebugContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).Debug(msg, args...)
}

// InfoContext logs an info message with context.
func InfoContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).Info(msg, args...)
}

// WarnContext logs a warning message with context.
func WarnContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).Warn(msg, args...)
}

// ErrorContext logs an error message with context.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).Error(msg, args...)
}

// Query logs a completed query or mutation against a table.
func Query(table, op string, duration time.Duration, rows int, args ...any) {
	allArgs := []any{
		"table", table,
		"op", op,
		"duration_ms", duration.Milliseconds(),
		"rows", rows,
	}
	allArgs = append(allArgs, args...)
	defaultLogger.Debug("query", allArgs...)
}

// PoolEvent logs a connection pool lifecycle event (acquire, release, evict, ...).
func PoolEvent(event string, connectionID string, args ...any) {
	allArgs := []any{
		"event", event,
		"connection_id", connectionID,
	}
	allArgs = append(allArgs, args...)
	defaultLogger.Info("pool_event", allArgs...)
}

// PoolError logs a connection pool error that was handled locally rather
// than propagated to a caller (e.g. a failed statement finalization on close).
func PoolError(event string, err error, args ...any) {
	allArgs := []any{
		"event", event,
		"error", err.Error(),
	}
	allArgs = append(allArgs, args...)
	defaultLogger.Warn("pool_error", allArgs...)
}

// LifecycleEvent logs a database-level lifecycle event (backup, restore, merge, optimize).
func LifecycleEvent(event, databasePath string, args ...any) {
	allArgs := []any{
		"event", event,
		"database_path", databasePath,
	}
	allArgs = append(allArgs, args...)
	defaultLogger.Info("lifecycle_event", allArgs...)
}

// RetryEvent logs a locked-database retry attempt.
func RetryEvent(op string, attempt int, backoff time.Duration, args ...any) {
	allArgs := []any{
		"op", op,
		"attempt", attempt,
		"backoff_ms", backoff.Milliseconds(),
	}
	allArgs = append(allArgs, args...)
	defaultLogger.Warn("retry_locked", allArgs...)
}
