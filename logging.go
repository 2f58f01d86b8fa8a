package diskcache

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LogLevel represents different logging levels.
type LogLevel int

// Supported log levels, lowest to highest severity.
const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// LogConfig holds configuration for the cache logger.
type LogConfig struct {
	// Level sets the minimum log level (debug, info, warn, error).
	Level LogLevel

	// EnableCallerInfo includes file and line number in logs.
	EnableCallerInfo bool
}

// DefaultLogConfig returns a default logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            LogLevelInfo,
		EnableCallerInfo: false,
	}
}

// Logger provides structured logging for the cache. It is a thin wrapper
// around slog so callers can attach contextual fields without depending on
// the handler configuration.
type Logger struct {
	s *slog.Logger
}

// NewLogger creates a structured logger writing to stderr with the given
// configuration.
func NewLogger(config LogConfig) *Logger {
	level := slog.LevelInfo
	switch config.Level {
	case LogLevelDebug:
		level = slog.LevelDebug
	case LogLevelWarn:
		level = slog.LevelWarn
	case LogLevelError:
		level = slog.LevelError
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: config.EnableCallerInfo,
	})

	return &Logger{s: slog.New(handler)}
}

// NewNopLogger creates a logger that discards all messages.
func NewNopLogger() *Logger {
	return &Logger{s: slog.New(slog.DiscardHandler)}
}

// Debug logs debug-level messages.
func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	if l == nil || l.s == nil {
		return
	}
	l.s.DebugContext(ctx, msg, args...)
}

// Info logs info-level messages.
func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	if l == nil || l.s == nil {
		return
	}
	l.s.InfoContext(ctx, msg, args...)
}

// Warn logs warning-level messages.
func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	if l == nil || l.s == nil {
		return
	}
	l.s.WarnContext(ctx, msg, args...)
}

// Error logs error-level messages.
func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	if l == nil || l.s == nil {
		return
	}
	l.s.ErrorContext(ctx, msg, args...)
}

// With returns a logger with additional context fields.
func (l *Logger) With(args ...any) *Logger {
	if l == nil || l.s == nil {
		return l
	}
	return &Logger{s: l.s.With(args...)}
}

// WithOperation returns a logger with operation context.
func (l *Logger) WithOperation(operation string) *Logger {
	return l.With("operation", operation)
}

// WithKey returns a logger with key context.
func (l *Logger) WithKey(key string) *Logger {
	return l.With("key", key)
}

// WithSize returns a logger with size context.
func (l *Logger) WithSize(size int64) *Logger {
	return l.With("size", size)
}

// ParseLogLevel parses a string log level into a LogLevel.
func ParseLogLevel(level string) (LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return LogLevelDebug, nil
	case "info":
		return LogLevelInfo, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "error":
		return LogLevelError, nil
	default:
		return LogLevelInfo, fmt.Errorf("invalid log level: %s", level)
	}
}

// logOperation logs a completed cache operation with its outcome.
func logOperation(
	ctx context.Context,
	logger *Logger,
	op string,
	key string,
	duration time.Duration,
	size int64,
	err error,
) {
	if logger == nil {
		return
	}

	fields := []any{
		"operation", op,
		"key", key,
		"duration_ms", duration.Milliseconds(),
	}
	if size > 0 {
		fields = append(fields, "size", size)
	}

	if err != nil {
		fields = append(fields, "error", err.Error())
		logger.Warn(ctx, "cache operation failed", fields...)
		return
	}
	logger.Debug(ctx, "cache operation completed", fields...)
}

// logEviction logs an eviction event.
func logEviction(ctx context.Context, logger *Logger, key string, size int64, reason string) {
	if logger == nil {
		return
	}

	logger.Info(ctx, "cache entry evicted",
		"key", key,
		"size", size,
		"reason", reason)
}
