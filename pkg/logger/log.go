package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	userIDKey = "user_id"
	jobKey    = "job"

	envLevel  = "LOG_LEVEL"
	envFormat = "LOG_FORMAT"
	envFile   = "LOG_FILE"
)

var (
	defaultLogger *slog.Logger
)

func init() {
	defaultLogger = New(Options{
		Level:  os.Getenv(envLevel),
		Format: os.Getenv(envFormat),
		File:   os.Getenv(envFile),
	})
}

// Options controls how New builds a logger.
type Options struct {
	Level  string // debug, info, warn, error (default info)
	Format string // json (default) or text
	File   string // rotate into this file instead of stdout
	Writer io.Writer
}

// New builds a slog logger. File output is rotated by lumberjack.
func New(opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
		if opts.File != "" {
			w = &lumberjack.Logger{
				Filename:   opts.File,
				MaxSize:    10, // MB
				MaxBackups: 3,
				MaxAge:     28, // days
			}
		}
	}
	ho := &slog.HandlerOptions{Level: parseLevel(opts.Level)}
	if strings.EqualFold(opts.Format, "text") {
		return slog.New(slog.NewTextHandler(w, ho))
	}
	return slog.New(slog.NewJSONHandler(w, ho))
}

// SetDefault replaces the logger returned when the context carries none.
func SetDefault(l *slog.Logger) {
	if l != nil {
		defaultLogger = l
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type contextKey struct{}

var loggerKey = &contextKey{}

// FromContext returns the logger from context, or the default logger.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok && l != nil {
		return l
	}
	return defaultLogger
}

// WithContext returns a new context that carries the given logger.
func WithContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// WithUser returns a context whose logger tags every record with the user id.
func WithUser(ctx context.Context, userID string) context.Context {
	return WithContext(ctx, FromContext(ctx).With(userIDKey, userID))
}

// WithJob returns a context whose logger tags every record with a job name.
func WithJob(ctx context.Context, job string) context.Context {
	return WithContext(ctx, FromContext(ctx).With(jobKey, job))
}

// DebugfWithContext logs at debug level with format.
func DebugfWithContext(ctx context.Context, format string, args ...interface{}) {
	FromContext(ctx).DebugContext(ctx, fmt.Sprintf(format, args...))
}

// InfofWithContext logs at info level with format.
func InfofWithContext(ctx context.Context, format string, args ...interface{}) {
	FromContext(ctx).InfoContext(ctx, fmt.Sprintf(format, args...))
}

// Error logs with error level. args are alternating key-value pairs (e.g. "error", err).
func Error(ctx context.Context, message string, args ...interface{}) {
	FromContext(ctx).ErrorContext(ctx, message, args...)
}

// Info logs with info level. args are alternating key-value pairs.
func Info(ctx context.Context, message string, args ...interface{}) {
	FromContext(ctx).InfoContext(ctx, message, args...)
}

// Debug logs with debug level. args are alternating key-value pairs.
func Debug(ctx context.Context, message string, args ...interface{}) {
	FromContext(ctx).DebugContext(ctx, message, args...)
}

// Warn logs with warn level. args are alternating key-value pairs.
func Warn(ctx context.Context, message string, args ...interface{}) {
	FromContext(ctx).WarnContext(ctx, message, args...)
}
