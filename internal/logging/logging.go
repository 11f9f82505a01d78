package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is a structured logger that writes to the console. The variadic
// args are key-value pairs:
//
//	log.Info("onboarding started", "name", name, "run_id", id)
type Logger struct {
	l *slog.Logger
}

// NewLogger creates a Logger writing text at info level to stdout.
func NewLogger() *Logger {
	return New(os.Stdout, "info", "text")
}

// New creates a Logger for the given level (debug, info, warn, error) and
// format (text or json). Unknown values fall back to info and text.
func New(w io.Writer, level, format string) *Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var h slog.Handler = slog.NewTextHandler(w, opts)
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	}
	return &Logger{l: slog.New(h)}
}

// Discard returns a Logger that drops everything. Used by tests.
func Discard() *Logger {
	return New(io.Discard, "error", "text")
}

// ParseLevel maps a level name onto slog.Level.
func ParseLevel(level string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(level)))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// Slog exposes the underlying logger for libraries that accept *slog.Logger.
func (l *Logger) Slog() *slog.Logger {
	return l.l
}

// With returns a child logger that always includes the given pairs.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{l: l.l.With(args...)}
}

// Info logs an informational message.
func (l *Logger) Info(msg string, args ...any) {
	l.l.Info(msg, args...)
}

// Warn logs a degraded but non-fatal condition.
func (l *Logger) Warn(msg string, args ...any) {
	l.l.Warn(msg, args...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, args ...any) {
	l.l.Error(msg, args...)
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, args ...any) {
	l.l.Debug(msg, args...)
}
