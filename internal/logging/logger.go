// Package logging provides the structured logger shared by the app, the
// HTTP adapter and the CLI. Output is JSON lines on stderr.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the structured logging interface used across mapbuilder.
// fields are alternating key/value pairs.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)
	With(fields ...any) Logger
}

type slogLogger struct {
	logger *slog.Logger
}

// New creates a JSON logger on stderr at the given level.
func New(level string) Logger {
	return NewWithWriter(os.Stderr, level)
}

// NewWithWriter creates a JSON logger that writes to w.
func NewWithWriter(w io.Writer, level string) Logger {
	lvl, _ := ParseLevel(level)
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	return &slogLogger{logger: slog.New(handler)}
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return &slogLogger{logger: slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))}
}

// ParseLevel maps a level name to a slog level. Unknown names fall back to
// info and report false.
func ParseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

func (l *slogLogger) Debug(msg string, fields ...any) { l.logger.Debug(msg, fields...) }
func (l *slogLogger) Info(msg string, fields ...any)  { l.logger.Info(msg, fields...) }
func (l *slogLogger) Warn(msg string, fields ...any)  { l.logger.Warn(msg, fields...) }
func (l *slogLogger) Error(msg string, fields ...any) { l.logger.Error(msg, fields...) }

func (l *slogLogger) With(fields ...any) Logger {
	return &slogLogger{logger: l.logger.With(fields...)}
}
