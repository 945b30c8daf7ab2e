// Package logger configures structured logging and carries the logger
// through context.Context.
//
// Diagnostics go to stderr through log/slog. User-facing progress is printed
// by the commands themselves and never passes through here.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

var level = new(slog.LevelVar)

// Logger is the default logger instance.
var Logger = New(level, "text", os.Stderr)

// SetLevel changes the level of the default logger and of every logger
// derived from it.
func SetLevel(l slog.Level) { level.Set(l) }

// ParseLevel maps a config value to a level. Unknown values mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// New builds a logger writing text or json records to w. Passing a
// *slog.LevelVar lets the level change after construction.
func New(lvl slog.Leveler, format string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

type key struct{}

// WithLogger returns a new context with the provided logger embedded.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, key{}, l)
}

// FromContext extracts the logger from ctx, falling back to Logger.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(key{}).(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return Logger
}

// Stage logs the start of a named step and returns a func that logs its end
// with the elapsed time and, when non-nil, the error.
//
//	done := logger.Stage(ctx, "load", "path", p)
//	defer func() { done(err) }()
func Stage(ctx context.Context, name string, args ...any) func(error) {
	l := FromContext(ctx).With(append([]any{"stage", name}, args...)...)
	l.Debug("stage start")
	start := time.Now()
	return func(err error) {
		if err != nil {
			l.Error("stage failed", "duration", time.Since(start), "error", err)
			return
		}
		l.Debug("stage end", "duration", time.Since(start))
	}
}
