// Package wlog provides structured logging shared by the CLI and the
// storage engine's optional diagnostic output.
//
// The whisper package itself never logs by default — it is a library.
// Until Init is called the global Logger discards every record, and
// internal/wprop's propagation cascade takes an optional *slog.Logger that
// defaults to a discard logger. cmd/whisper-cli calls Init at startup to
// wire a real handler.
package wlog

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger is the process-wide logger, set by Init. Components that are not
// explicitly configured with a logger fall back to Discard().
var Logger *slog.Logger

func init() {
	Logger = Discard()
}

// Init initializes the global logger with the given level and format.
func Init(level slog.Level, jsonFormat bool) {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	if jsonFormat {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

// Discard returns a logger that drops every record, used as the default
// for library components so importing whisper never prints anything
// unless the caller opts in.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Component returns a logger tagged with a component name.
func Component(name string) *slog.Logger {
	if Logger == nil {
		return Discard()
	}
	return Logger.With("component", name)
}

// With returns a logger derived from the global logger with extra attributes.
func With(args ...any) *slog.Logger {
	if Logger == nil {
		return Discard()
	}
	return Logger.With(args...)
}

// FromContext extracts a logger stashed in ctx by WithContext, or returns
// the global logger if none is present.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	if Logger != nil {
		return Logger
	}
	return Discard()
}

type ctxKey struct{}

// WithContext returns a copy of ctx carrying l, retrievable via FromContext.
func WithContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}
