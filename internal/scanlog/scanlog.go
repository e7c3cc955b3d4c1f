// Package scanlog is a thin structured-logging shim tagging every line
// with the scan id and originating component, matching the teacher's
// habit of a small logging wrapper around the standard library rather
// than a bespoke logging framework.
package scanlog

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// New builds a component-scoped logger writing JSON lines to w (os.Stderr
// if w is nil).
func New(component string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	return slog.New(handler).With("component", component)
}

// WithScan returns a logger tagging every subsequent line with scanID.
func WithScan(logger *slog.Logger, scanID string) *slog.Logger {
	return logger.With("scan_id", scanID)
}

// Discard returns a logger that drops every line, for tests that don't
// care about log output but still need a non-nil *slog.Logger.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type ctxKey struct{}

// IntoContext attaches logger to ctx for retrieval by FromContext deeper
// in a call chain where threading a logger parameter would be awkward
// (e.g. across a probe's retry loop).
func IntoContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext retrieves a logger attached by IntoContext, or Discard()
// if none was attached.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return logger
	}
	return Discard()
}
