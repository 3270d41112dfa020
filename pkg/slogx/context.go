package slogx

import (
	"context"
	"log/slog"
)

type loggerKey struct{}

// WithContext attaches a logger to the context. HTTPMiddleware calls
// this with the request-scoped logger; handlers rarely need to.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the request-scoped logger, falling back to
// slog.Default so packages can log from code paths that run before the
// middleware (startup, background sweeps).
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
