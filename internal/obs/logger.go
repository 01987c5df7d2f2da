// Package obs holds the gateway's process-wide observability handles:
// the structured logger and the Prometheus registry. Both are constructed
// once at start-up and threaded through the call chain via context, per the
// design note that cross-cutting concerns become explicit context values
// rather than package globals.
package obs

import (
	"context"

	"go.uber.org/zap"
)

type loggerKey struct{}

// NewLogger builds the base zap logger for the gateway. dev=true switches
// to a human-readable console encoder for local runs.
func NewLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// WithLogger attaches a logger to ctx, scoped to one request.
func WithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// Logger returns the logger attached to ctx, or a no-op logger if none was
// attached. Call sites never need a nil check.
func Logger(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return zap.NewNop()
}

// WithCorrelationID returns a context whose logger has the correlation id
// attached as a structured field, for every subsequent log line in the
// pipeline.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return WithLogger(ctx, Logger(ctx).With(zap.String("correlation_id", correlationID)))
}
