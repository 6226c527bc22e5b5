package logging

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	correlationKey
)

// Correlation groups the identifiers shared by every log line of one unit of
// work: an HTTP request, a websocket channel or a bus message.
type Correlation struct {
	RequestID string
	TraceID   string
	SpanID    string
}

// WithLogger stores the provided logger on the context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the scoped logger or falls back to slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return slog.Default()
	}
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// With enriches the context logger with args.
func With(ctx context.Context, args ...any) context.Context {
	return WithLogger(ctx, FromContext(ctx).With(args...))
}

// CorrelationFromContext returns the identifiers recorded so far.
func CorrelationFromContext(ctx context.Context) Correlation {
	if ctx == nil {
		return Correlation{}
	}
	c, _ := ctx.Value(correlationKey).(Correlation)
	return c
}

func withCorrelation(ctx context.Context, update func(*Correlation)) context.Context {
	c := CorrelationFromContext(ctx)
	update(&c)
	return context.WithValue(ctx, correlationKey, c)
}

// WithRequestID stores a request identifier on the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return withCorrelation(ctx, func(c *Correlation) { c.RequestID = requestID })
}

func RequestIDFromContext(ctx context.Context) string { return CorrelationFromContext(ctx).RequestID }

// WithTraceID stores a trace identifier on the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	if ctx == nil || traceID == "" {
		return ctx
	}
	return withCorrelation(ctx, func(c *Correlation) { c.TraceID = traceID })
}

func TraceIDFromContext(ctx context.Context) string { return CorrelationFromContext(ctx).TraceID }

// WithSpanID stores the current span identifier on the context.
func WithSpanID(ctx context.Context, spanID string) context.Context {
	if ctx == nil || spanID == "" {
		return ctx
	}
	return withCorrelation(ctx, func(c *Correlation) { c.SpanID = spanID })
}

func SpanIDFromContext(ctx context.Context) string { return CorrelationFromContext(ctx).SpanID }
