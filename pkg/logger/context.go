package logger

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

// Into stores l as the logger for everything downstream of ctx.
func Into(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// With returns a context whose logger carries fields.
func With(ctx context.Context, fields ...any) context.Context {
	if len(fields) == 0 {
		return ctx
	}
	return Into(ctx, From(ctx).With(fields...))
}

// From returns the logger stored in ctx, or the process logger if none.
func From(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return LoggerWrapper()
	}
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return LoggerWrapper()
}
