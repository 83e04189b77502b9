package logger

import (
	"context"

	"go.uber.org/zap"
)

type loggerContextKey struct{}

// NewContextWithLogger returns a copy of ctx carrying log.
func NewContextWithLogger(ctx context.Context, log *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, log)
}

// FromContext returns the logger carried by ctx, or fallback when ctx
// carries none.
func FromContext(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if l, ok := ctx.Value(loggerContextKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return fallback
}
