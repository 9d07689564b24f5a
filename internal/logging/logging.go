// Package logging builds the process logger and carries request ids through contexts.
package logging

import (
	"context"

	"go.uber.org/zap"
)

type key string

var requestIDKey key = "request_id"

// New returns a console logger at debug level when development is set and a
// production JSON logger otherwise.
func New(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// NewContextWithID stores a request id in ctx.
func NewContextWithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// IDFromContext returns the request id stored by NewContextWithID.
func IDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok
}

// WithContext returns logger annotated with the request id found in ctx, if any.
func WithContext(ctx context.Context, logger *zap.Logger) *zap.Logger {
	if id, ok := IDFromContext(ctx); ok {
		return logger.With(zap.String("request_id", id))
	}
	return logger
}
