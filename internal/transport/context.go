package transport

import (
	"context"

	"github.com/google/uuid"
)

type requestIDKey struct{}

// WithRequestID pins the X-Request-ID used for requests issued under ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the pinned request id, or a fresh one.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// PinnedRequestID returns the id set with WithRequestID.
func PinnedRequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}
