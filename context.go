package storefront

import (
	"context"

	"github.com/MrEthical07/storefront/internal/transport"
)

// WithRequestID pins the X-Request-ID header for every request issued under
// ctx, including a retry after a token refresh. Without it each request
// gets a fresh UUID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return transport.WithRequestID(ctx, id)
}

// RequestID returns the id pinned on ctx, if any.
func RequestID(ctx context.Context) (string, bool) {
	return transport.PinnedRequestID(ctx)
}
