// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values. Middleware sets them; services read them. Keeping the
// package free of net/http lets services and workers import it without
// pulling in transport code.
//
// Usage in services (read values):
//
//	account := requestcontext.Account(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithAccount(ctx, "xion1...")
package requestcontext

import (
	"context"
	"time"

	id "persona-gateway/pkg/domain"
)

type (
	accountKey     struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Account retrieves the authenticated wallet address from the context.
// Returns the zero value if not set.
func Account(ctx context.Context) id.AccountID {
	if a, ok := ctx.Value(accountKey{}).(id.AccountID); ok {
		return a
	}
	return ""
}

// WithAccount injects the authenticated wallet address into the context.
func WithAccount(ctx context.Context, account id.AccountID) context.Context {
	return context.WithValue(ctx, accountKey{}, account)
}

// RequestID retrieves the request correlation ID from the context.
func RequestID(ctx context.Context) string {
	if r, ok := ctx.Value(requestIDKey{}).(string); ok {
		return r
	}
	return ""
}

// WithRequestID injects a request correlation ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now retrieves the request-scoped time from the context, falling back to
// time.Now for non-HTTP contexts (workers, tests that don't care).
//
// Aggregation stamps verifiedAt/lastUpdatedAt from this single source so a
// request observes one consistent instant.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Used by the request-time
// middleware and by tests that need deterministic timestamps.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
