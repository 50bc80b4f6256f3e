// Package requestcontext provides HTTP-independent accessors for
// request-scoped values.
//
// Middleware sets these values; services read them. Keeping the package free
// of net/http lets services and tests inject values without running the full
// middleware chain.
package requestcontext

import (
	"context"
	"time"

	id "primegate/pkg/domain"
)

type (
	principalIDKey struct{}
	tokenIDKey     struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for tests that need raw context.WithValue.
var (
	ContextKeyPrincipalID = principalIDKey{}
	ContextKeyTokenID     = tokenIDKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// PrincipalID retrieves the authenticated principal from the context.
// Returns the zero value if the request is unauthenticated.
func PrincipalID(ctx context.Context) id.PrincipalID {
	if pid, ok := ctx.Value(ContextKeyPrincipalID).(id.PrincipalID); ok {
		return pid
	}
	return ""
}

// WithPrincipalID injects an authenticated principal into the context.
func WithPrincipalID(ctx context.Context, pid id.PrincipalID) context.Context {
	return context.WithValue(ctx, ContextKeyPrincipalID, pid)
}

// TokenID retrieves the session token identifier (jti) from the context.
func TokenID(ctx context.Context) string {
	if jti, ok := ctx.Value(ContextKeyTokenID).(string); ok {
		return jti
	}
	return ""
}

// WithTokenID injects a session token identifier into the context.
func WithTokenID(ctx context.Context, jti string) context.Context {
	return context.WithValue(ctx, ContextKeyTokenID, jti)
}

// RequestID retrieves the correlation ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a correlation ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from the context, falling back to
// time.Now for non-HTTP contexts such as workers and tests.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a fixed time into the context. Useful for service unit
// tests and for batch operations that need one consistent timestamp.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
