// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// This package defines context keys and getter/setter functions for values
// that are typically set by middleware but consumed by services. By keeping
// this package free of net/http dependencies, services can import only what
// they need without pulling in HTTP-related code.
//
// Usage in services (read values):
//
//	caller := requestcontext.Account(ctx)
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithAccount(ctx, account)
//	ctx = requestcontext.WithRequestID(ctx, requestID)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithClientMetadata(ctx, "10.0.0.1", "curl/8.4")
package requestcontext

import (
	"context"
	"time"

	id "vitae/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	accountKey     struct{}
	clientIPKey    struct{}
	userAgentKey   struct{}
	clientLabelKey struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyAccount     = accountKey{}
	ContextKeyClientIP    = clientIPKey{}
	ContextKeyUserAgent   = userAgentKey{}
	ContextKeyClientLabel = clientLabelKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// -----------------------------------------------------------------------------
// Caller identity
// -----------------------------------------------------------------------------

// Account retrieves the authenticated caller account from the context.
// Returns the zero value (nil UUID) if not set; services treat that as an
// unauthenticated call.
func Account(ctx context.Context) id.AccountID {
	if account, ok := ctx.Value(ContextKeyAccount).(id.AccountID); ok {
		return account
	}
	return id.AccountID{}
}

// WithAccount injects the caller account into the context.
func WithAccount(ctx context.Context, account id.AccountID) context.Context {
	return context.WithValue(ctx, ContextKeyAccount, account)
}

// -----------------------------------------------------------------------------
// Client metadata (IP, User-Agent, parsed label)
// -----------------------------------------------------------------------------

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

// UserAgent retrieves the raw User-Agent from the context.
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(ContextKeyUserAgent).(string); ok {
		return ua
	}
	return ""
}

// ClientLabel retrieves the compact parsed client description
// ("Firefox 131 / Linux", "bot: Googlebot") set by the device middleware.
// Events carry it for audit context.
func ClientLabel(ctx context.Context) string {
	if label, ok := ctx.Value(ContextKeyClientLabel).(string); ok {
		return label
	}
	return ""
}

// WithClientMetadata injects client IP and User-Agent into a context.
// Useful for service unit tests that don't run the full HTTP middleware chain.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyClientIP, clientIP)
	ctx = context.WithValue(ctx, ContextKeyUserAgent, userAgent)
	return ctx
}

// WithClientLabel injects the parsed client label into a context.
func WithClientLabel(ctx context.Context, label string) context.Context {
	return context.WithValue(ctx, ContextKeyClientLabel, label)
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// -----------------------------------------------------------------------------
// Request time
// -----------------------------------------------------------------------------

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (for non-HTTP contexts like workers
// and tests). Event timestamps and reward bookkeeping read time through
// here so a whole call observes one instant.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
