// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values; services read them without importing net/http.
//
//	userID := requestcontext.UserID(ctx)
//	now := requestcontext.Now(ctx)
//
// Tests inject them directly:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithPrincipal(ctx, userID, id.RoleEmployee, &entityID)
package requestcontext

import (
	"context"
	"time"

	id "grievance/pkg/domain"
)

type (
	userIDKey      struct{}
	roleKey        struct{}
	entityIDKey    struct{}
	tokenJTIKey    struct{}
	tokenExpiryKey struct{}
	clientIPKey    struct{}
	userAgentKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// -----------------------------------------------------------------------------
// Principal (user, role, entity)
// -----------------------------------------------------------------------------

// UserID retrieves the authenticated user ID. Returns the nil UUID if unset.
func UserID(ctx context.Context) id.UserID {
	if userID, ok := ctx.Value(userIDKey{}).(id.UserID); ok {
		return userID
	}
	return id.UserID{}
}

// Role retrieves the authenticated role. Returns "" if unset.
func Role(ctx context.Context) id.Role {
	if role, ok := ctx.Value(roleKey{}).(id.Role); ok {
		return role
	}
	return ""
}

// EntityID retrieves the entity of an authenticated employee, or nil.
func EntityID(ctx context.Context) *id.EntityID {
	if entityID, ok := ctx.Value(entityIDKey{}).(id.EntityID); ok {
		return &entityID
	}
	return nil
}

// WithPrincipal injects the authenticated user, role and optional entity.
func WithPrincipal(ctx context.Context, userID id.UserID, role id.Role, entityID *id.EntityID) context.Context {
	ctx = context.WithValue(ctx, userIDKey{}, userID)
	ctx = context.WithValue(ctx, roleKey{}, role)
	if entityID != nil {
		ctx = context.WithValue(ctx, entityIDKey{}, *entityID)
	}
	return ctx
}

// -----------------------------------------------------------------------------
// Access token
// -----------------------------------------------------------------------------

// TokenJTI retrieves the JWT ID of the access token used for this request.
func TokenJTI(ctx context.Context) string {
	if jti, ok := ctx.Value(tokenJTIKey{}).(string); ok {
		return jti
	}
	return ""
}

// TokenExpiry retrieves the access token expiry. Zero if unset.
func TokenExpiry(ctx context.Context) time.Time {
	if exp, ok := ctx.Value(tokenExpiryKey{}).(time.Time); ok {
		return exp
	}
	return time.Time{}
}

// WithToken injects the access token identity used by logout.
func WithToken(ctx context.Context, jti string, expiresAt time.Time) context.Context {
	ctx = context.WithValue(ctx, tokenJTIKey{}, jti)
	return context.WithValue(ctx, tokenExpiryKey{}, expiresAt)
}

// -----------------------------------------------------------------------------
// Client metadata (IP, User-Agent)
// -----------------------------------------------------------------------------

// ClientIP retrieves the caller address set by the metadata middleware.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok {
		return ip
	}
	return ""
}

func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(userAgentKey{}).(string); ok {
		return ua
	}
	return ""
}

// WithClientMetadata injects client IP and User-Agent into a context.
// Useful for service unit tests that don't run the full HTTP middleware chain.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey{}, clientIP)
	ctx = context.WithValue(ctx, userAgentKey{}, userAgent)
	return ctx
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

// RequestID retrieves the request ID, or "" outside a request.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDKey{}).(string); ok {
		return reqID
	}
	return ""
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (workers, CLI commands).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Sweepers use it to keep one
// timestamp across a batch; tests use it to pin the clock.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
