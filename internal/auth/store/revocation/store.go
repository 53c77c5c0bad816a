// Package revocation tracks access token JTIs revoked by logout until they expire.
package revocation

import (
	"context"
	"fmt"
	"time"

	"grievance/pkg/platform/sentinel"
)

type Clock func() time.Time

type List interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// admit reports whether a revocation must be stored. Tokens without a JTI
// cannot be looked up later, so they are skipped silently.
func admit(jti string, ttl time.Duration) (bool, error) {
	if jti == "" {
		return false, nil
	}
	if ttl <= 0 {
		return false, fmt.Errorf("revocation of %s needs a positive ttl, got %s: %w", jti, ttl, sentinel.ErrInvalidState)
	}
	return true, nil
}
