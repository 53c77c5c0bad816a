package revocation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grievance/pkg/platform/sentinel"
)

func TestInMemoryTRL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	trl := NewInMemoryTRL(func() time.Time { return now })

	require.NoError(t, trl.RevokeToken(ctx, "jti-1", time.Minute))

	revoked, err := trl.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = trl.IsTokenRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)

	now = now.Add(time.Minute)
	revoked, err = trl.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked, "entries expire with the token")

	assert.ErrorIs(t, trl.RevokeToken(ctx, "jti-3", 0), sentinel.ErrInvalidState)
	assert.NoError(t, trl.RevokeToken(ctx, "", time.Minute))
}
