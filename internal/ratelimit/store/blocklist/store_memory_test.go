package blocklist

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grievance/internal/ratelimit/models"
	"grievance/pkg/platform/sentinel"
)

func TestInMemoryBlocklist(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	s := NewInMemory(WithClock(func() time.Time { return now }))

	require.NoError(t, s.Block(ctx, "10.0.0.2", now.Add(time.Hour)))
	require.NoError(t, s.Block(ctx, "10.0.0.1", now.Add(time.Minute)))

	until, blocked, err := s.BlockedUntil(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, blocked)
	assert.Equal(t, now.Add(time.Hour), until)

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.BlockedIP{
		{IP: "10.0.0.1", BlockedUntil: now.Add(time.Minute)},
		{IP: "10.0.0.2", BlockedUntil: now.Add(time.Hour)},
	}, list)

	now = now.Add(2 * time.Minute)
	_, blocked, err = s.BlockedUntil(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, blocked)
	assert.ErrorIs(t, s.Unblock(ctx, "10.0.0.1"), sentinel.ErrNotFound)

	require.NoError(t, s.Unblock(ctx, "10.0.0.2"))
	list, err = s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}
