package pending

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grievance/internal/auth/models"
	"grievance/pkg/platform/sentinel"
)

func TestInMemoryPendingRegistrations(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	store := NewInMemory()

	first, err := models.NewPendingRegistration("a@example.com", "A", "B", "", "h1", "111111", time.Hour, now)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, first))

	replacement, err := models.NewPendingRegistration("A@example.com", "A", "B", "", "h2", "222222", time.Hour, now)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, replacement))

	found, err := store.FindByEmail(ctx, "a@EXAMPLE.com")
	require.NoError(t, err)
	assert.Equal(t, "222222", found.Code)
	assert.Equal(t, "h2", found.PasswordHash)

	stale, err := models.NewPendingRegistration("old@example.com", "O", "L", "", "h", "333333", time.Minute, now.Add(-time.Hour))
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, stale))

	removed, err := store.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	_, err = store.FindByEmail(ctx, "old@example.com")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, store.Delete(ctx, "a@example.com"))
	_, err = store.FindByEmail(ctx, "a@example.com")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
