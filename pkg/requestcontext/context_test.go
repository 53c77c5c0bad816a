package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	id "grievance/pkg/domain"
)

func TestPrincipal(t *testing.T) {
	ctx := context.Background()
	assert.True(t, UserID(ctx).IsNil())
	assert.Nil(t, EntityID(ctx))
	assert.Empty(t, Role(ctx))

	userID := id.UserID(uuid.New())
	entityID := id.EntityID(uuid.New())
	ctx = WithPrincipal(ctx, userID, id.RoleEmployee, &entityID)

	assert.Equal(t, userID, UserID(ctx))
	assert.Equal(t, id.RoleEmployee, Role(ctx))
	assert.Equal(t, &entityID, EntityID(ctx))
}

func TestNowFallsBackToWallClock(t *testing.T) {
	assert.WithinDuration(t, time.Now(), Now(context.Background()), time.Second)

	fixed := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, fixed, Now(WithTime(context.Background(), fixed)))
}
