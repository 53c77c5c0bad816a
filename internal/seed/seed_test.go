package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grievance/internal/auth/store/user"
	entitystore "grievance/internal/entity/store"
	id "grievance/pkg/domain"
	"grievance/pkg/secrets"
)

func TestRunCreatesAdminAndEntities(t *testing.T) {
	ctx := context.Background()
	users := user.NewInMemory()
	entities := entitystore.NewInMemory()
	s := New(users, entities)

	res, err := s.Run(ctx, &Admin{Email: " Admin@Example.com ", Password: "correct-horse"}, DefaultEntities)
	require.NoError(t, err)
	assert.Equal(t, Result{AdminCreated: true, EntitiesCreated: len(DefaultEntities)}, res)

	admin, err := users.FindByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, id.RoleAdmin, admin.Role)
	assert.True(t, admin.IsActive)
	assert.NotNil(t, admin.EmailVerifiedAt)
	assert.NoError(t, secrets.Verify("correct-horse", admin.PasswordHash))

	listed, err := entities.List(ctx, entitystore.Filter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, listed, len(DefaultEntities))
}

func TestRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New(user.NewInMemory(), entitystore.NewInMemory())
	admin := &Admin{Email: "admin@example.com", Password: "correct-horse"}

	_, err := s.Run(ctx, admin, DefaultEntities)
	require.NoError(t, err)

	res, err := s.Run(ctx, admin, DefaultEntities)
	require.NoError(t, err)
	assert.Equal(t, Result{EntitiesSkipped: len(DefaultEntities)}, res)
}

func TestRunRejectsWeakAdminPassword(t *testing.T) {
	s := New(user.NewInMemory(), entitystore.NewInMemory())

	_, err := s.Run(context.Background(), &Admin{Email: "admin@example.com", Password: "short"}, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 8 characters")
}

func TestRunWithoutAdmin(t *testing.T) {
	s := New(user.NewInMemory(), entitystore.NewInMemory())

	res, err := s.Run(context.Background(), nil, DefaultEntities[:1])

	require.NoError(t, err)
	assert.False(t, res.AdminCreated)
	assert.Equal(t, 1, res.EntitiesCreated)
}
