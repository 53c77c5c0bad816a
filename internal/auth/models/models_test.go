package models

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "grievance/pkg/domain"
	dErrors "grievance/pkg/domain-errors"
)

var now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func validParams() NewUserParams {
	return NewUserParams{
		FirstName:    "Amal",
		LastName:     "Haddad",
		Email:        "  Amal@Example.com ",
		PasswordHash: "hash",
		Role:         id.RoleCitizen,
		IsActive:     true,
		Verified:     true,
	}
}

func TestNewUser(t *testing.T) {
	t.Run("normalizes email and marks verified", func(t *testing.T) {
		u, err := NewUser(id.UserID(uuid.New()), validParams(), now)
		require.NoError(t, err)
		assert.Equal(t, "amal@example.com", u.Email)
		assert.Equal(t, "Amal Haddad", u.FullName())
		require.NotNil(t, u.EmailVerifiedAt)
		assert.Equal(t, now, *u.EmailVerifiedAt)
	})

	t.Run("employee requires entity", func(t *testing.T) {
		p := validParams()
		p.Role = id.RoleEmployee
		_, err := NewUser(id.UserID(uuid.New()), p, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

		entityID := id.EntityID(uuid.New())
		p.EntityID = &entityID
		u, err := NewUser(id.UserID(uuid.New()), p, now)
		require.NoError(t, err)
		assert.Equal(t, entityID, *u.EntityID)
	})

	t.Run("citizen cannot carry entity", func(t *testing.T) {
		p := validParams()
		entityID := id.EntityID(uuid.New())
		p.EntityID = &entityID
		_, err := NewUser(id.UserID(uuid.New()), p, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("nil id rejected", func(t *testing.T) {
		_, err := NewUser(id.UserID{}, validParams(), now)
		assert.Error(t, err)
	})
}

func TestUserLoginChecks(t *testing.T) {
	u, err := NewUser(id.UserID(uuid.New()), validParams(), now)
	require.NoError(t, err)

	assert.NoError(t, u.CanLogin())
	assert.True(t, dErrors.HasCode(u.CanLoginAsAdmin(), dErrors.CodeForbidden))

	u.ApplySetActive(false, now)
	assert.True(t, dErrors.HasCode(u.CanLogin(), dErrors.CodeForbidden))

	u.ApplyRestore(now)
	u.Role = id.RoleAdmin
	assert.NoError(t, u.CanLoginAsAdmin())

	u.ApplyDelete(now)
	assert.True(t, dErrors.HasCode(u.CanLogin(), dErrors.CodeUnauthorized))
}

func TestUserDeleteRestore(t *testing.T) {
	u, err := NewUser(id.UserID(uuid.New()), validParams(), now)
	require.NoError(t, err)
	u.ApplyFCMToken("device-token", now)

	require.True(t, dErrors.HasCode(u.CanRestore(), dErrors.CodeConflict))
	require.NoError(t, u.CanDelete())
	u.ApplyDelete(now)
	assert.True(t, u.IsDeleted())
	assert.False(t, u.IsActive)
	assert.False(t, u.HasPushToken())
	assert.True(t, dErrors.HasCode(u.CanDelete(), dErrors.CodeNotFound))

	require.NoError(t, u.CanRestore())
	u.ApplyRestore(now.Add(time.Hour))
	assert.False(t, u.IsDeleted())
	assert.True(t, u.IsActive)
}

func TestPendingRegistration(t *testing.T) {
	p, err := NewPendingRegistration("New@Example.com", "A", "B", "", "hash", "123456", time.Hour, now)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", p.Email)

	assert.NoError(t, p.CanVerify("123456", now.Add(59*time.Minute)))
	assert.NoError(t, p.CanVerify(" 123456 ", now))
	assert.True(t, dErrors.HasCode(p.CanVerify("654321", now), dErrors.CodeValidation))
	assert.True(t, dErrors.HasCode(p.CanVerify("123456", now.Add(time.Hour)), dErrors.CodeValidation))

	p.ApplyNewCode("999999", time.Hour, now.Add(2*time.Hour))
	assert.NoError(t, p.CanVerify("999999", now.Add(2*time.Hour+time.Minute)))

	_, err = NewPendingRegistration("x@example.com", "A", "B", "", "hash", "12", time.Hour, now)
	assert.Error(t, err)
}

func TestRefreshToken(t *testing.T) {
	plaintext := strings.Repeat("a", RefreshTokenLength)
	tok, err := NewRefreshToken(id.UserID(uuid.New()), plaintext, "Chrome on macOS", "10.0.0.1", time.Hour, now)
	require.NoError(t, err)

	assert.Equal(t, HashRefreshToken(plaintext), tok.TokenHash)
	assert.Len(t, tok.TokenHash, 64)
	assert.NotEqual(t, plaintext, tok.TokenHash)

	assert.NoError(t, tok.CanRotate(now))
	assert.Error(t, tok.CanRotate(now.Add(time.Hour)))

	tok.ApplyRevoke(now)
	first := *tok.RevokedAt
	tok.ApplyRevoke(now.Add(time.Minute))
	assert.Equal(t, first, *tok.RevokedAt)
	assert.True(t, dErrors.HasCode(tok.CanRotate(now), dErrors.CodeUnauthorized))

	_, err = NewRefreshToken(id.UserID(uuid.New()), "short", "", "", time.Hour, now)
	assert.Error(t, err)
}
