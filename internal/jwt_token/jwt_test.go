package jwttoken

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "grievance/pkg/domain"
	dErrors "grievance/pkg/domain-errors"
)

var jwtService = NewJWTService("test-signing-key", "test-issuer")
var userID = id.UserID(uuid.New())
var entityID = id.EntityID(uuid.New())
var expiresIn = time.Hour

func Test_GenerateAccessToken(t *testing.T) {
	token, err := jwtService.GenerateAccessToken(userID, id.RoleEmployee, &entityID, expiresIn)
	require.NoError(t, err)
	require.NotEmpty(t, token.Token)
	require.NotEmpty(t, token.JTI)

	claims, err := jwtService.ValidateToken(token.Token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, "employee", claims.Role)
	assert.Equal(t, entityID.String(), claims.EntityID)
	assert.Equal(t, token.JTI, claims.ID)
	assert.WithinDuration(t, time.Now().Add(expiresIn), claims.ExpiresAt.Time, time.Minute)
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := jwtService.ValidateToken("invalid-token-string")
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	token, err := jwtService.GenerateAccessToken(userID, id.RoleCitizen, nil, -time.Hour)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token.Token)
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "token has expired"))
}

func Test_ValidateToken_WrongKey(t *testing.T) {
	other := NewJWTService("another-key", "test-issuer")
	token, err := other.GenerateAccessToken(userID, id.RoleCitizen, nil, expiresIn)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token.Token)
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
}

func Test_ValidateToken_WrongIssuer(t *testing.T) {
	other := NewJWTService("test-signing-key", "someone-else")
	token, err := other.GenerateAccessToken(userID, id.RoleAdmin, nil, expiresIn)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token.Token)
	require.Error(t, err)
}

func Test_Adapter(t *testing.T) {
	adapter := NewJWTServiceAdapter(jwtService)

	t.Run("citizen has no entity", func(t *testing.T) {
		token, err := jwtService.GenerateAccessToken(userID, id.RoleCitizen, nil, expiresIn)
		require.NoError(t, err)
		claims, err := adapter.ValidateToken(token.Token)
		require.NoError(t, err)
		assert.Equal(t, userID, claims.UserID)
		assert.Equal(t, id.RoleCitizen, claims.Role)
		assert.Nil(t, claims.EntityID)
		assert.Equal(t, token.JTI, claims.JTI)
		assert.WithinDuration(t, token.ExpiresAt, claims.ExpiresAt, time.Second)
	})

	t.Run("employee carries entity", func(t *testing.T) {
		token, err := jwtService.GenerateAccessToken(userID, id.RoleEmployee, &entityID, expiresIn)
		require.NoError(t, err)
		claims, err := adapter.ValidateToken(token.Token)
		require.NoError(t, err)
		require.NotNil(t, claims.EntityID)
		assert.Equal(t, entityID, *claims.EntityID)
	})
}
