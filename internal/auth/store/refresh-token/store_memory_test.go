package refreshtoken

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"grievance/internal/auth/models"
	id "grievance/pkg/domain"
	"grievance/pkg/platform/sentinel"
)

type InMemoryRefreshTokenStoreSuite struct {
	suite.Suite
	store *InMemoryRefreshTokenStore
	ctx   context.Context
	now   time.Time
	user  id.UserID
}

func (s *InMemoryRefreshTokenStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	s.user = id.UserID(uuid.New())
}

func TestInMemoryRefreshTokenStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryRefreshTokenStoreSuite))
}

func (s *InMemoryRefreshTokenStoreSuite) issue(char string, ttl time.Duration) (string, *models.RefreshToken) {
	plaintext := strings.Repeat(char, models.RefreshTokenLength)
	token, err := models.NewRefreshToken(s.user, plaintext, "Firefox on Linux", "127.0.0.1", ttl, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(s.ctx, token))
	return plaintext, token
}

func (s *InMemoryRefreshTokenStoreSuite) TestConsume() {
	s.Run("valid token is revoked once", func() {
		plaintext, _ := s.issue("a", time.Hour)
		consumed, err := s.store.Consume(s.ctx, models.HashRefreshToken(plaintext), s.now)
		s.Require().NoError(err)
		s.True(consumed.IsRevoked())

		_, err = s.store.Consume(s.ctx, models.HashRefreshToken(plaintext), s.now)
		s.ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("expired token", func() {
		plaintext, _ := s.issue("b", time.Minute)
		_, err := s.store.Consume(s.ctx, models.HashRefreshToken(plaintext), s.now.Add(time.Minute))
		s.ErrorIs(err, sentinel.ErrExpired)
	})

	s.Run("unknown token", func() {
		_, err := s.store.Consume(s.ctx, models.HashRefreshToken("nope"), s.now)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryRefreshTokenStoreSuite) TestRevokeAllForUser() {
	first, _ := s.issue("c", time.Hour)
	second, _ := s.issue("d", time.Hour)
	other, err := models.NewRefreshToken(id.UserID(uuid.New()), strings.Repeat("e", models.RefreshTokenLength), "", "", time.Hour, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(s.ctx, other))

	n, err := s.store.RevokeAllForUser(s.ctx, s.user, s.now)
	s.Require().NoError(err)
	s.Equal(2, n)

	for _, p := range []string{first, second} {
		_, err := s.store.Consume(s.ctx, models.HashRefreshToken(p), s.now)
		s.ErrorIs(err, sentinel.ErrAlreadyUsed)
	}
	_, err = s.store.Consume(s.ctx, other.TokenHash, s.now)
	s.NoError(err)
}

func (s *InMemoryRefreshTokenStoreSuite) TestDeleteExpired() {
	s.issue("f", time.Minute)
	s.issue("g", 48*time.Hour)

	n, err := s.store.DeleteExpired(s.ctx, s.now.Add(time.Hour))
	s.Require().NoError(err)
	s.Equal(1, n)
}
