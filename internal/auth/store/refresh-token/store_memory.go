package refreshtoken

import (
	"context"
	"fmt"
	"sync"
	"time"

	"grievance/internal/auth/models"
	id "grievance/pkg/domain"
	"grievance/pkg/platform/sentinel"
)

var (
	sentinelAlreadyUsed = fmt.Errorf("refresh token revoked: %w", sentinel.ErrAlreadyUsed)
	sentinelExpired     = fmt.Errorf("refresh token expired: %w", sentinel.ErrExpired)
)

// InMemoryRefreshTokenStore stores refresh tokens in memory for tests/dev.
type InMemoryRefreshTokenStore struct {
	mu     sync.Mutex
	tokens map[string]*models.RefreshToken
}

func NewInMemory() *InMemoryRefreshTokenStore {
	return &InMemoryRefreshTokenStore{tokens: make(map[string]*models.RefreshToken)}
}

func (s *InMemoryRefreshTokenStore) Create(_ context.Context, token *models.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tokens[token.TokenHash]; exists {
		return fmt.Errorf("refresh token: %w", sentinel.ErrAlreadyUsed)
	}
	c := *token
	s.tokens[token.TokenHash] = &c
	return nil
}

// Consume revokes a live token and returns a copy of it.
func (s *InMemoryRefreshTokenStore) Consume(_ context.Context, tokenHash string, now time.Time) (*models.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.tokens[tokenHash]
	if !ok {
		return nil, fmt.Errorf("refresh token not found: %w", sentinel.ErrNotFound)
	}
	if err := checkConsumable(record, now); err != nil {
		return nil, err
	}
	record.ApplyRevoke(now)
	c := *record
	return &c, nil
}

func (s *InMemoryRefreshTokenStore) RevokeAllForUser(_ context.Context, userID id.UserID, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	revoked := 0
	for _, token := range s.tokens {
		if token.UserID == userID && !token.IsRevoked() {
			token.ApplyRevoke(now)
			revoked++
		}
	}
	return revoked, nil
}

// DeleteExpired removes tokens that expired before now.
func (s *InMemoryRefreshTokenStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for key, token := range s.tokens {
		if token.ExpiresAt.Before(now) {
			delete(s.tokens, key)
			deleted++
		}
	}
	return deleted, nil
}
