// Package refreshtoken persists hashed refresh tokens.
//
// Error contract: unknown hashes return sentinel.ErrNotFound, expired tokens
// sentinel.ErrExpired, revoked tokens sentinel.ErrAlreadyUsed.
package refreshtoken

import (
	"context"
	"time"

	"grievance/internal/auth/models"
	id "grievance/pkg/domain"
)

type Store interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	// Consume revokes the token with the given hash if it is still valid.
	Consume(ctx context.Context, tokenHash string, now time.Time) (*models.RefreshToken, error)
	RevokeAllForUser(ctx context.Context, userID id.UserID, now time.Time) (int, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

func checkConsumable(record *models.RefreshToken, now time.Time) error {
	if record.IsRevoked() {
		return sentinelAlreadyUsed
	}
	if !now.Before(record.ExpiresAt) {
		return sentinelExpired
	}
	return nil
}
