package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	id "grievance/pkg/domain"
	dErrors "grievance/pkg/domain-errors"
)

// RefreshTokenLength is the number of characters of an opaque refresh token.
const RefreshTokenLength = 64

// RefreshToken is stored by hash; the plaintext is only returned to the client.
type RefreshToken struct {
	ID         uuid.UUID
	UserID     id.UserID
	TokenHash  string
	DeviceName string
	IPAddress  string
	ExpiresAt  time.Time
	RevokedAt  *time.Time
	CreatedAt  time.Time
}

// NewRefreshToken stores only the hash of plaintext.
func NewRefreshToken(userID id.UserID, plaintext, deviceName, ip string, ttl time.Duration, now time.Time) (*RefreshToken, error) {
	if len(plaintext) != RefreshTokenLength {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "refresh token has wrong length")
	}
	return &RefreshToken{
		ID:         uuid.New(),
		UserID:     userID,
		TokenHash:  HashRefreshToken(plaintext),
		DeviceName: deviceName,
		IPAddress:  ip,
		ExpiresAt:  now.Add(ttl),
		CreatedAt:  now,
	}, nil
}

// HashRefreshToken returns the lookup key for a plaintext refresh token.
func HashRefreshToken(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

func (t *RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// IsValid reports whether the token is neither revoked nor expired at now.
func (t *RefreshToken) IsValid(now time.Time) bool {
	return !t.IsRevoked() && now.Before(t.ExpiresAt)
}

// CanRotate reports whether the token may be exchanged for a new pair.
func (t *RefreshToken) CanRotate(now time.Time) error {
	if !t.IsValid(now) {
		return dErrors.New(dErrors.CodeUnauthorized, "invalid or expired refresh token")
	}
	return nil
}

// ApplyRevoke marks the token revoked. Revoking twice keeps the first timestamp.
func (t *RefreshToken) ApplyRevoke(now time.Time) {
	if t.RevokedAt == nil {
		t.RevokedAt = &now
	}
}

// TokenPair is what a successful login, verification or refresh returns.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}
