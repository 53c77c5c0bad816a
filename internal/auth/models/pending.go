package models

import (
	"strings"
	"time"

	dErrors "grievance/pkg/domain-errors"
)

// PendingRegistration holds a citizen sign-up until the emailed code is confirmed.
// There is at most one per email.
type PendingRegistration struct {
	Email        string
	FirstName    string
	LastName     string
	Phone        string
	PasswordHash string
	Code         string
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

// NewPendingRegistration holds a signup until its 6 digit code is verified.
// The email is lowercased.
func NewPendingRegistration(email, firstName, lastName, phone, passwordHash, code string, ttl time.Duration, now time.Time) (*PendingRegistration, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "email is required")
	}
	if len(code) != 6 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "verification code must be 6 digits")
	}
	if ttl <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "verification ttl must be positive")
	}
	return &PendingRegistration{
		Email:        email,
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		Phone:        strings.TrimSpace(phone),
		PasswordHash: passwordHash,
		Code:         code,
		ExpiresAt:    now.Add(ttl),
		CreatedAt:    now,
	}, nil
}

// IsExpired reports whether the code expired at or before now.
func (p *PendingRegistration) IsExpired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// CanVerify checks the submitted code. Wrong and expired codes share a message.
func (p *PendingRegistration) CanVerify(code string, now time.Time) error {
	if p.IsExpired(now) || p.Code != strings.TrimSpace(code) {
		return dErrors.New(dErrors.CodeValidation, "invalid or expired verification code")
	}
	return nil
}

// ApplyNewCode replaces the code and restarts its ttl.
func (p *PendingRegistration) ApplyNewCode(code string, ttl time.Duration, now time.Time) {
	p.Code = code
	p.ExpiresAt = now.Add(ttl)
}
