// Package pending stores citizen registrations awaiting email verification.
package pending

import (
	"context"
	"time"

	"grievance/internal/auth/models"
)

type Store interface {
	// Save inserts or replaces the registration for p.Email.
	Save(ctx context.Context, p *models.PendingRegistration) error
	FindByEmail(ctx context.Context, email string) (*models.PendingRegistration, error)
	Delete(ctx context.Context, email string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
