// Package store persists government entities.
//
// Error contract: lookups of missing or soft deleted rows return
// sentinel.ErrNotFound; email collisions return sentinel.ErrAlreadyUsed.
package store

import (
	"context"

	"grievance/internal/entity/models"
	id "grievance/pkg/domain"
)

// Filter narrows List. The zero value lists every non-deleted entity.
type Filter struct {
	ActiveOnly bool
}

type Store interface {
	Create(ctx context.Context, e *models.Entity) error
	FindByID(ctx context.Context, entityID id.EntityID) (*models.Entity, error)
	List(ctx context.Context, filter Filter) ([]*models.Entity, error)
	EmailTaken(ctx context.Context, email string, exclude *id.EntityID) (bool, error)
	// Execute runs validate then mutate under a row lock, including soft deleted rows.
	Execute(ctx context.Context, entityID id.EntityID, validate func(*models.Entity) error, mutate func(*models.Entity)) (*models.Entity, error)
}
