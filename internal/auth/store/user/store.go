// Package user persists accounts of every role.
//
// Error contract: FindByID and FindByEmail skip soft deleted rows and return
// sentinel.ErrNotFound; email collisions return sentinel.ErrAlreadyUsed.
package user

import (
	"context"

	"grievance/internal/auth/models"
	id "grievance/pkg/domain"
)

// Filter narrows List. Search matches first name, last name or email.
type Filter struct {
	Role           id.Role
	EntityID       *id.EntityID
	Search         string
	IncludeDeleted bool
}

type Store interface {
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	EmailTaken(ctx context.Context, email string, exclude *id.UserID) (bool, error)
	// Execute runs validate then mutate under a row lock, including soft deleted rows.
	Execute(ctx context.Context, userID id.UserID, validate func(*models.User) error, mutate func(*models.User)) (*models.User, error)
	List(ctx context.Context, filter Filter, page id.PageRequest) (id.Page[*models.User], error)
	Count(ctx context.Context, filter Filter) (int, error)
	// CountByEntity counts non-deleted employees per entity.
	CountByEntity(ctx context.Context, entityIDs []id.EntityID) (map[id.EntityID]int, error)
	ListActiveEmployees(ctx context.Context, entityID id.EntityID) ([]*models.User, error)
}
