// Package store persists inbox notifications.
//
// Error contract: MarkRead on a notification the user does not own, or that
// does not exist, returns sentinel.ErrNotFound.
package store

import (
	"context"
	"time"

	"grievance/internal/notification/models"
	id "grievance/pkg/domain"
)

type Store interface {
	Create(ctx context.Context, n *models.Notification) error
	// ListByUser returns newest first.
	ListByUser(ctx context.Context, userID id.UserID, unreadOnly bool, page id.PageRequest) (id.Page[*models.Notification], error)
	CountUnread(ctx context.Context, userID id.UserID) (int, error)
	MarkRead(ctx context.Context, userID id.UserID, notificationID id.NotificationID, now time.Time) (*models.Notification, error)
	MarkAllRead(ctx context.Context, userID id.UserID, now time.Time) (int, error)
}
