// Package service exposes a user's notification inbox.
package service

import (
	"context"
	"errors"

	"grievance/internal/notification/models"
	"grievance/internal/notification/store"
	id "grievance/pkg/domain"
	dErrors "grievance/pkg/domain-errors"
	"grievance/pkg/platform/sentinel"
	"grievance/pkg/requestcontext"
)

type Service struct {
	inbox store.Store
}

func New(inbox store.Store) *Service {
	return &Service{inbox: inbox}
}

type Inbox struct {
	Page   id.Page[*models.Notification]
	Unread int
}

// List returns a page of the user's notifications and their unread count.
func (s *Service) List(ctx context.Context, userID id.UserID, unreadOnly bool, page id.PageRequest) (*Inbox, error) {
	items, err := s.inbox.ListByUser(ctx, userID, unreadOnly, page)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list notifications")
	}
	unread, err := s.inbox.CountUnread(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count notifications")
	}
	return &Inbox{Page: items, Unread: unread}, nil
}

// MarkRead marks one notification read. Other users' notifications are not found.
func (s *Service) MarkRead(ctx context.Context, userID id.UserID, notificationID id.NotificationID) (*models.Notification, error) {
	n, err := s.inbox.MarkRead(ctx, userID, notificationID, requestcontext.Now(ctx))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "notification not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark notification read")
	}
	return n, nil
}

// MarkAllRead returns how many notifications changed.
func (s *Service) MarkAllRead(ctx context.Context, userID id.UserID) (int, error) {
	n, err := s.inbox.MarkAllRead(ctx, userID, requestcontext.Now(ctx))
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark notifications read")
	}
	return n, nil
}
