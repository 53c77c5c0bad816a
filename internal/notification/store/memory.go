package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"grievance/internal/notification/models"
	id "grievance/pkg/domain"
	"grievance/pkg/platform/sentinel"
)

type InMemory struct {
	mu    sync.RWMutex
	items map[id.NotificationID]*models.Notification
}

func NewInMemory() *InMemory {
	return &InMemory{items: make(map[id.NotificationID]*models.Notification)}
}

func clone(n *models.Notification) *models.Notification {
	cp := *n
	cp.Data = maps.Clone(n.Data)
	return &cp
}

func (s *InMemory) Create(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[n.ID] = clone(n)
	return nil
}

// ListByUser returns the user's notifications newest first.
func (s *InMemory) ListByUser(_ context.Context, userID id.UserID, unreadOnly bool, page id.PageRequest) (id.Page[*models.Notification], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Notification
	for _, n := range s.items {
		if n.UserID != userID || (unreadOnly && n.IsRead()) {
			continue
		}
		out = append(out, clone(n))
	}
	slices.SortFunc(out, func(a, b *models.Notification) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return id.Paginate(out, page), nil
}

func (s *InMemory) CountUnread(_ context.Context, userID id.UserID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, n := range s.items {
		if n.UserID == userID && !n.IsRead() {
			count++
		}
	}
	return count, nil
}

func (s *InMemory) MarkRead(_ context.Context, userID id.UserID, notificationID id.NotificationID, now time.Time) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.items[notificationID]
	if !ok || n.UserID != userID {
		return nil, fmt.Errorf("notification %s: %w", notificationID, sentinel.ErrNotFound)
	}
	n.MarkRead(now)
	return clone(n), nil
}

func (s *InMemory) MarkAllRead(_ context.Context, userID id.UserID, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.items {
		if n.UserID == userID && !n.IsRead() {
			n.MarkRead(now)
			count++
		}
	}
	return count, nil
}
