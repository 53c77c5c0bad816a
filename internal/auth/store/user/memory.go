package user

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"grievance/internal/auth/models"
	id "grievance/pkg/domain"
	"grievance/pkg/platform/sentinel"
)

type InMemory struct {
	mu    sync.RWMutex
	users map[id.UserID]*models.User
}

// NewInMemory constructs an in-memory user store.
func NewInMemory() *InMemory {
	return &InMemory{users: make(map[id.UserID]*models.User)}
}

func clone(u *models.User) *models.User {
	c := *u
	return &c
}

// Create fails with sentinel.ErrAlreadyUsed when the email belongs to any account.
func (s *InMemory) Create(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emailTakenLocked(u.Email, nil) {
		return fmt.Errorf("user email %s: %w", u.Email, sentinel.ErrAlreadyUsed)
	}
	s.users[u.ID] = clone(u)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok || u.IsDeleted() {
		return nil, fmt.Errorf("user %s: %w", userID, sentinel.ErrNotFound)
	}
	return clone(u), nil
}

func (s *InMemory) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if !u.IsDeleted() && strings.EqualFold(u.Email, email) {
			return clone(u), nil
		}
	}
	return nil, fmt.Errorf("user with email %s: %w", email, sentinel.ErrNotFound)
}

func (s *InMemory) EmailTaken(_ context.Context, email string, exclude *id.UserID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.emailTakenLocked(email, exclude), nil
}

func (s *InMemory) emailTakenLocked(email string, exclude *id.UserID) bool {
	for _, u := range s.users {
		if exclude != nil && u.ID == *exclude {
			continue
		}
		if strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

// Execute mutates a copy of the user under the store lock when validate passes.
func (s *InMemory) Execute(_ context.Context, userID id.UserID, validate func(*models.User) error, mutate func(*models.User)) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, sentinel.ErrNotFound)
	}
	working := clone(u)
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	if s.emailTakenLocked(working.Email, &working.ID) {
		return nil, fmt.Errorf("user email %s: %w", working.Email, sentinel.ErrAlreadyUsed)
	}
	s.users[userID] = working
	return clone(working), nil
}

func (s *InMemory) List(_ context.Context, filter Filter, page id.PageRequest) (id.Page[*models.User], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := s.matchLocked(filter)
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].Email < matched[j].Email
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return id.Paginate(matched, page), nil
}

func (s *InMemory) Count(_ context.Context, filter Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.matchLocked(filter)), nil
}

func (s *InMemory) matchLocked(filter Filter) []*models.User {
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	out := make([]*models.User, 0)
	for _, u := range s.users {
		if u.IsDeleted() && !filter.IncludeDeleted {
			continue
		}
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.EntityID != nil && (u.EntityID == nil || *u.EntityID != *filter.EntityID) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(u.FirstName), search) &&
			!strings.Contains(strings.ToLower(u.LastName), search) &&
			!strings.Contains(strings.ToLower(u.Email), search) {
			continue
		}
		out = append(out, clone(u))
	}
	return out
}

func (s *InMemory) CountByEntity(_ context.Context, entityIDs []id.EntityID) (map[id.EntityID]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := make(map[id.EntityID]struct{}, len(entityIDs))
	for _, e := range entityIDs {
		wanted[e] = struct{}{}
	}
	counts := make(map[id.EntityID]int, len(entityIDs))
	for _, u := range s.users {
		if u.IsDeleted() || u.Role != id.RoleEmployee || u.EntityID == nil {
			continue
		}
		if _, ok := wanted[*u.EntityID]; ok {
			counts[*u.EntityID]++
		}
	}
	return counts, nil
}

func (s *InMemory) ListActiveEmployees(_ context.Context, entityID id.EntityID) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.User, 0)
	for _, u := range s.users {
		if u.IsDeleted() || !u.IsActive || u.Role != id.RoleEmployee || u.EntityID == nil || *u.EntityID != entityID {
			continue
		}
		out = append(out, clone(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}
