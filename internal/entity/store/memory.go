package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"grievance/internal/entity/models"
	id "grievance/pkg/domain"
	"grievance/pkg/platform/sentinel"
)

type InMemory struct {
	mu       sync.RWMutex
	entities map[id.EntityID]*models.Entity
}

// NewInMemory constructs an in-memory entity store.
func NewInMemory() *InMemory {
	return &InMemory{entities: make(map[id.EntityID]*models.Entity)}
}

func (s *InMemory) Create(_ context.Context, e *models.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emailTakenLocked(e.Email, nil) {
		return fmt.Errorf("entity email %s: %w", e.Email, sentinel.ErrAlreadyUsed)
	}
	clone := *e
	s.entities[e.ID] = &clone
	return nil
}

func (s *InMemory) FindByID(_ context.Context, entityID id.EntityID) (*models.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[entityID]
	if !ok || e.IsDeleted() {
		return nil, fmt.Errorf("entity %s: %w", entityID, sentinel.ErrNotFound)
	}
	clone := *e
	return &clone, nil
}

func (s *InMemory) List(_ context.Context, filter Filter) ([]*models.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Entity, 0, len(s.entities))
	for _, e := range s.entities {
		if e.IsDeleted() || (filter.ActiveOnly && !e.IsActive) {
			continue
		}
		clone := *e
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// EmailTaken checks every entity, deleted ones included, except except.
func (s *InMemory) EmailTaken(_ context.Context, email string, exclude *id.EntityID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.emailTakenLocked(email, exclude), nil
}

func (s *InMemory) emailTakenLocked(email string, exclude *id.EntityID) bool {
	for _, e := range s.entities {
		if exclude != nil && e.ID == *exclude {
			continue
		}
		if strings.EqualFold(e.Email, email) {
			return true
		}
	}
	return false
}

func (s *InMemory) Execute(_ context.Context, entityID id.EntityID, validate func(*models.Entity) error, mutate func(*models.Entity)) (*models.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[entityID]
	if !ok {
		return nil, fmt.Errorf("entity %s: %w", entityID, sentinel.ErrNotFound)
	}
	working := *e
	if err := validate(&working); err != nil {
		return nil, err
	}
	mutate(&working)
	if s.emailTakenLocked(working.Email, &working.ID) {
		return nil, fmt.Errorf("entity email %s: %w", working.Email, sentinel.ErrAlreadyUsed)
	}
	s.entities[entityID] = &working
	clone := working
	return &clone, nil
}
