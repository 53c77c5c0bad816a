package pending

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"grievance/internal/auth/models"
	"grievance/pkg/platform/sentinel"
)

type InMemory struct {
	mu      sync.Mutex
	records map[string]*models.PendingRegistration
}

func NewInMemory() *InMemory {
	return &InMemory{records: make(map[string]*models.PendingRegistration)}
}

func key(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Save replaces any pending registration for the same email.
func (s *InMemory) Save(_ context.Context, p *models.PendingRegistration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *p
	s.records[key(p.Email)] = &c
	return nil
}

func (s *InMemory) FindByEmail(_ context.Context, email string) (*models.PendingRegistration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.records[key(email)]
	if !ok {
		return nil, fmt.Errorf("pending registration %s: %w", email, sentinel.ErrNotFound)
	}
	c := *p
	return &c, nil
}

func (s *InMemory) Delete(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key(email))
	return nil
}

func (s *InMemory) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for k, p := range s.records {
		if p.IsExpired(now) {
			delete(s.records, k)
			removed++
		}
	}
	return removed, nil
}
