// Package blocklist stores IP addresses refused for suspicious traffic.
package blocklist

import (
	"context"
	"sort"
	"sync"
	"time"

	"grievance/internal/ratelimit/models"
	"grievance/pkg/platform/sentinel"
)

type InMemory struct {
	mu      sync.RWMutex
	blocked map[string]time.Time
	now     func() time.Time
}

// Option configures either blocklist store.
type Option func(*settings)

type settings struct {
	now func() time.Time
}

// WithClock sets the clock block expiry is judged against. It must be the
// clock the caller used to compute the unblock time.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

func apply(opts []Option) settings {
	st := settings{now: time.Now}
	for _, opt := range opts {
		opt(&st)
	}
	return st
}

// NewInMemory constructs an in-memory blocklist.
func NewInMemory(opts ...Option) *InMemory {
	return &InMemory{blocked: make(map[string]time.Time), now: apply(opts).now}
}

// Block records ip as blocked until until, replacing any earlier entry.
func (s *InMemory) Block(_ context.Context, ip string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocked[ip] = until
	return nil
}

// BlockedUntil returns the end of a running block, or false.
func (s *InMemory) BlockedUntil(_ context.Context, ip string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	until, ok := s.blocked[ip]
	if !ok || !until.After(s.now()) {
		return time.Time{}, false, nil
	}
	return until, true, nil
}

func (s *InMemory) List(_ context.Context) ([]models.BlockedIP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	out := make([]models.BlockedIP, 0, len(s.blocked))
	for ip, until := range s.blocked {
		if !until.After(now) {
			delete(s.blocked, ip)
			continue
		}
		out = append(out, models.BlockedIP{IP: ip, BlockedUntil: until})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IP < out[j].IP })
	return out, nil
}

func (s *InMemory) Unblock(_ context.Context, ip string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.blocked[ip]
	if !ok || !until.After(s.now()) {
		return sentinel.ErrNotFound
	}
	delete(s.blocked, ip)
	return nil
}
