package revocation

import (
	"context"
	"sync"
	"time"
)

// InMemoryTRL keeps revoked JTIs in a map. Expired entries are dropped lazily.
type InMemoryTRL struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	clock   Clock
}

// NewInMemoryTRL constructs an in-memory token revocation list.
func NewInMemoryTRL(clock Clock) *InMemoryTRL {
	if clock == nil {
		clock = time.Now
	}
	return &InMemoryTRL{revoked: make(map[string]time.Time), clock: clock}
}

func (t *InMemoryTRL) RevokeToken(_ context.Context, jti string, ttl time.Duration) error {
	if ok, err := admit(jti, ttl); !ok {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.revoked[jti] = t.clock().Add(ttl)
	return nil
}

func (t *InMemoryTRL) IsTokenRevoked(_ context.Context, jti string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	expiresAt, ok := t.revoked[jti]
	if !ok {
		return false, nil
	}
	if !t.clock().Before(expiresAt) {
		delete(t.revoked, jti)
		return false, nil
	}
	return true, nil
}
