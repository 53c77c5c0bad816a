package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	audit "grievance/pkg/platform/audit"
)

// InMemoryStore keeps events and an outbox queue in memory for tests and dev mode.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []audit.Event
	outbox []outboxRow
}

type outboxRow struct {
	entry       audit.OutboxEntry
	publishedAt *time.Time
}

// NewInMemoryStore returns an empty event store with its own outbox.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Append records event and an unpublished outbox entry for it.
func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	payload, err := audit.MarshalPayload(event)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	s.outbox = append(s.outbox, outboxRow{entry: audit.OutboxEntry{
		ID:          uuid.New(),
		EventType:   event.Action,
		AggregateID: event.Subject,
		Payload:     payload,
		CreatedAt:   event.Timestamp,
	}})
	return nil
}

func (s *InMemoryStore) ListBySubject(_ context.Context, subject string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, e := range s.events {
		if e.Subject == subject {
			out = append(out, e)
		}
	}
	return out, nil
}

// ListAll returns every event in insertion order.
func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events...), nil
}

// FetchUnpublished returns up to limit outbox entries in insertion order.
func (s *InMemoryStore) FetchUnpublished(_ context.Context, limit int) ([]audit.OutboxEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.OutboxEntry
	for _, row := range s.outbox {
		if row.publishedAt != nil {
			continue
		}
		out = append(out, row.entry)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) MarkPublished(_ context.Context, ids []uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	for i := range s.outbox {
		if _, ok := set[s.outbox[i].entry.ID]; ok && s.outbox[i].publishedAt == nil {
			published := at
			s.outbox[i].publishedAt = &published
		}
	}
	return nil
}

// Clear drops all events and outbox entries.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
	s.outbox = nil
}
