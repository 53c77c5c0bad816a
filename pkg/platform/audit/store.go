package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Store persists audit events. Outbox-backed stores also expose the relay side.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
}

// Outbox is the relay side of a store: unpublished rows in insertion order.
type Outbox interface {
	FetchUnpublished(ctx context.Context, limit int) ([]OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// Payload is the JSON document written to the outbox and published to Kafka.
type Payload struct {
	ID         string `json:"id"`
	Category   string `json:"category"`
	Timestamp  string `json:"timestamp"`
	Action     string `json:"action"`
	ActorID    string `json:"actor_id,omitempty"`
	ActorRole  string `json:"actor_role,omitempty"`
	Subject    string `json:"subject"`
	FromStatus string `json:"from_status,omitempty"`
	ToStatus   string `json:"to_status,omitempty"`
	Reason     string `json:"reason,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	IP         string `json:"ip,omitempty"`
}

// Prepare assigns an ID, timestamp and category where missing.
func Prepare(event Event) Event {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	// Category is always derived from the action.
	event.Category = AuditEvent(event.Action).Category()
	return event
}

// MarshalPayload renders an event as its outbox payload.
func MarshalPayload(event Event) ([]byte, error) {
	p := Payload{
		ID:         event.ID.String(),
		Category:   string(event.Category),
		Timestamp:  event.Timestamp.UTC().Format(time.RFC3339Nano),
		Action:     event.Action,
		ActorRole:  string(event.ActorRole),
		Subject:    event.Subject,
		FromStatus: event.FromStatus,
		ToStatus:   event.ToStatus,
		Reason:     event.Reason,
		RequestID:  event.RequestID,
		IP:         event.IP,
	}
	if !event.ActorID.IsNil() {
		p.ActorID = event.ActorID.String()
	}
	return json.Marshal(p)
}
