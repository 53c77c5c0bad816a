package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	id "grievance/pkg/domain"
	audit "grievance/pkg/platform/audit"
	"grievance/pkg/platform/tx"
)

// Store implements audit.Store using the transactional outbox pattern.
// Append writes both the queryable audit row and the outbox row, so both
// commit or roll back with the surrounding transaction.
type Store struct {
	db *sqlx.DB
}

// New constructs a PostgreSQL-backed audit store.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

type eventRow struct {
	ID         uuid.UUID      `db:"id"`
	Category   string         `db:"category"`
	Timestamp  time.Time      `db:"occurred_at"`
	Action     string         `db:"action"`
	ActorID    uuid.NullUUID  `db:"actor_id"`
	ActorRole  sql.NullString `db:"actor_role"`
	Subject    string         `db:"subject"`
	FromStatus string         `db:"from_status"`
	ToStatus   string         `db:"to_status"`
	Reason     string         `db:"reason"`
	RequestID  string         `db:"request_id"`
	IP         string         `db:"ip"`
}

func (r eventRow) toEvent() audit.Event {
	e := audit.Event{
		ID:         r.ID,
		Category:   audit.EventCategory(r.Category),
		Timestamp:  r.Timestamp,
		Action:     r.Action,
		ActorRole:  id.Role(r.ActorRole.String),
		Subject:    r.Subject,
		FromStatus: r.FromStatus,
		ToStatus:   r.ToStatus,
		Reason:     r.Reason,
		RequestID:  r.RequestID,
		IP:         r.IP,
	}
	if r.ActorID.Valid {
		e.ActorID = id.UserID(r.ActorID.UUID)
	}
	return e
}

// Append inserts the event and its outbox row in the transaction carried by ctx,
// if any.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	event = audit.Prepare(event)
	payload, err := audit.MarshalPayload(event)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	var actorID uuid.NullUUID
	if !event.ActorID.IsNil() {
		actorID = uuid.NullUUID{UUID: uuid.UUID(event.ActorID), Valid: true}
	}
	var actorRole sql.NullString
	if event.ActorRole != "" {
		actorRole = sql.NullString{String: string(event.ActorRole), Valid: true}
	}

	exec := tx.Pick(ctx, s.db)
	_, err = exec.ExecContext(ctx, `
		INSERT INTO audit_events (
			id, category, occurred_at, action, actor_id, actor_role,
			subject, from_status, to_status, reason, request_id, ip
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
	`,
		event.ID, string(event.Category), event.Timestamp, event.Action, actorID, actorRole,
		event.Subject, event.FromStatus, event.ToStatus, event.Reason, event.RequestID, event.IP,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}

	_, err = exec.ExecContext(ctx, `
		INSERT INTO outbox (id, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.New(), event.Subject, event.Action, payload, time.Now())
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

func (s *Store) ListBySubject(ctx context.Context, subject string) ([]audit.Event, error) {
	var rows []eventRow
	err := tx.Pick(ctx, s.db).SelectContext(ctx, &rows, `
		SELECT id, category, occurred_at, action, actor_id, actor_role,
		       subject, from_status, to_status, reason, request_id, ip
		FROM audit_events
		WHERE subject = $1
		ORDER BY occurred_at ASC
	`, subject)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	events := make([]audit.Event, 0, len(rows))
	for _, r := range rows {
		events = append(events, r.toEvent())
	}
	return events, nil
}

type outboxRow struct {
	ID          uuid.UUID `db:"id"`
	EventType   string    `db:"event_type"`
	AggregateID string    `db:"aggregate_id"`
	Payload     []byte    `db:"payload"`
	CreatedAt   time.Time `db:"created_at"`
}

// FetchUnpublished locks a batch with SKIP LOCKED so several relays can run.
func (s *Store) FetchUnpublished(ctx context.Context, limit int) ([]audit.OutboxEntry, error) {
	var rows []outboxRow
	err := tx.Pick(ctx, s.db).SelectContext(ctx, &rows, `
		SELECT id, event_type, aggregate_id, payload, created_at
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch outbox: %w", err)
	}
	out := make([]audit.OutboxEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, audit.OutboxEntry(r))
	}
	return out, nil
}

func (s *Store) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	strs := make([]string, len(ids))
	for i, v := range ids {
		strs[i] = v.String()
	}
	_, err := tx.Pick(ctx, s.db).ExecContext(ctx,
		`UPDATE outbox SET published_at = $1 WHERE id = ANY($2::uuid[])`,
		at, pq.Array(strs),
	)
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}
