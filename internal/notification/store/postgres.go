package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"grievance/internal/notification/models"
	id "grievance/pkg/domain"
	"grievance/pkg/platform/sentinel"
	"grievance/pkg/platform/tx"
)

type Postgres struct {
	db *sqlx.DB
}

// NewPostgres constructs a PostgreSQL-backed notification store.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

type notificationRow struct {
	ID        id.NotificationID `db:"id"`
	UserID    id.UserID         `db:"user_id"`
	Kind      string            `db:"kind"`
	Title     string            `db:"title"`
	Body      string            `db:"body"`
	Data      []byte            `db:"data"`
	ReadAt    sql.NullTime      `db:"read_at"`
	CreatedAt time.Time         `db:"created_at"`
}

func (r notificationRow) toModel() (*models.Notification, error) {
	n := &models.Notification{
		ID:        r.ID,
		UserID:    r.UserID,
		Kind:      models.Kind(r.Kind),
		Title:     r.Title,
		Body:      r.Body,
		CreatedAt: r.CreatedAt,
	}
	if len(r.Data) > 0 {
		if err := json.Unmarshal(r.Data, &n.Data); err != nil {
			return nil, fmt.Errorf("decode notification data: %w", err)
		}
	}
	if r.ReadAt.Valid {
		t := r.ReadAt.Time
		n.ReadAt = &t
	}
	return n, nil
}

const selectNotification = `
	SELECT id, user_id, kind, title, body, data, read_at, created_at
	FROM notifications`

func (s *Postgres) Create(ctx context.Context, n *models.Notification) error {
	data, err := json.Marshal(n.Data)
	if err != nil {
		return fmt.Errorf("encode notification data: %w", err)
	}
	if n.Data == nil {
		data = []byte("{}")
	}
	row := notificationRow{
		ID:        n.ID,
		UserID:    n.UserID,
		Kind:      string(n.Kind),
		Title:     n.Title,
		Body:      n.Body,
		Data:      data,
		CreatedAt: n.CreatedAt,
	}
	_, err = sqlx.NamedExecContext(ctx, tx.Pick(ctx, s.db), `
		INSERT INTO notifications (id, user_id, kind, title, body, data, read_at, created_at)
		VALUES (:id, :user_id, :kind, :title, :body, :data, :read_at, :created_at)
	`, row)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *Postgres) ListByUser(ctx context.Context, userID id.UserID, unreadOnly bool, page id.PageRequest) (id.Page[*models.Notification], error) {
	where := ` WHERE user_id = $1`
	if unreadOnly {
		where += ` AND read_at IS NULL`
	}
	db := tx.Pick(ctx, s.db)

	var total int
	if err := db.GetContext(ctx, &total, `SELECT COUNT(*) FROM notifications`+where, userID); err != nil {
		return id.Page[*models.Notification]{}, fmt.Errorf("count notifications: %w", err)
	}
	var rows []notificationRow
	err := db.SelectContext(ctx, &rows, selectNotification+where+` ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`,
		userID, page.Limit(), page.Offset())
	if err != nil {
		return id.Page[*models.Notification]{}, fmt.Errorf("list notifications: %w", err)
	}
	items := make([]*models.Notification, 0, len(rows))
	for _, r := range rows {
		n, err := r.toModel()
		if err != nil {
			return id.Page[*models.Notification]{}, err
		}
		items = append(items, n)
	}
	return id.Page[*models.Notification]{Items: items, Total: total, Request: page}, nil
}

func (s *Postgres) CountUnread(ctx context.Context, userID id.UserID) (int, error) {
	var count int
	err := tx.Pick(ctx, s.db).GetContext(ctx, &count,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read_at IS NULL`, userID)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead only matches notifications owned by userID.
func (s *Postgres) MarkRead(ctx context.Context, userID id.UserID, notificationID id.NotificationID, now time.Time) (*models.Notification, error) {
	var row notificationRow
	err := tx.Pick(ctx, s.db).GetContext(ctx, &row, `
		UPDATE notifications SET read_at = COALESCE(read_at, $3)
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, kind, title, body, data, read_at, created_at
	`, notificationID, userID, now)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("notification %s: %w", notificationID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("mark notification read: %w", err)
	}
	return row.toModel()
}

func (s *Postgres) MarkAllRead(ctx context.Context, userID id.UserID, now time.Time) (int, error) {
	res, err := tx.Pick(ctx, s.db).ExecContext(ctx,
		`UPDATE notifications SET read_at = $2 WHERE user_id = $1 AND read_at IS NULL`, userID, now)
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	return int(n), nil
}
