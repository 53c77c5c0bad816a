package pending

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"grievance/internal/auth/models"
	"grievance/pkg/platform/sentinel"
	"grievance/pkg/platform/tx"
)

type Postgres struct {
	db *sqlx.DB
}

// NewPostgres constructs a PostgreSQL-backed pending registration store.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

type pendingRow struct {
	Email        string    `db:"email"`
	FirstName    string    `db:"first_name"`
	LastName     string    `db:"last_name"`
	Phone        string    `db:"phone"`
	PasswordHash string    `db:"password_hash"`
	Code         string    `db:"code"`
	ExpiresAt    time.Time `db:"expires_at"`
	CreatedAt    time.Time `db:"created_at"`
}

// Save upserts on email.
func (s *Postgres) Save(ctx context.Context, p *models.PendingRegistration) error {
	_, err := sqlx.NamedExecContext(ctx, tx.Pick(ctx, s.db), `
		INSERT INTO pending_registrations (email, first_name, last_name, phone, password_hash, code, expires_at, created_at)
		VALUES (:email, :first_name, :last_name, :phone, :password_hash, :code, :expires_at, :created_at)
		ON CONFLICT (email) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			phone = EXCLUDED.phone,
			password_hash = EXCLUDED.password_hash,
			code = EXCLUDED.code,
			expires_at = EXCLUDED.expires_at,
			created_at = EXCLUDED.created_at
	`, pendingRow(*p))
	if err != nil {
		return fmt.Errorf("save pending registration: %w", err)
	}
	return nil
}

func (s *Postgres) FindByEmail(ctx context.Context, email string) (*models.PendingRegistration, error) {
	var row pendingRow
	err := tx.Pick(ctx, s.db).GetContext(ctx, &row, `
		SELECT email, first_name, last_name, phone, password_hash, code, expires_at, created_at
		FROM pending_registrations WHERE email = lower($1)`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("pending registration %s: %w", email, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find pending registration: %w", err)
	}
	p := models.PendingRegistration(row)
	return &p, nil
}

func (s *Postgres) Delete(ctx context.Context, email string) error {
	if _, err := tx.Pick(ctx, s.db).ExecContext(ctx, `DELETE FROM pending_registrations WHERE email = lower($1)`, email); err != nil {
		return fmt.Errorf("delete pending registration: %w", err)
	}
	return nil
}

// DeleteExpired removes registrations expired at now and returns how many.
func (s *Postgres) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := tx.Pick(ctx, s.db).ExecContext(ctx, `DELETE FROM pending_registrations WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired registrations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted registrations: %w", err)
	}
	return int(n), nil
}
