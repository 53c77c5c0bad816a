package refreshtoken

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"grievance/internal/auth/models"
	"grievance/internal/platform/database"
	id "grievance/pkg/domain"
	"grievance/pkg/platform/sentinel"
	"grievance/pkg/platform/tx"
)

type Postgres struct {
	db *sqlx.DB
	tx *tx.Postgres
}

// NewPostgres constructs a PostgreSQL-backed refresh token store.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db, tx: tx.NewPostgres(db)}
}

type tokenRow struct {
	ID         uuid.UUID    `db:"id"`
	UserID     id.UserID    `db:"user_id"`
	TokenHash  string       `db:"token_hash"`
	DeviceName string       `db:"device_name"`
	IPAddress  string       `db:"ip_address"`
	ExpiresAt  time.Time    `db:"expires_at"`
	RevokedAt  sql.NullTime `db:"revoked_at"`
	CreatedAt  time.Time    `db:"created_at"`
}

func (r tokenRow) toModel() *models.RefreshToken {
	t := &models.RefreshToken{
		ID:         r.ID,
		UserID:     r.UserID,
		TokenHash:  r.TokenHash,
		DeviceName: r.DeviceName,
		IPAddress:  r.IPAddress,
		ExpiresAt:  r.ExpiresAt,
		CreatedAt:  r.CreatedAt,
	}
	if r.RevokedAt.Valid {
		at := r.RevokedAt.Time
		t.RevokedAt = &at
	}
	return t
}

func (s *Postgres) Create(ctx context.Context, token *models.RefreshToken) error {
	row := tokenRow{
		ID:         token.ID,
		UserID:     token.UserID,
		TokenHash:  token.TokenHash,
		DeviceName: token.DeviceName,
		IPAddress:  token.IPAddress,
		ExpiresAt:  token.ExpiresAt,
		CreatedAt:  token.CreatedAt,
	}
	_, err := sqlx.NamedExecContext(ctx, tx.Pick(ctx, s.db), `
		INSERT INTO refresh_tokens (id, user_id, token_hash, device_name, ip_address, expires_at, revoked_at, created_at)
		VALUES (:id, :user_id, :token_hash, :device_name, :ip_address, :expires_at, :revoked_at, :created_at)
	`, row)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("insert refresh token: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

// Consume locks the token row FOR UPDATE and revokes it in one transaction.
func (s *Postgres) Consume(ctx context.Context, tokenHash string, now time.Time) (*models.RefreshToken, error) {
	var result *models.RefreshToken
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		exec := tx.Pick(ctx, s.db)
		var row tokenRow
		err := exec.GetContext(ctx, &row, `
			SELECT id, user_id, token_hash, device_name, ip_address, expires_at, revoked_at, created_at
			FROM refresh_tokens WHERE token_hash = $1 FOR UPDATE`, tokenHash)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("refresh token not found: %w", sentinel.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("lock refresh token: %w", err)
		}
		record := row.toModel()
		if err := checkConsumable(record, now); err != nil {
			return err
		}
		if _, err := exec.ExecContext(ctx, `UPDATE refresh_tokens SET revoked_at = $2 WHERE id = $1`, record.ID, now); err != nil {
			return fmt.Errorf("revoke refresh token: %w", err)
		}
		record.ApplyRevoke(now)
		result = record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RevokeAllForUser revokes every unrevoked token of userID and returns how many.
func (s *Postgres) RevokeAllForUser(ctx context.Context, userID id.UserID, now time.Time) (int, error) {
	res, err := tx.Pick(ctx, s.db).ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL`, userID, now)
	if err != nil {
		return 0, fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count revoked tokens: %w", err)
	}
	return int(n), nil
}

func (s *Postgres) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := tx.Pick(ctx, s.db).ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted refresh tokens: %w", err)
	}
	return int(n), nil
}
