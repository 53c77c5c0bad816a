package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

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

// NewPostgres constructs a PostgreSQL-backed user store.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db, tx: tx.NewPostgres(db)}
}

type userRow struct {
	ID              id.UserID      `db:"id"`
	FirstName       string         `db:"first_name"`
	LastName        string         `db:"last_name"`
	Email           string         `db:"email"`
	Phone           string         `db:"phone"`
	PasswordHash    string         `db:"password_hash"`
	Role            string         `db:"role"`
	EntityID        *id.EntityID   `db:"entity_id"`
	IsActive        bool           `db:"is_active"`
	EmailVerifiedAt sql.NullTime   `db:"email_verified_at"`
	FCMToken        sql.NullString `db:"fcm_token"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
	DeletedAt       sql.NullTime   `db:"deleted_at"`
}

func (r userRow) toModel() *models.User {
	u := &models.User{
		ID:           r.ID,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		Email:        r.Email,
		Phone:        r.Phone,
		PasswordHash: r.PasswordHash,
		Role:         id.Role(r.Role),
		EntityID:     r.EntityID,
		IsActive:     r.IsActive,
		FCMToken:     r.FCMToken.String,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.EmailVerifiedAt.Valid {
		t := r.EmailVerifiedAt.Time
		u.EmailVerifiedAt = &t
	}
	if r.DeletedAt.Valid {
		t := r.DeletedAt.Time
		u.DeletedAt = &t
	}
	return u
}

func toRow(u *models.User) userRow {
	row := userRow{
		ID:           u.ID,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Email:        u.Email,
		Phone:        u.Phone,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		EntityID:     u.EntityID,
		IsActive:     u.IsActive,
		FCMToken:     sql.NullString{String: u.FCMToken, Valid: u.FCMToken != ""},
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
	if u.EmailVerifiedAt != nil {
		row.EmailVerifiedAt = sql.NullTime{Time: *u.EmailVerifiedAt, Valid: true}
	}
	if u.DeletedAt != nil {
		row.DeletedAt = sql.NullTime{Time: *u.DeletedAt, Valid: true}
	}
	return row
}

const selectUser = `
	SELECT id, first_name, last_name, email, phone, password_hash, role, entity_id, is_active,
		email_verified_at, fcm_token, created_at, updated_at, deleted_at
	FROM users`

func (s *Postgres) Create(ctx context.Context, u *models.User) error {
	_, err := sqlx.NamedExecContext(ctx, tx.Pick(ctx, s.db), `
		INSERT INTO users (id, first_name, last_name, email, phone, password_hash, role, entity_id, is_active,
			email_verified_at, fcm_token, created_at, updated_at, deleted_at)
		VALUES (:id, :first_name, :last_name, :email, :phone, :password_hash, :role, :entity_id, :is_active,
			:email_verified_at, :fcm_token, :created_at, :updated_at, :deleted_at)
	`, toRow(u))
	return translateWriteErr(err, "insert user")
}

func (s *Postgres) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	return s.findOne(ctx, fmt.Sprintf("user %s", userID), selectUser+` WHERE id = $1 AND deleted_at IS NULL`, userID)
}

func (s *Postgres) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, fmt.Sprintf("user with email %s", email),
		selectUser+` WHERE lower(email) = lower($1) AND deleted_at IS NULL`, email)
}

func (s *Postgres) findOne(ctx context.Context, label, query string, args ...any) (*models.User, error) {
	var row userRow
	err := tx.Pick(ctx, s.db).GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", label, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return row.toModel(), nil
}

func (s *Postgres) EmailTaken(ctx context.Context, email string, exclude *id.UserID) (bool, error) {
	var taken bool
	var err error
	if exclude != nil {
		err = tx.Pick(ctx, s.db).GetContext(ctx, &taken,
			`SELECT EXISTS (SELECT 1 FROM users WHERE lower(email) = lower($1) AND id <> $2)`, email, *exclude)
	} else {
		err = tx.Pick(ctx, s.db).GetContext(ctx, &taken,
			`SELECT EXISTS (SELECT 1 FROM users WHERE lower(email) = lower($1))`, email)
	}
	if err != nil {
		return false, fmt.Errorf("check user email: %w", err)
	}
	return taken, nil
}

// Execute locks the row FOR UPDATE, runs validate then mutate and writes the result back.
func (s *Postgres) Execute(ctx context.Context, userID id.UserID, validate func(*models.User) error, mutate func(*models.User)) (*models.User, error) {
	var result *models.User
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		exec := tx.Pick(ctx, s.db)
		var row userRow
		err := exec.GetContext(ctx, &row, selectUser+` WHERE id = $1 FOR UPDATE`, userID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("user %s: %w", userID, sentinel.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("lock user: %w", err)
		}
		u := row.toModel()
		if err := validate(u); err != nil {
			return err
		}
		mutate(u)
		_, err = sqlx.NamedExecContext(ctx, exec, `
			UPDATE users SET first_name = :first_name, last_name = :last_name, email = :email, phone = :phone,
				password_hash = :password_hash, role = :role, entity_id = :entity_id, is_active = :is_active,
				email_verified_at = :email_verified_at, fcm_token = :fcm_token, updated_at = :updated_at,
				deleted_at = :deleted_at
			WHERE id = :id
		`, toRow(u))
		if err != nil {
			return translateWriteErr(err, "update user")
		}
		result = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func whereClause(filter Filter) (string, []any) {
	var conds []string
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if !filter.IncludeDeleted {
		conds = append(conds, "deleted_at IS NULL")
	}
	if filter.Role != "" {
		conds = append(conds, "role = "+next(string(filter.Role)))
	}
	if filter.EntityID != nil {
		conds = append(conds, "entity_id = "+next(*filter.EntityID))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		p := next("%" + strings.ToLower(search) + "%")
		conds = append(conds, fmt.Sprintf("(lower(first_name) LIKE %s OR lower(last_name) LIKE %s OR lower(email) LIKE %s)", p, p, p))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List matches search case-insensitively against names and email.
func (s *Postgres) List(ctx context.Context, filter Filter, page id.PageRequest) (id.Page[*models.User], error) {
	total, err := s.Count(ctx, filter)
	if err != nil {
		return id.Page[*models.User]{}, err
	}
	where, args := whereClause(filter)
	args = append(args, page.Limit(), page.Offset())
	query := fmt.Sprintf("%s%s ORDER BY created_at DESC, email LIMIT $%d OFFSET $%d", selectUser, where, len(args)-1, len(args))

	var rows []userRow
	if err := tx.Pick(ctx, s.db).SelectContext(ctx, &rows, query, args...); err != nil {
		return id.Page[*models.User]{}, fmt.Errorf("list users: %w", err)
	}
	items := make([]*models.User, 0, len(rows))
	for _, r := range rows {
		items = append(items, r.toModel())
	}
	return id.Page[*models.User]{Items: items, Total: total, Request: page}, nil
}

func (s *Postgres) Count(ctx context.Context, filter Filter) (int, error) {
	where, args := whereClause(filter)
	var total int
	if err := tx.Pick(ctx, s.db).GetContext(ctx, &total, `SELECT count(*) FROM users`+where, args...); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return total, nil
}

// CountByEntity counts non-deleted employees per entity.
func (s *Postgres) CountByEntity(ctx context.Context, entityIDs []id.EntityID) (map[id.EntityID]int, error) {
	counts := make(map[id.EntityID]int, len(entityIDs))
	if len(entityIDs) == 0 {
		return counts, nil
	}
	keys := make([]string, 0, len(entityIDs))
	for _, e := range entityIDs {
		keys = append(keys, e.String())
	}
	var rows []struct {
		EntityID id.EntityID `db:"entity_id"`
		Count    int         `db:"count"`
	}
	err := tx.Pick(ctx, s.db).SelectContext(ctx, &rows, `
		SELECT entity_id, count(*) AS count FROM users
		WHERE role = 'employee' AND deleted_at IS NULL AND entity_id = ANY($1::uuid[])
		GROUP BY entity_id
	`, pq.Array(keys))
	if err != nil {
		return nil, fmt.Errorf("count employees by entity: %w", err)
	}
	for _, r := range rows {
		counts[r.EntityID] = r.Count
	}
	return counts, nil
}

func (s *Postgres) ListActiveEmployees(ctx context.Context, entityID id.EntityID) ([]*models.User, error) {
	var rows []userRow
	err := tx.Pick(ctx, s.db).SelectContext(ctx, &rows, selectUser+`
		WHERE role = 'employee' AND entity_id = $1 AND is_active AND deleted_at IS NULL
		ORDER BY email`, entityID)
	if err != nil {
		return nil, fmt.Errorf("list active employees: %w", err)
	}
	out := make([]*models.User, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func translateWriteErr(err error, op string) error {
	if err == nil {
		return nil
	}
	if database.IsUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, sentinel.ErrAlreadyUsed)
	}
	return fmt.Errorf("%s: %w", op, err)
}
