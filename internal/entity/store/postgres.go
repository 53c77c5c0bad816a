package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"grievance/internal/entity/models"
	"grievance/internal/platform/database"
	id "grievance/pkg/domain"
	"grievance/pkg/platform/sentinel"
	"grievance/pkg/platform/tx"
)

type Postgres struct {
	db *sqlx.DB
	tx *tx.Postgres
}

// NewPostgres constructs a PostgreSQL-backed entity store.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db, tx: tx.NewPostgres(db)}
}

type entityRow struct {
	ID          id.EntityID  `db:"id"`
	Name        string       `db:"name"`
	Type        string       `db:"type"`
	Email       string       `db:"email"`
	Phone       string       `db:"phone"`
	Description string       `db:"description"`
	IsActive    bool         `db:"is_active"`
	CreatedAt   time.Time    `db:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at"`
	DeletedAt   sql.NullTime `db:"deleted_at"`
}

func (r entityRow) toModel() *models.Entity {
	e := &models.Entity{
		ID:          r.ID,
		Name:        r.Name,
		Type:        models.Type(r.Type),
		Email:       r.Email,
		Phone:       r.Phone,
		Description: r.Description,
		IsActive:    r.IsActive,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.DeletedAt.Valid {
		t := r.DeletedAt.Time
		e.DeletedAt = &t
	}
	return e
}

func toRow(e *models.Entity) entityRow {
	row := entityRow{
		ID:          e.ID,
		Name:        e.Name,
		Type:        string(e.Type),
		Email:       e.Email,
		Phone:       e.Phone,
		Description: e.Description,
		IsActive:    e.IsActive,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
	if e.DeletedAt != nil {
		row.DeletedAt = sql.NullTime{Time: *e.DeletedAt, Valid: true}
	}
	return row
}

const selectEntity = `
	SELECT id, name, type, email, phone, description, is_active, created_at, updated_at, deleted_at
	FROM entities`

func (s *Postgres) Create(ctx context.Context, e *models.Entity) error {
	_, err := sqlx.NamedExecContext(ctx, tx.Pick(ctx, s.db), `
		INSERT INTO entities (id, name, type, email, phone, description, is_active, created_at, updated_at, deleted_at)
		VALUES (:id, :name, :type, :email, :phone, :description, :is_active, :created_at, :updated_at, :deleted_at)
	`, toRow(e))
	return translateWriteErr(err, "insert entity")
}

func (s *Postgres) FindByID(ctx context.Context, entityID id.EntityID) (*models.Entity, error) {
	var row entityRow
	err := tx.Pick(ctx, s.db).GetContext(ctx, &row, selectEntity+` WHERE id = $1 AND deleted_at IS NULL`, entityID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entity %s: %w", entityID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find entity: %w", err)
	}
	return row.toModel(), nil
}

func (s *Postgres) List(ctx context.Context, filter Filter) ([]*models.Entity, error) {
	query := selectEntity + ` WHERE deleted_at IS NULL`
	if filter.ActiveOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY name`

	var rows []entityRow
	if err := tx.Pick(ctx, s.db).SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	out := make([]*models.Entity, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *Postgres) EmailTaken(ctx context.Context, email string, exclude *id.EntityID) (bool, error) {
	var taken bool
	var err error
	if exclude != nil {
		err = tx.Pick(ctx, s.db).GetContext(ctx, &taken,
			`SELECT EXISTS (SELECT 1 FROM entities WHERE lower(email) = lower($1) AND id <> $2)`, email, *exclude)
	} else {
		err = tx.Pick(ctx, s.db).GetContext(ctx, &taken,
			`SELECT EXISTS (SELECT 1 FROM entities WHERE lower(email) = lower($1))`, email)
	}
	if err != nil {
		return false, fmt.Errorf("check entity email: %w", err)
	}
	return taken, nil
}

func (s *Postgres) Execute(ctx context.Context, entityID id.EntityID, validate func(*models.Entity) error, mutate func(*models.Entity)) (*models.Entity, error) {
	var result *models.Entity
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		exec := tx.Pick(ctx, s.db)
		var row entityRow
		err := exec.GetContext(ctx, &row, selectEntity+` WHERE id = $1 FOR UPDATE`, entityID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("entity %s: %w", entityID, sentinel.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("lock entity: %w", err)
		}
		e := row.toModel()
		if err := validate(e); err != nil {
			return err
		}
		mutate(e)
		_, err = sqlx.NamedExecContext(ctx, exec, `
			UPDATE entities SET name = :name, type = :type, email = :email, phone = :phone,
				description = :description, is_active = :is_active, updated_at = :updated_at, deleted_at = :deleted_at
			WHERE id = :id
		`, toRow(e))
		if err != nil {
			return translateWriteErr(err, "update entity")
		}
		result = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
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
