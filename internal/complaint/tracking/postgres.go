package tracking

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"grievance/pkg/platform/tx"
)

// PostgresSequence advances tracking_sequences with an upsert. The conflicting
// row is locked by the UPDATE, which serialises creators within a transaction.
type PostgresSequence struct {
	db *sqlx.DB
}

// NewPostgresSequence keeps one row per year in tracking_sequences.
func NewPostgresSequence(db *sqlx.DB) *PostgresSequence {
	return &PostgresSequence{db: db}
}

const nextQuery = `
INSERT INTO tracking_sequences (year, last_value) VALUES ($1, 1)
ON CONFLICT (year) DO UPDATE SET last_value = tracking_sequences.last_value + 1
RETURNING last_value`

// Next increments the row for year with an upsert, which also locks it
// until the transaction in ctx ends.
func (s *PostgresSequence) Next(ctx context.Context, year int) (int, error) {
	var n int
	if err := tx.Pick(ctx, s.db).QueryRowxContext(ctx, nextQuery, year).Scan(&n); err != nil {
		return 0, fmt.Errorf("advance tracking sequence %d: %w", year, err)
	}
	return n, nil
}
