// Package tx carries a SQL transaction through context so stores can join it
// without every method taking a *sqlx.Tx parameter.
package tx

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	dErrors "grievance/pkg/domain-errors"
)

const defaultTimeout = 5 * time.Second

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sqlx.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sqlx.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sqlx.Tx)
	return tx, ok
}

// Execer is the subset of *sqlx.DB and *sqlx.Tx that stores use.
type Execer interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// Pick returns the transaction in ctx, or db when none is active.
func Pick(ctx context.Context, db *sqlx.DB) Execer {
	if tx, ok := From(ctx); ok {
		return tx
	}
	return db
}

// Runner opens a transactional boundary around fn.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Postgres runs fn inside a database transaction with a default timeout.
// Nested calls join the outer transaction.
type Postgres struct {
	db      *sqlx.DB
	timeout time.Duration
	opts    *sql.TxOptions
}

type Option func(*Postgres)

// WithTimeout bounds how long a transaction may run.
func WithTimeout(d time.Duration) Option {
	return func(p *Postgres) {
		p.timeout = d
	}
}

// NewPostgres runs transactions on db.
func NewPostgres(db *sqlx.DB, opts ...Option) *Postgres {
	p := &Postgres{db: db, timeout: defaultTimeout}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RunInTx runs fn in a transaction and commits when it returns nil. A call
// inside an active transaction joins it.
func (p *Postgres) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := From(ctx); ok {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline && p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	tx, err := p.db.BeginTxx(ctx, p.opts)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(WithTx(ctx, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to commit transaction")
	}
	return nil
}

// InMemory serialises fn calls behind a single lock. In-memory stores guard
// their own maps, so this only provides isolation between whole operations.
type InMemory struct {
	mu sync.Mutex
}

// NewInMemory returns a runner for the in-memory stores. It serializes
// transactions so read-check-write sequences stay atomic.
func NewInMemory() *InMemory {
	return &InMemory{}
}

type inMemoryKey struct{}

func (m *InMemory) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(inMemoryKey{}) != nil {
		return fn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(context.WithValue(ctx, inMemoryKey{}, struct{}{}))
}
