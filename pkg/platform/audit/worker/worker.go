// Package worker relays committed audit outbox rows to the event stream.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	audit "grievance/pkg/platform/audit"
	"grievance/pkg/platform/tx"
)

// Producer publishes one record keyed by the aggregate.
type Producer interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Worker relays audit outbox rows to a Producer in order.
type Worker struct {
	outbox    audit.Outbox
	producer  Producer
	tx        tx.Runner
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

type Option func(*Worker)

// WithInterval sets the poll interval. Non-positive values keep the default.
func WithInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithBatchSize caps how many outbox rows one poll relays.
func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// NewWorker relays audit outbox rows to producer.
func NewWorker(outbox audit.Outbox, producer Producer, runner tx.Runner, opts ...Option) *Worker {
	w := &Worker{
		outbox:    outbox,
		producer:  producer,
		tx:        runner,
		logger:    slog.Default(),
		interval:  2 * time.Second,
		batchSize: 100,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		if _, err := w.RelayOnce(ctx); err != nil && ctx.Err() == nil {
			w.logger.ErrorContext(ctx, "audit outbox relay failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RelayOnce publishes one batch and returns how many rows were marked.
// Rows are marked only up to the first publish failure, keeping order.
func (w *Worker) RelayOnce(ctx context.Context) (int, error) {
	var published int
	err := w.tx.RunInTx(ctx, func(ctx context.Context) error {
		entries, err := w.outbox.FetchUnpublished(ctx, w.batchSize)
		if err != nil {
			return err
		}
		ids := make([]uuid.UUID, 0, len(entries))
		var pubErr error
		for _, e := range entries {
			if pubErr = w.producer.Publish(ctx, e.AggregateID, e.Payload); pubErr != nil {
				break
			}
			ids = append(ids, e.ID)
		}
		if err := w.outbox.MarkPublished(ctx, ids, time.Now()); err != nil {
			return err
		}
		published = len(ids)
		if pubErr != nil {
			w.logger.WarnContext(ctx, "audit publish interrupted", "published", published, "error", pubErr)
		}
		return nil
	})
	return published, err
}
