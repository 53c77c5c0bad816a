// Package publisher emits audit events to a store, synchronously by default or
// through a bounded buffer for events raised outside a transaction.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	audit "grievance/pkg/platform/audit"
)

var ErrBufferFull = errors.New("audit buffer full")

// Publisher records audit events in a Store, synchronously or through a buffer.
type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	buffer chan audit.Event
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

type Option func(*Publisher)

// WithAsyncBuffer makes Emit enqueue into a buffer of the given size that a
// background goroutine drains. Close flushes what is queued.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.buffer = make(chan audit.Event, size)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// NewPublisher writes events synchronously unless WithAsyncBuffer is given.
func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records an event. In sync mode the store write joins any transaction in ctx.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	event = audit.Prepare(event)
	if p.buffer == nil {
		return p.store.Append(ctx, event)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrBufferFull
	}
	select {
	case p.buffer <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.logger.WarnContext(ctx, "audit buffer full, dropping event", "action", event.Action)
		return ErrBufferFull
	}
}

// List returns the events recorded for subject, oldest first.
func (p *Publisher) List(ctx context.Context, subject string) ([]audit.Event, error) {
	return p.store.ListBySubject(ctx, subject)
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.buffer {
		// Detached from any request; the request may already be finished.
		if err := p.store.Append(context.Background(), event); err != nil {
			p.logger.Error("failed to persist audit event", "action", event.Action, "error", err)
		}
	}
}

// Close stops accepting events and waits until the buffer is drained.
func (p *Publisher) Close() {
	if p.buffer == nil {
		return
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.buffer)
	p.mu.Unlock()
	p.wg.Wait()
}
