// Package dispatch delivers notifications on the inbox, mail and push
// channels through a bounded pool of workers.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"grievance/internal/notification/models"
	"grievance/internal/notification/push"
	id "grievance/pkg/domain"
)

const (
	ChannelDatabase = "database"
	ChannelMail     = "mail"
	ChannelPush     = "push"
	channelQueue    = "queue"
)

type Inbox interface {
	Create(ctx context.Context, n *models.Notification) error
}

type Mailer interface {
	SendMessage(ctx context.Context, to models.Recipient, msg *models.Mail) error
}

type Pusher interface {
	Push(ctx context.Context, deviceToken, title, body string, data map[string]string) error
}

type Metrics interface {
	IncrementNotificationSent(channel string)
	IncrementNotificationFailed(channel string)
}

// Delivery is one message addressed to one recipient.
type Delivery struct {
	To        models.Recipient
	Message   models.Message
	RequestID string
}

type Dispatcher struct {
	inbox   Inbox
	mailer  Mailer
	pusher  Pusher
	logger  *slog.Logger
	metrics Metrics
	now     func() time.Time

	workers      int
	queue        chan Delivery
	sendTimeout  time.Duration
	drainTimeout time.Duration

	// mu guards closed; Enqueue holds it shared so Close sees every
	// delivery that made it into the queue.
	mu     sync.RWMutex
	closed bool
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

func WithMetrics(m Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithWorkers sets how many goroutines deliver messages.
func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithQueueSize bounds the queue. Enqueue drops deliveries beyond it.
func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan Delivery, n)
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// New builds a dispatcher. mailer and pusher may be nil to disable a channel.
func New(inbox Inbox, mailer Mailer, pusher Pusher, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		inbox:        inbox,
		mailer:       mailer,
		pusher:       pusher,
		logger:       slog.Default(),
		now:          time.Now,
		workers:      4,
		queue:        make(chan Delivery, 256),
		sendTimeout:  15 * time.Second,
		drainTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Enqueue hands deliveries to the workers without blocking. When the queue
// is full, or the dispatcher is closed, the delivery is dropped, logged and
// counted.
func (d *Dispatcher) Enqueue(ctx context.Context, deliveries ...Delivery) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, dl := range deliveries {
		if d.closed {
			d.drop(ctx, dl, "dispatcher closed, dropping delivery")
			continue
		}
		select {
		case d.queue <- dl:
		default:
			d.drop(ctx, dl, "notification queue full, dropping delivery")
		}
	}
}

func (d *Dispatcher) drop(ctx context.Context, dl Delivery, msg string) {
	d.failed(channelQueue)
	d.logger.WarnContext(ctx, msg,
		"kind", dl.Message.Kind,
		"user_id", dl.To.UserID,
		"request_id", dl.RequestID,
	)
}

// Run starts the workers and blocks until ctx is cancelled. Deliveries still
// queued at that point stay queued for Close, which the caller invokes once
// nothing can enqueue any more (after the HTTP server has shut down).
func (d *Dispatcher) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for range d.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case dl := <-d.queue:
					// A delivery already taken off the queue is finished
					// within sendTimeout even if shutdown starts meanwhile.
					d.Deliver(context.WithoutCancel(ctx), dl)
				}
			}
		}()
	}
	wg.Wait()
	return ctx.Err()
}

// Close stops accepting deliveries and sends what is left in the queue within
// the drain timeout. Deliveries still queued when the timeout passes are
// counted as failed. Close is safe to call more than once.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), d.drainTimeout)
	defer cancel()
	for {
		if ctx.Err() != nil {
			d.abandon(ctx)
			return
		}
		select {
		case dl := <-d.queue:
			d.Deliver(ctx, dl)
		default:
			return
		}
	}
}

func (d *Dispatcher) abandon(ctx context.Context) {
	for {
		select {
		case dl := <-d.queue:
			d.drop(ctx, dl, "drain timed out, dropping delivery")
		default:
			return
		}
	}
}

// Deliver sends dl on every channel the recipient supports. Channel failures
// are logged and counted; they never stop the remaining channels.
func (d *Dispatcher) Deliver(ctx context.Context, dl Delivery) {
	ctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	log := d.logger.With("kind", dl.Message.Kind, "user_id", dl.To.UserID, "request_id", dl.RequestID)

	if d.inbox != nil {
		n := &models.Notification{
			ID:        id.NotificationID(uuid.New()),
			UserID:    dl.To.UserID,
			Kind:      dl.Message.Kind,
			Title:     dl.Message.Title,
			Body:      dl.Message.Body,
			Data:      dl.Message.Data,
			CreatedAt: d.now(),
		}
		d.record(ctx, log, ChannelDatabase, d.inbox.Create(ctx, n))
	}
	if d.mailer != nil && dl.Message.Mail != nil && dl.To.Email != "" {
		d.record(ctx, log, ChannelMail, d.mailer.SendMessage(ctx, dl.To, dl.Message.Mail))
	}
	if d.pusher != nil && dl.To.FCMToken != "" && dl.Message.PushTitle != "" {
		err := d.pusher.Push(ctx, dl.To.FCMToken, dl.Message.PushTitle, dl.Message.PushBody, dl.Message.Data)
		if errors.Is(err, push.ErrInvalidToken) {
			log.InfoContext(ctx, "device token rejected by fcm")
		}
		d.record(ctx, log, ChannelPush, err)
	}
}

func (d *Dispatcher) record(ctx context.Context, log *slog.Logger, channel string, err error) {
	if err != nil {
		d.failed(channel)
		log.WarnContext(ctx, "notification delivery failed", "channel", channel, "error", err)
		return
	}
	if d.metrics != nil {
		d.metrics.IncrementNotificationSent(channel)
	}
}

func (d *Dispatcher) failed(channel string) {
	if d.metrics != nil {
		d.metrics.IncrementNotificationFailed(channel)
	}
}
