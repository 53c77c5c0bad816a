// Package service applies the complaint lifecycle for citizens, employees and
// admins. Mutations run inside one transaction together with their audit
// events; notifications fire after commit and never fail the operation.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"grievance/internal/complaint/models"
	"grievance/internal/complaint/store"
	entitymodels "grievance/internal/entity/models"
	"grievance/internal/upload"
	id "grievance/pkg/domain"
	dErrors "grievance/pkg/domain-errors"
	audit "grievance/pkg/platform/audit"
	"grievance/pkg/platform/sentinel"
	"grievance/pkg/platform/tx"
)

const DefaultLockTTL = 30 * time.Minute

var tracer = otel.Tracer("grievance/complaint")

type EntityLookup interface {
	FindByID(ctx context.Context, entityID id.EntityID) (*entitymodels.Entity, error)
}

type TrackingGenerator interface {
	Generate(ctx context.Context, year int) (string, error)
}

// Uploader validates and stores attachment files.
type Uploader interface {
	Validate(b upload.Batch, existing map[models.FileType]int) error
	Upload(ctx context.Context, b upload.Batch, dir string) ([]upload.Stored, error)
	Remove(ctx context.Context, stored []upload.Stored)
	Delete(ctx context.Context, key string)
	URL(ctx context.Context, key string) (string, error)
}

// Notifier is told about committed changes. Implementations dispatch
// asynchronously and swallow their own failures.
type Notifier interface {
	ComplaintCreated(ctx context.Context, c *models.Complaint)
	StatusChanged(ctx context.Context, c *models.Complaint, from, to models.Status)
	InfoRequested(ctx context.Context, c *models.Complaint)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Metrics interface {
	IncrementComplaintsCreated()
	ObserveTransition(from, to string)
	AddLocksReleased(n int)
}

type Service struct {
	complaints     store.Store
	entities       EntityLookup
	tracking       TrackingGenerator
	uploads        Uploader
	tx             tx.Runner
	logger         *slog.Logger
	auditPublisher AuditPublisher
	notifier       Notifier
	metrics        Metrics
	lockTTL        time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

// WithTx sets the runner used for every state change.
func WithTx(runner tx.Runner) Option {
	return func(s *Service) {
		s.tx = runner
	}
}

// WithNotifier sets who is told about new complaints and status changes.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLockTTL sets how long an accepted complaint stays locked to its assignee.
func WithLockTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// New builds the complaint service. The lock TTL defaults to 30 minutes.
func New(complaints store.Store, entities EntityLookup, tracking TrackingGenerator, uploads Uploader, opts ...Option) *Service {
	s := &Service{
		complaints: complaints,
		entities:   entities,
		tracking:   tracking,
		uploads:    uploads,
		lockTTL:    DefaultLockTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.tx == nil {
		s.tx = tx.NewInMemory()
	}
	return s
}

// FileURL resolves the public URL of a stored attachment.
func (s *Service) FileURL(ctx context.Context, a models.Attachment) (string, error) {
	return s.uploads.URL(ctx, a.FilePath)
}

func startSpan(ctx context.Context, op, trackingNumber string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "complaint."+op, trace.WithAttributes(trackingAttr(trackingNumber)))
}

func trackingAttr(trackingNumber string) attribute.KeyValue {
	return attribute.String("complaint.tracking_number", trackingNumber)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, dErrors.Message(err))
	}
	span.End()
}

func (s *Service) emit(ctx context.Context, event audit.AuditEvent, c *models.Complaint, from models.Status, reason string) error {
	if s.auditPublisher == nil {
		return nil
	}
	e := audit.FromContext(ctx, event, c.TrackingNumber)
	if from != "" {
		e.FromStatus = string(from)
	}
	e.ToStatus = string(c.Status)
	e.Reason = reason
	return s.auditPublisher.Emit(ctx, e)
}

func (s *Service) observeTransition(from, to models.Status) {
	if s.metrics != nil && from != to {
		s.metrics.ObserveTransition(string(from), string(to))
	}
}

func (s *Service) notifyStatus(ctx context.Context, c *models.Complaint, from models.Status) {
	if from == c.Status {
		return
	}
	s.observeTransition(from, c.Status)
	if s.notifier != nil {
		s.notifier.StatusChanged(context.WithoutCancel(ctx), c, from, c.Status)
	}
}

func asValidation(err error) error {
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		return dErrors.New(dErrors.CodeValidation, dErrors.Message(err))
	}
	return err
}

func wrapComplaintErr(err error) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "complaint not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "complaint was modified concurrently, please retry")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.New(dErrors.CodeConflict, "tracking number already in use")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "complaint store failure")
	}
}
