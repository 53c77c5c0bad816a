package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"grievance/internal/entity/models"
	"grievance/internal/entity/store"
	id "grievance/pkg/domain"
	dErrors "grievance/pkg/domain-errors"
	audit "grievance/pkg/platform/audit"
	"grievance/pkg/platform/sentinel"
	"grievance/pkg/platform/tx"
	"grievance/pkg/requestcontext"
)

// Counter returns per-entity counts for the given entities. Missing keys mean zero.
type Counter interface {
	CountByEntity(ctx context.Context, entityIDs []id.EntityID) (map[id.EntityID]int, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service manages government entities for admins and lists them publicly.
type Service struct {
	entities       store.Store
	complaints     Counter
	employees      Counter
	tx             tx.Runner
	logger         *slog.Logger
	auditPublisher AuditPublisher
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

func WithTx(runner tx.Runner) Option {
	return func(s *Service) {
		s.tx = runner
	}
}

// New builds the entity service. complaints and employees feed the summary counts.
func New(entities store.Store, complaints, employees Counter, opts ...Option) *Service {
	s := &Service{entities: entities, complaints: complaints, employees: employees}
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

type CreateCommand struct {
	Name        string
	Email       string
	Phone       string
	Description string
	Type        models.Type
	IsActive    bool
}

// ListSummaries returns every non-deleted entity with its counts.
func (s *Service) ListSummaries(ctx context.Context) ([]models.Summary, error) {
	entities, err := s.entities.List(ctx, store.Filter{})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list entities")
	}
	return s.summarize(ctx, entities)
}

// ListActive is the public directory used by citizens when filing complaints.
func (s *Service) ListActive(ctx context.Context) ([]*models.Entity, error) {
	entities, err := s.entities.List(ctx, store.Filter{ActiveOnly: true})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list entities")
	}
	return entities, nil
}

func (s *Service) Get(ctx context.Context, entityID id.EntityID) (*models.Summary, error) {
	e, err := s.entities.FindByID(ctx, entityID)
	if err != nil {
		return nil, wrapEntityErr(err)
	}
	summaries, err := s.summarize(ctx, []*models.Entity{e})
	if err != nil {
		return nil, err
	}
	return &summaries[0], nil
}

// Create adds an entity. Its email must be free, deleted entities included.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*models.Entity, error) {
	var created *models.Entity
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		e, err := models.NewEntity(id.EntityID(uuid.New()),
			strings.TrimSpace(cmd.Name), strings.TrimSpace(cmd.Email),
			strings.TrimSpace(cmd.Phone), strings.TrimSpace(cmd.Description),
			cmd.Type, cmd.IsActive, requestcontext.Now(ctx))
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
				return dErrors.New(dErrors.CodeValidation, dErrors.Message(err))
			}
			return err
		}
		taken, err := s.entities.EmailTaken(ctx, e.Email, nil)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check entity email")
		}
		if taken {
			return dErrors.New(dErrors.CodeConflict, "this email is already registered")
		}
		if err := s.entities.Create(ctx, e); err != nil {
			return wrapEntityErr(err)
		}
		if err := s.emit(ctx, audit.EventEntityCreated, e.ID); err != nil {
			return err
		}
		created = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "entity created",
		"entity_id", created.ID,
		"request_id", requestcontext.RequestID(ctx),
	)
	return created, nil
}

// Update applies changes after validating them.
func (s *Service) Update(ctx context.Context, entityID id.EntityID, changes models.Changes) (*models.Entity, error) {
	if changes.Email != nil {
		email := strings.TrimSpace(*changes.Email)
		changes.Email = &email
		taken, err := s.entities.EmailTaken(ctx, email, &entityID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check entity email")
		}
		if taken {
			return nil, dErrors.New(dErrors.CodeConflict, "this email is already in use")
		}
	}
	if changes.Name != nil && strings.TrimSpace(*changes.Name) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "entity name cannot be empty")
	}

	now := requestcontext.Now(ctx)
	var updated *models.Entity
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		e, err := s.entities.Execute(ctx, entityID,
			requireNotDeleted,
			func(e *models.Entity) { e.ApplyChanges(changes, now) },
		)
		if err != nil {
			return wrapEntityErr(err)
		}
		updated = e
		return s.emit(ctx, audit.EventEntityUpdated, e.ID)
	})
	return updated, err
}

// Delete soft deletes an entity that has no complaints.
func (s *Service) Delete(ctx context.Context, entityID id.EntityID) error {
	now := requestcontext.Now(ctx)
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		_, err := s.entities.Execute(ctx, entityID,
			func(e *models.Entity) error {
				counts, err := s.complaints.CountByEntity(ctx, []id.EntityID{e.ID})
				if err != nil {
					return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count complaints")
				}
				return e.CanDelete(counts[e.ID])
			},
			func(e *models.Entity) { e.ApplyDelete(now) },
		)
		if err != nil {
			return wrapEntityErr(err)
		}
		return s.emit(ctx, audit.EventEntityDeleted, entityID)
	})
}

func (s *Service) Restore(ctx context.Context, entityID id.EntityID) (*models.Entity, error) {
	now := requestcontext.Now(ctx)
	var restored *models.Entity
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		e, err := s.entities.Execute(ctx, entityID,
			func(e *models.Entity) error { return e.CanRestore() },
			func(e *models.Entity) { e.ApplyRestore(now) },
		)
		if err != nil {
			return wrapEntityErr(err)
		}
		restored = e
		return s.emit(ctx, audit.EventEntityRestored, e.ID)
	})
	return restored, err
}

// ToggleActive flips whether the entity accepts new complaints.
func (s *Service) ToggleActive(ctx context.Context, entityID id.EntityID) (*models.Entity, error) {
	now := requestcontext.Now(ctx)
	var toggled *models.Entity
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		e, err := s.entities.Execute(ctx, entityID,
			requireNotDeleted,
			func(e *models.Entity) { e.ApplyToggleActive(now) },
		)
		if err != nil {
			return wrapEntityErr(err)
		}
		toggled = e
		return s.emit(ctx, audit.EventEntityUpdated, e.ID)
	})
	return toggled, err
}

func (s *Service) summarize(ctx context.Context, entities []*models.Entity) ([]models.Summary, error) {
	ids := make([]id.EntityID, 0, len(entities))
	for _, e := range entities {
		ids = append(ids, e.ID)
	}
	complaints, err := s.complaints.CountByEntity(ctx, ids)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count complaints")
	}
	employees, err := s.employees.CountByEntity(ctx, ids)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count employees")
	}
	out := make([]models.Summary, 0, len(entities))
	for _, e := range entities {
		out = append(out, models.Summary{
			Entity:          e,
			ComplaintsCount: complaints[e.ID],
			EmployeesCount:  employees[e.ID],
		})
	}
	return out, nil
}

func (s *Service) emit(ctx context.Context, event audit.AuditEvent, entityID id.EntityID) error {
	if s.auditPublisher == nil {
		return nil
	}
	return s.auditPublisher.Emit(ctx, audit.FromContext(ctx, event, entityID.String()))
}

func requireNotDeleted(e *models.Entity) error {
	if e.IsDeleted() {
		return dErrors.New(dErrors.CodeNotFound, "entity not found")
	}
	return nil
}

func wrapEntityErr(err error) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "entity not found")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.New(dErrors.CodeConflict, "this email is already registered")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "entity store failure")
	}
}
