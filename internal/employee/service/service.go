// Package service manages employee accounts on behalf of admins.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"grievance/internal/auth/models"
	"grievance/internal/auth/store/user"
	entitymodels "grievance/internal/entity/models"
	id "grievance/pkg/domain"
	dErrors "grievance/pkg/domain-errors"
	audit "grievance/pkg/platform/audit"
	"grievance/pkg/platform/sentinel"
	"grievance/pkg/platform/tx"
	"grievance/pkg/requestcontext"
	"grievance/pkg/secrets"
)

type EntityLookup interface {
	FindByID(ctx context.Context, entityID id.EntityID) (*entitymodels.Entity, error)
}

// SessionRevoker ends the sessions of deactivated or deleted employees.
type SessionRevoker interface {
	RevokeAllForUser(ctx context.Context, userID id.UserID, now time.Time) (int, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	users          user.Store
	entities       EntityLookup
	sessions       SessionRevoker
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

// New builds the employee service. sessions revokes refresh tokens when an
// account is deactivated or deleted.
func New(users user.Store, entities EntityLookup, sessions SessionRevoker, opts ...Option) *Service {
	s := &Service{users: users, entities: entities, sessions: sessions}
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

// Employee pairs an account with the entity it works for.
type Employee struct {
	*models.User
	Entity *entitymodels.Entity
}

type CreateCommand struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Password  string
	EntityID  id.EntityID
	IsActive  bool
}

// UpdateCommand is a partial update; nil fields are unchanged.
type UpdateCommand struct {
	FirstName *string
	LastName  *string
	Email     *string
	Phone     *string
	Password  *string
	EntityID  *id.EntityID
	IsActive  *bool
}

// List returns employees, optionally restricted to one entity.
func (s *Service) List(ctx context.Context, entityID *id.EntityID, page id.PageRequest) (id.Page[Employee], error) {
	users, err := s.users.List(ctx, user.Filter{Role: id.RoleEmployee, EntityID: entityID}, page)
	if err != nil {
		return id.Page[Employee]{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list employees")
	}
	cache := map[id.EntityID]*entitymodels.Entity{}
	items := make([]Employee, 0, len(users.Items))
	for _, u := range users.Items {
		items = append(items, Employee{User: u, Entity: s.entityFor(ctx, u, cache)})
	}
	return id.Page[Employee]{Items: items, Total: users.Total, Request: users.Request}, nil
}

func (s *Service) Get(ctx context.Context, userID id.UserID) (*Employee, error) {
	u, err := s.findEmployee(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Employee{User: u, Entity: s.entityFor(ctx, u, nil)}, nil
}

// Create adds a verified employee account to an active entity.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Employee, error) {
	entity, err := s.requireActiveEntity(ctx, cmd.EntityID)
	if err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(cmd.Email))
	taken, err := s.users.EmailTaken(ctx, email, nil)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check email")
	}
	if taken {
		return nil, dErrors.New(dErrors.CodeConflict, "this email is already registered")
	}
	hash, err := secrets.Hash(cmd.Password)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}

	entityID := cmd.EntityID
	u, err := models.NewUser(id.UserID(uuid.New()), models.NewUserParams{
		FirstName:    cmd.FirstName,
		LastName:     cmd.LastName,
		Email:        email,
		Phone:        cmd.Phone,
		PasswordHash: hash,
		Role:         id.RoleEmployee,
		EntityID:     &entityID,
		IsActive:     cmd.IsActive,
		Verified:     true,
	}, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, dErrors.Message(err))
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, u); err != nil {
			return wrapEmployeeErr(err)
		}
		return s.emit(ctx, audit.EventEmployeeCreated, u.ID)
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "employee created",
		"user_id", u.ID,
		"entity_id", entityID,
		"request_id", requestcontext.RequestID(ctx),
	)
	return &Employee{User: u, Entity: entity}, nil
}

// Update changes profile fields, the password and the entity of an employee.
func (s *Service) Update(ctx context.Context, userID id.UserID, cmd UpdateCommand) (*Employee, error) {
	var entity *entitymodels.Entity
	if cmd.EntityID != nil {
		e, err := s.requireActiveEntity(ctx, *cmd.EntityID)
		if err != nil {
			return nil, err
		}
		entity = e
	}
	if cmd.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*cmd.Email))
		cmd.Email = &email
		taken, err := s.users.EmailTaken(ctx, email, &userID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check email")
		}
		if taken {
			return nil, dErrors.New(dErrors.CodeConflict, "this email is already in use")
		}
	}
	var hash string
	if cmd.Password != nil {
		h, err := secrets.Hash(*cmd.Password)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
		}
		hash = h
	}

	now := requestcontext.Now(ctx)
	var updated *models.User
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		u, err := s.users.Execute(ctx, userID, requireLiveEmployee, func(u *models.User) {
			applyUpdate(u, cmd, hash, now)
		})
		if err != nil {
			return wrapEmployeeErr(err)
		}
		updated = u
		if cmd.IsActive != nil && !*cmd.IsActive {
			if err := s.revokeSessions(ctx, u.ID, now); err != nil {
				return err
			}
		}
		return s.emit(ctx, audit.EventEmployeeUpdated, u.ID)
	})
	if err != nil {
		return nil, err
	}
	if entity == nil {
		entity = s.entityFor(ctx, updated, nil)
	}
	return &Employee{User: updated, Entity: entity}, nil
}

func applyUpdate(u *models.User, cmd UpdateCommand, passwordHash string, now time.Time) {
	if cmd.FirstName != nil {
		u.FirstName = strings.TrimSpace(*cmd.FirstName)
	}
	if cmd.LastName != nil {
		u.LastName = strings.TrimSpace(*cmd.LastName)
	}
	if cmd.Email != nil {
		u.Email = *cmd.Email
	}
	if cmd.Phone != nil {
		u.Phone = strings.TrimSpace(*cmd.Phone)
	}
	if passwordHash != "" {
		u.PasswordHash = passwordHash
	}
	if cmd.EntityID != nil {
		entityID := *cmd.EntityID
		u.EntityID = &entityID
	}
	if cmd.IsActive != nil {
		u.IsActive = *cmd.IsActive
	}
	u.UpdatedAt = now
}

// Delete soft deletes the employee and revokes their sessions.
func (s *Service) Delete(ctx context.Context, userID id.UserID) error {
	now := requestcontext.Now(ctx)
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		_, err := s.users.Execute(ctx, userID,
			requireLiveEmployee,
			func(u *models.User) { u.ApplyDelete(now) },
		)
		if err != nil {
			return wrapEmployeeErr(err)
		}
		if err := s.revokeSessions(ctx, userID, now); err != nil {
			return err
		}
		return s.emit(ctx, audit.EventEmployeeDeleted, userID)
	})
}

// Restore brings back a soft deleted employee.
func (s *Service) Restore(ctx context.Context, userID id.UserID) (*Employee, error) {
	now := requestcontext.Now(ctx)
	var restored *models.User
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		u, err := s.users.Execute(ctx, userID,
			func(u *models.User) error {
				if err := requireEmployee(u); err != nil {
					return err
				}
				return u.CanRestore()
			},
			func(u *models.User) { u.ApplyRestore(now) },
		)
		if err != nil {
			return wrapEmployeeErr(err)
		}
		restored = u
		return s.emit(ctx, audit.EventEmployeeUpdated, u.ID)
	})
	if err != nil {
		return nil, err
	}
	return &Employee{User: restored, Entity: s.entityFor(ctx, restored, nil)}, nil
}

func (s *Service) ToggleActive(ctx context.Context, userID id.UserID) (*Employee, error) {
	return s.setActive(ctx, userID, nil)
}

func (s *Service) Activate(ctx context.Context, userID id.UserID) (*Employee, error) {
	active := true
	return s.setActive(ctx, userID, &active)
}

// Deactivate disables login and revokes all sessions.
func (s *Service) Deactivate(ctx context.Context, userID id.UserID) (*Employee, error) {
	active := false
	return s.setActive(ctx, userID, &active)
}

// setActive sets the flag to target, or flips it when target is nil.
func (s *Service) setActive(ctx context.Context, userID id.UserID, target *bool) (*Employee, error) {
	now := requestcontext.Now(ctx)
	var changed *models.User
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		u, err := s.users.Execute(ctx, userID, requireLiveEmployee, func(u *models.User) {
			next := !u.IsActive
			if target != nil {
				next = *target
			}
			u.ApplySetActive(next, now)
		})
		if err != nil {
			return wrapEmployeeErr(err)
		}
		changed = u
		if !u.IsActive {
			if err := s.revokeSessions(ctx, u.ID, now); err != nil {
				return err
			}
		}
		return s.emit(ctx, audit.EventEmployeeUpdated, u.ID)
	})
	if err != nil {
		return nil, err
	}
	return &Employee{User: changed, Entity: s.entityFor(ctx, changed, nil)}, nil
}

// CountByEntity counts active employees per entity.
func (s *Service) CountByEntity(ctx context.Context, entityIDs []id.EntityID) (map[id.EntityID]int, error) {
	counts, err := s.users.CountByEntity(ctx, entityIDs)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count employees")
	}
	return counts, nil
}

func (s *Service) findEmployee(ctx context.Context, userID id.UserID) (*models.User, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, wrapEmployeeErr(err)
	}
	if err := requireEmployee(u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) requireActiveEntity(ctx context.Context, entityID id.EntityID) (*entitymodels.Entity, error) {
	e, err := s.entities.FindByID(ctx, entityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeValidation, "the selected entity does not exist")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load entity")
	}
	if !e.IsActive {
		return nil, dErrors.New(dErrors.CodeValidation, "the selected entity is not active")
	}
	return e, nil
}

func (s *Service) entityFor(ctx context.Context, u *models.User, cache map[id.EntityID]*entitymodels.Entity) *entitymodels.Entity {
	if u.EntityID == nil {
		return nil
	}
	if e, ok := cache[*u.EntityID]; ok {
		return e
	}
	e, err := s.entities.FindByID(ctx, *u.EntityID)
	if err != nil {
		s.logger.DebugContext(ctx, "employee entity unavailable",
			"user_id", u.ID,
			"entity_id", *u.EntityID,
			"error", err,
		)
		e = nil
	}
	if cache != nil {
		cache[*u.EntityID] = e
	}
	return e
}

func (s *Service) revokeSessions(ctx context.Context, userID id.UserID, now time.Time) error {
	if s.sessions == nil {
		return nil
	}
	if _, err := s.sessions.RevokeAllForUser(ctx, userID, now); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke employee sessions")
	}
	return nil
}

func (s *Service) emit(ctx context.Context, event audit.AuditEvent, userID id.UserID) error {
	if s.auditPublisher == nil {
		return nil
	}
	return s.auditPublisher.Emit(ctx, audit.FromContext(ctx, event, userID.String()))
}

func requireEmployee(u *models.User) error {
	if u.Role != id.RoleEmployee {
		return dErrors.New(dErrors.CodeNotFound, "employee not found")
	}
	return nil
}

func requireLiveEmployee(u *models.User) error {
	if err := requireEmployee(u); err != nil {
		return err
	}
	if u.IsDeleted() {
		return dErrors.New(dErrors.CodeNotFound, "employee not found")
	}
	return nil
}

func wrapEmployeeErr(err error) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "employee not found")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.New(dErrors.CodeConflict, "this email is already in use")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "employee store failure")
	}
}
