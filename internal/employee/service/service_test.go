package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	authmodels "grievance/internal/auth/models"
	refreshtoken "grievance/internal/auth/store/refresh-token"
	"grievance/internal/auth/store/user"
	entitymodels "grievance/internal/entity/models"
	entitystore "grievance/internal/entity/store"
	id "grievance/pkg/domain"
	dErrors "grievance/pkg/domain-errors"
	audit "grievance/pkg/platform/audit"
	auditmemory "grievance/pkg/platform/audit/store/memory"
	"grievance/pkg/requestcontext"
	"grievance/pkg/secrets"
)

type auditEmitter struct{ store *auditmemory.InMemoryStore }

func (a auditEmitter) Emit(ctx context.Context, e audit.Event) error {
	return a.store.Append(ctx, audit.Prepare(e))
}

type EmployeeServiceSuite struct {
	suite.Suite
	ctx      context.Context
	now      time.Time
	users    *user.InMemory
	entities *entitystore.InMemory
	refresh  *refreshtoken.InMemoryRefreshTokenStore
	audit    *auditmemory.InMemoryStore
	service  *Service
	entity   *entitymodels.Entity
}

func TestEmployeeServiceSuite(t *testing.T) {
	suite.Run(t, new(EmployeeServiceSuite))
}

func (s *EmployeeServiceSuite) SetupTest() {
	s.now = time.Date(2025, 5, 2, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.ctx = requestcontext.WithPrincipal(s.ctx, id.UserID(uuid.New()), id.RoleAdmin, nil)
	s.users = user.NewInMemory()
	s.entities = entitystore.NewInMemory()
	s.refresh = refreshtoken.NewInMemory()
	s.audit = auditmemory.NewInMemoryStore()
	s.service = New(s.users, s.entities, s.refresh, WithAuditPublisher(auditEmitter{s.audit}))
	s.entity = s.newEntity("works@gov.example", true)
}

func (s *EmployeeServiceSuite) newEntity(email string, active bool) *entitymodels.Entity {
	e, err := entitymodels.NewEntity(id.EntityID(uuid.New()), "Public Works", email, "", "", entitymodels.TypeDepartment, active, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.entities.Create(s.ctx, e))
	return e
}

func (s *EmployeeServiceSuite) create(email string) *Employee {
	e, err := s.service.Create(s.ctx, CreateCommand{
		FirstName: "Lina",
		LastName:  "Haddad",
		Email:     email,
		Password:  "password123",
		EntityID:  s.entity.ID,
		IsActive:  true,
	})
	s.Require().NoError(err)
	return e
}

func (s *EmployeeServiceSuite) TestCreate() {
	s.Run("creates a verified employee bound to the entity", func() {
		e := s.create(" Lina@Works.Example ")
		s.Equal("lina@works.example", e.Email)
		s.Equal(id.RoleEmployee, e.Role)
		s.True(e.IsVerified())
		s.Require().NotNil(e.EntityID)
		s.Equal(s.entity.ID, *e.EntityID)
		s.Equal(s.entity.ID, e.Entity.ID)
		s.NoError(secrets.Verify("password123", e.PasswordHash))

		events, err := s.audit.ListBySubject(s.ctx, e.ID.String())
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(string(audit.EventEmployeeCreated), events[0].Action)
	})

	s.Run("rejects a duplicate email", func() {
		_, err := s.service.Create(s.ctx, CreateCommand{
			FirstName: "A", LastName: "B", Email: "lina@works.example", Password: "password123", EntityID: s.entity.ID,
		})
		s.ErrorIs(err, dErrors.New(dErrors.CodeConflict, "this email is already registered"))
	})

	s.Run("rejects a missing entity", func() {
		_, err := s.service.Create(s.ctx, CreateCommand{
			FirstName: "A", LastName: "B", Email: "x@works.example", Password: "password123", EntityID: id.EntityID(uuid.New()),
		})
		s.ErrorIs(err, dErrors.New(dErrors.CodeValidation, "the selected entity does not exist"))
	})

	s.Run("rejects an inactive entity", func() {
		inactive := s.newEntity("closed@gov.example", false)
		_, err := s.service.Create(s.ctx, CreateCommand{
			FirstName: "A", LastName: "B", Email: "y@works.example", Password: "password123", EntityID: inactive.ID,
		})
		s.ErrorIs(err, dErrors.New(dErrors.CodeValidation, "the selected entity is not active"))
	})
}

func (s *EmployeeServiceSuite) TestUpdate() {
	e := s.create("lina@works.example")
	other := s.create("omar@works.example")

	s.Run("changes fields and rehashes the password", func() {
		name, password := "Leena", "different-pass"
		updated, err := s.service.Update(s.ctx, e.ID, UpdateCommand{FirstName: &name, Password: &password})
		s.Require().NoError(err)
		s.Equal("Leena", updated.FirstName)
		s.NoError(secrets.Verify("different-pass", updated.PasswordHash))
	})

	s.Run("keeps its own email", func() {
		email := "lina@works.example"
		_, err := s.service.Update(s.ctx, e.ID, UpdateCommand{Email: &email})
		s.NoError(err)
	})

	s.Run("rejects another employee's email", func() {
		email := other.Email
		_, err := s.service.Update(s.ctx, e.ID, UpdateCommand{Email: &email})
		s.ErrorIs(err, dErrors.New(dErrors.CodeConflict, "this email is already in use"))
	})

	s.Run("moves to another active entity", func() {
		target := s.newEntity("roads@gov.example", true)
		updated, err := s.service.Update(s.ctx, e.ID, UpdateCommand{EntityID: &target.ID})
		s.Require().NoError(err)
		s.Equal(target.ID, *updated.EntityID)
		s.Equal(target.ID, updated.Entity.ID)
	})

	s.Run("unknown employee", func() {
		name := "x"
		_, err := s.service.Update(s.ctx, id.UserID(uuid.New()), UpdateCommand{FirstName: &name})
		s.ErrorIs(err, dErrors.New(dErrors.CodeNotFound, "employee not found"))
	})
}

func (s *EmployeeServiceSuite) TestCitizensAreNotEmployees() {
	hash, err := secrets.Hash("password123")
	s.Require().NoError(err)
	citizen, err := authmodels.NewUser(id.UserID(uuid.New()), authmodels.NewUserParams{
		FirstName: "C", LastName: "Z", Email: "c@example.com", PasswordHash: hash,
		Role: id.RoleCitizen, IsActive: true, Verified: true,
	}, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.users.Create(s.ctx, citizen))

	_, err = s.service.Get(s.ctx, citizen.ID)
	s.ErrorIs(err, dErrors.New(dErrors.CodeNotFound, "employee not found"))
	err = s.service.Delete(s.ctx, citizen.ID)
	s.ErrorIs(err, dErrors.New(dErrors.CodeNotFound, "employee not found"))
}

func (s *EmployeeServiceSuite) TestDeleteRestore() {
	e := s.create("lina@works.example")
	plaintext := "refresh-token-value"
	token, err := authmodels.NewRefreshToken(e.ID, plaintext, "Chrome on Linux", "10.0.0.1", time.Hour, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.refresh.Create(s.ctx, token))

	s.Require().NoError(s.service.Delete(s.ctx, e.ID))

	_, err = s.service.Get(s.ctx, e.ID)
	s.ErrorIs(err, dErrors.New(dErrors.CodeNotFound, "employee not found"))
	_, err = s.refresh.Consume(s.ctx, authmodels.HashRefreshToken(plaintext), s.now)
	s.Error(err, "sessions are revoked on delete")

	s.Run("second delete is not found", func() {
		err := s.service.Delete(s.ctx, e.ID)
		s.ErrorIs(err, dErrors.New(dErrors.CodeNotFound, "employee not found"))
	})

	restored, err := s.service.Restore(s.ctx, e.ID)
	s.Require().NoError(err)
	s.Nil(restored.DeletedAt)

	_, err = s.service.Restore(s.ctx, e.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *EmployeeServiceSuite) TestActiveStatus() {
	e := s.create("lina@works.example")

	toggled, err := s.service.ToggleActive(s.ctx, e.ID)
	s.Require().NoError(err)
	s.False(toggled.IsActive)

	toggled, err = s.service.ToggleActive(s.ctx, e.ID)
	s.Require().NoError(err)
	s.True(toggled.IsActive)

	got, err := s.service.Deactivate(s.ctx, e.ID)
	s.Require().NoError(err)
	s.False(got.IsActive)
	got, err = s.service.Deactivate(s.ctx, e.ID)
	s.Require().NoError(err)
	s.False(got.IsActive, "deactivate is idempotent")

	got, err = s.service.Activate(s.ctx, e.ID)
	s.Require().NoError(err)
	s.True(got.IsActive)
}

func (s *EmployeeServiceSuite) TestListAndCount() {
	s.create("a@works.example")
	s.create("b@works.example")
	otherEntity := s.newEntity("roads@gov.example", true)
	_, err := s.service.Create(s.ctx, CreateCommand{
		FirstName: "R", LastName: "D", Email: "r@roads.example", Password: "password123", EntityID: otherEntity.ID, IsActive: true,
	})
	s.Require().NoError(err)

	all, err := s.service.List(s.ctx, nil, id.NewPageRequest(1, 15))
	s.Require().NoError(err)
	s.Equal(3, all.Total)

	scoped, err := s.service.List(s.ctx, &otherEntity.ID, id.NewPageRequest(1, 15))
	s.Require().NoError(err)
	s.Require().Len(scoped.Items, 1)
	s.Equal("r@roads.example", scoped.Items[0].Email)
	s.Equal(otherEntity.ID, scoped.Items[0].Entity.ID)

	counts, err := s.service.CountByEntity(s.ctx, []id.EntityID{s.entity.ID, otherEntity.ID})
	s.Require().NoError(err)
	s.Equal(2, counts[s.entity.ID])
	s.Equal(1, counts[otherEntity.ID])
}
