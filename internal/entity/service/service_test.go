package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"grievance/internal/entity/models"
	"grievance/internal/entity/store"
	id "grievance/pkg/domain"
	dErrors "grievance/pkg/domain-errors"
	audit "grievance/pkg/platform/audit"
	auditmemory "grievance/pkg/platform/audit/store/memory"
	"grievance/pkg/requestcontext"
)

type fixedCounter map[id.EntityID]int

func (c fixedCounter) CountByEntity(_ context.Context, ids []id.EntityID) (map[id.EntityID]int, error) {
	out := make(map[id.EntityID]int, len(ids))
	for _, v := range ids {
		if n, ok := c[v]; ok {
			out[v] = n
		}
	}
	return out, nil
}

type EntityServiceSuite struct {
	suite.Suite
	ctx        context.Context
	store      *store.InMemory
	complaints fixedCounter
	employees  fixedCounter
	audit      *auditmemory.InMemoryStore
	service    *Service
}

func TestEntityServiceSuite(t *testing.T) {
	suite.Run(t, new(EntityServiceSuite))
}

func (s *EntityServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC))
	s.ctx = requestcontext.WithPrincipal(s.ctx, id.UserID(uuid.New()), id.RoleAdmin, nil)
	s.store = store.NewInMemory()
	s.complaints = fixedCounter{}
	s.employees = fixedCounter{}
	s.audit = auditmemory.NewInMemoryStore()
	s.service = New(s.store, s.complaints, s.employees, WithAuditPublisher(auditEmitter{s.audit}))
}

type auditEmitter struct{ store *auditmemory.InMemoryStore }

func (a auditEmitter) Emit(ctx context.Context, e audit.Event) error {
	return a.store.Append(ctx, audit.Prepare(e))
}

func (s *EntityServiceSuite) create(email string) *models.Entity {
	e, err := s.service.Create(s.ctx, CreateCommand{
		Name: "Entity", Email: email, Type: models.TypeMinistry, IsActive: true,
	})
	s.Require().NoError(err)
	return e
}

func (s *EntityServiceSuite) TestCreate() {
	s.Run("trims and lowercases", func() {
		e, err := s.service.Create(s.ctx, CreateCommand{
			Name: "  Ministry of Health ", Email: " Health@Gov.example ", Type: models.TypeMinistry, IsActive: true,
		})
		s.Require().NoError(err)
		s.Equal("Ministry of Health", e.Name)
		s.Equal("health@gov.example", e.Email)

		events, err := s.audit.ListBySubject(s.ctx, e.ID.String())
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(string(audit.EventEntityCreated), events[0].Action)
	})

	s.Run("duplicate email is a conflict", func() {
		_, err := s.service.Create(s.ctx, CreateCommand{Name: "Other", Email: "HEALTH@gov.example", Type: models.TypeAgency})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("missing name is a validation error", func() {
		_, err := s.service.Create(s.ctx, CreateCommand{Name: " ", Email: "x@gov.example", Type: models.TypeAgency})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *EntityServiceSuite) TestUpdateEmailUniqueness() {
	a := s.create("a@gov.example")
	s.create("b@gov.example")

	taken := "b@gov.example"
	_, err := s.service.Update(s.ctx, a.ID, models.Changes{Email: &taken})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	own := "A@gov.example"
	updated, err := s.service.Update(s.ctx, a.ID, models.Changes{Email: &own})
	s.Require().NoError(err)
	s.Equal("a@gov.example", updated.Email)
}

func (s *EntityServiceSuite) TestDeleteRefusedWithComplaints() {
	e := s.create("busy@gov.example")
	s.complaints[e.ID] = 2

	err := s.service.Delete(s.ctx, e.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	delete(s.complaints, e.ID)
	s.Require().NoError(s.service.Delete(s.ctx, e.ID))

	_, err = s.service.Get(s.ctx, e.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	restored, err := s.service.Restore(s.ctx, e.ID)
	s.Require().NoError(err)
	s.False(restored.IsDeleted())

	_, err = s.service.Restore(s.ctx, e.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *EntityServiceSuite) TestSummariesAndActiveList() {
	a := s.create("one@gov.example")
	b := s.create("two@gov.example")
	s.complaints[a.ID] = 4
	s.employees[a.ID] = 2

	_, err := s.service.ToggleActive(s.ctx, b.ID)
	s.Require().NoError(err)

	summaries, err := s.service.ListSummaries(s.ctx)
	s.Require().NoError(err)
	s.Len(summaries, 2)

	got, err := s.service.Get(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(4, got.ComplaintsCount)
	s.Equal(2, got.EmployeesCount)

	active, err := s.service.ListActive(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal(a.ID, active[0].ID)
}

func (s *EntityServiceSuite) TestUnknownEntity() {
	_, err := s.service.ToggleActive(s.ctx, id.EntityID(uuid.New()))
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
