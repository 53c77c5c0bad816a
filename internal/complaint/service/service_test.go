package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Notifier

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"grievance/internal/complaint/models"
	"grievance/internal/complaint/service/mocks"
	"grievance/internal/complaint/store"
	"grievance/internal/complaint/tracking"
	entitymodels "grievance/internal/entity/models"
	entitystore "grievance/internal/entity/store"
	"grievance/internal/storage"
	"grievance/internal/upload"
	id "grievance/pkg/domain"
	dErrors "grievance/pkg/domain-errors"
	audit "grievance/pkg/platform/audit"
	auditmemory "grievance/pkg/platform/audit/store/memory"
	"grievance/pkg/requestcontext"
)

type auditEmitter struct{ store *auditmemory.InMemoryStore }

func (a auditEmitter) Emit(ctx context.Context, e audit.Event) error {
	return a.store.Append(ctx, audit.Prepare(e))
}

type countingMetrics struct {
	created     int
	transitions []string
	released    int
}

func (m *countingMetrics) IncrementComplaintsCreated() { m.created++ }
func (m *countingMetrics) ObserveTransition(from, to string) {
	m.transitions = append(m.transitions, from+"->"+to)
}
func (m *countingMetrics) AddLocksReleased(n int) { m.released += n }

type ComplaintServiceSuite struct {
	suite.Suite
	ctx        context.Context
	now        time.Time
	ctrl       *gomock.Controller
	notifier   *mocks.MockNotifier
	complaints *store.InMemory
	entities   *entitystore.InMemory
	objects    *storage.InMemory
	audit      *auditmemory.InMemoryStore
	metrics    *countingMetrics
	service    *Service

	entity   *entitymodels.Entity
	citizen  models.Actor
	employee models.Actor
	other    models.Actor
	admin    models.Actor
}

func TestComplaintServiceSuite(t *testing.T) {
	suite.Run(t, new(ComplaintServiceSuite))
}

func (s *ComplaintServiceSuite) SetupTest() {
	s.now = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.ctrl = gomock.NewController(s.T())
	s.notifier = mocks.NewMockNotifier(s.ctrl)
	s.complaints = store.NewInMemory()
	s.entities = entitystore.NewInMemory()
	s.objects = storage.NewInMemory("http://files.test")
	s.audit = auditmemory.NewInMemoryStore()
	s.metrics = &countingMetrics{}

	s.service = New(s.complaints, s.entities,
		tracking.NewGenerator(tracking.NewInMemorySequence()),
		upload.NewService(s.objects),
		WithAuditPublisher(auditEmitter{s.audit}),
		WithNotifier(s.notifier),
		WithMetrics(s.metrics),
		WithLockTTL(time.Hour),
	)

	s.entity = s.newEntity(true)
	entityID := s.entity.ID
	s.citizen = models.Actor{ID: id.UserID(uuid.New()), Role: id.RoleCitizen}
	s.employee = models.Actor{ID: id.UserID(uuid.New()), Role: id.RoleEmployee, EntityID: &entityID}
	s.other = models.Actor{ID: id.UserID(uuid.New()), Role: id.RoleEmployee, EntityID: &entityID}
	s.admin = models.Actor{ID: id.UserID(uuid.New()), Role: id.RoleAdmin}
}

func (s *ComplaintServiceSuite) newEntity(active bool) *entitymodels.Entity {
	e, err := entitymodels.NewEntity(id.EntityID(uuid.New()), "Water Authority", uuid.NewString()+"@gov.example",
		"", "", entitymodels.TypeAgency, active, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.entities.Create(s.ctx, e))
	return e
}

func pngFile(name string) upload.File {
	var buf bytes.Buffer
	_ = png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4)))
	return upload.File{Name: name, Data: buf.Bytes()}
}

func (s *ComplaintServiceSuite) create() *models.Complaint {
	s.notifier.EXPECT().ComplaintCreated(gomock.Any(), gomock.Any())
	c, err := s.service.Create(s.ctx, s.citizen, CreateCommand{
		EntityID:    s.entity.ID,
		Kind:        "Water leak",
		Description: "The main pipe on Elm street has been leaking for a week.",
		Location:    "Elm street 12",
	})
	s.Require().NoError(err)
	return c
}

func (s *ComplaintServiceSuite) accepted() *models.Complaint {
	c := s.create()
	s.notifier.EXPECT().StatusChanged(gomock.Any(), gomock.Any(), models.StatusNew, models.StatusInProgress)
	c, err := s.service.Accept(s.ctx, s.employee, c.TrackingNumber)
	s.Require().NoError(err)
	return c
}

func (s *ComplaintServiceSuite) actions(subject string) []string {
	events, err := s.audit.ListBySubject(s.ctx, subject)
	s.Require().NoError(err)
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Action)
	}
	return out
}

func (s *ComplaintServiceSuite) TestCreate() {
	s.Run("assigns a sequential tracking number and stores attachments", func() {
		s.notifier.EXPECT().ComplaintCreated(gomock.Any(), gomock.Any())
		c, err := s.service.Create(s.ctx, s.citizen, CreateCommand{
			EntityID:    s.entity.ID,
			Kind:        "Pothole",
			Description: "A deep pothole in front of the school entrance.",
			Files:       upload.Batch{Images: []upload.File{pngFile("hole.png")}},
		})
		s.Require().NoError(err)
		s.Equal("CMP-2025-000001", c.TrackingNumber)
		s.Equal(models.StatusNew, c.Status)
		s.Require().Len(c.Attachments, 1)
		s.Equal("hole.png", c.Attachments[0].FileName)
		_, _, ok := s.objects.Get(c.Attachments[0].FilePath)
		s.True(ok)
		s.Equal(1, s.metrics.created)
		s.Equal([]string{string(audit.EventComplaintCreated)}, s.actions(c.TrackingNumber))

		second := s.create()
		s.Equal("CMP-2025-000002", second.TrackingNumber)
	})

	s.Run("rejects inactive entities", func() {
		inactive := s.newEntity(false)
		_, err := s.service.Create(s.ctx, s.citizen, CreateCommand{
			EntityID:    inactive.ID,
			Kind:        "Noise",
			Description: "Construction noise all night long near the park.",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal("the selected entity is not active", dErrors.Message(err))
	})

	s.Run("rejects short descriptions before storing files", func() {
		before := s.objects.Len()
		_, err := s.service.Create(s.ctx, s.citizen, CreateCommand{
			EntityID:    s.entity.ID,
			Kind:        "Noise",
			Description: "too short",
			Files:       upload.Batch{Images: []upload.File{pngFile("a.png")}},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal(before, s.objects.Len())
	})

	s.Run("only citizens can submit", func() {
		_, err := s.service.Create(s.ctx, s.employee, CreateCommand{EntityID: s.entity.ID})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func (s *ComplaintServiceSuite) TestAcceptLocksForOtherEmployees() {
	c := s.accepted()
	s.Require().NotNil(c.AssignedTo)
	s.Equal(s.employee.ID, *c.AssignedTo)
	s.Equal(s.now.Add(time.Hour), *c.LockExpiresAt)

	_, err := s.service.Finish(s.ctx, s.other, c.TrackingNumber, "Pipe replaced by the maintenance crew.")
	s.True(dErrors.HasCode(err, dErrors.CodeLocked))

	_, err = s.service.Accept(s.ctx, s.other, c.TrackingNumber)
	s.True(dErrors.HasCode(err, dErrors.CodeLocked))
	s.Equal([]string{"new->in_progress"}, s.metrics.transitions)
}

func (s *ComplaintServiceSuite) TestFinish() {
	c := s.accepted()

	_, err := s.service.Finish(s.ctx, s.employee, c.TrackingNumber, "done")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	s.notifier.EXPECT().StatusChanged(gomock.Any(), gomock.Any(), models.StatusInProgress, models.StatusFinished)
	c, err = s.service.Finish(s.ctx, s.employee, c.TrackingNumber, "Pipe replaced by the maintenance crew.")
	s.Require().NoError(err)
	s.Equal(models.StatusFinished, c.Status)
	s.Nil(c.LockExpiresAt)
	s.Equal(s.employee.ID, *c.AssignedTo)
	s.Equal([]string{
		string(audit.EventComplaintCreated),
		string(audit.EventComplaintAccepted),
		string(audit.EventComplaintFinished),
	}, s.actions(c.TrackingNumber))
}

func (s *ComplaintServiceSuite) TestDeclineAndResubmit() {
	c := s.create()
	s.notifier.EXPECT().StatusChanged(gomock.Any(), gomock.Any(), models.StatusNew, models.StatusDeclined)
	c, err := s.service.Decline(s.ctx, s.employee, c.TrackingNumber, "This belongs to the municipal water board.")
	s.Require().NoError(err)
	s.Equal("This belongs to the municipal water board.", c.Resolution)

	s.notifier.EXPECT().StatusChanged(gomock.Any(), gomock.Any(), models.StatusDeclined, models.StatusNew)
	location := "Elm street 14"
	c, err = s.service.Update(s.ctx, s.citizen, c.TrackingNumber, UpdateCommand{
		Changes: models.CitizenChanges{Location: &location},
	})
	s.Require().NoError(err)
	s.Equal(models.StatusNew, c.Status)
	s.Equal(location, c.Location)
	s.Empty(c.Resolution)
}

func (s *ComplaintServiceSuite) TestRequestInfoAndAnswer() {
	c := s.accepted()
	s.notifier.EXPECT().InfoRequested(gomock.Any(), gomock.Any())
	c, err := s.service.RequestInfo(s.ctx, s.employee, c.TrackingNumber, "Please attach a photo of the leak.")
	s.Require().NoError(err)
	s.True(c.InfoRequested)

	c, err = s.service.Update(s.ctx, s.citizen, c.TrackingNumber, UpdateCommand{
		Files: upload.Batch{Images: []upload.File{pngFile("leak.png")}},
	})
	s.Require().NoError(err)
	s.False(c.InfoRequested)
	s.Equal(models.StatusInProgress, c.Status)
	s.Len(c.Attachments, 1)

	stored, err := s.complaints.FindByTrackingNumber(s.ctx, c.TrackingNumber)
	s.Require().NoError(err)
	s.Len(stored.Attachments, 1)
}

func (s *ComplaintServiceSuite) TestUpdateRules() {
	c := s.accepted()

	s.Run("in progress without an info request is read only", func() {
		kind := "Other"
		_, err := s.service.Update(s.ctx, s.citizen, c.TrackingNumber, UpdateCommand{Changes: models.CitizenChanges{Kind: &kind}})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("other citizens are refused", func() {
		stranger := models.Actor{ID: id.UserID(uuid.New()), Role: id.RoleCitizen}
		_, err := s.service.Update(s.ctx, stranger, c.TrackingNumber, UpdateCommand{})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unknown tracking numbers are not found", func() {
		_, err := s.service.Update(s.ctx, s.citizen, "CMP-2025-999999", UpdateCommand{})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ComplaintServiceSuite) TestDeleteAttachment() {
	s.notifier.EXPECT().ComplaintCreated(gomock.Any(), gomock.Any())
	c, err := s.service.Create(s.ctx, s.citizen, CreateCommand{
		EntityID:    s.entity.ID,
		Kind:        "Graffiti",
		Description: "Offensive graffiti painted on the library wall.",
		Files:       upload.Batch{Images: []upload.File{pngFile("wall.png")}},
	})
	s.Require().NoError(err)
	a := c.Attachments[0]

	s.Require().NoError(s.service.DeleteAttachment(s.ctx, s.citizen, c.TrackingNumber, a.ID))
	_, _, ok := s.objects.Get(a.FilePath)
	s.False(ok)

	err = s.service.DeleteAttachment(s.ctx, s.citizen, c.TrackingNumber, a.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ComplaintServiceSuite) TestUnlockAndReopen() {
	c := s.accepted()

	_, err := s.service.Unlock(s.ctx, s.other, c.TrackingNumber)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	c, err = s.service.Unlock(s.ctx, s.employee, c.TrackingNumber)
	s.Require().NoError(err)
	s.Nil(c.LockExpiresAt)
	s.Equal(s.employee.ID, *c.AssignedTo)

	s.notifier.EXPECT().StatusChanged(gomock.Any(), gomock.Any(), models.StatusInProgress, models.StatusFinished)
	_, err = s.service.Finish(s.ctx, s.employee, c.TrackingNumber, "Pipe replaced by the maintenance crew.")
	s.Require().NoError(err)

	_, err = s.service.Reopen(s.ctx, s.employee, c.TrackingNumber)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	s.notifier.EXPECT().StatusChanged(gomock.Any(), gomock.Any(), models.StatusFinished, models.StatusInProgress)
	c, err = s.service.Reopen(s.ctx, s.admin, c.TrackingNumber)
	s.Require().NoError(err)
	s.Equal(models.StatusInProgress, c.Status)
}

func (s *ComplaintServiceSuite) TestChangeStatus() {
	c := s.create()

	_, err := s.service.ChangeStatus(s.ctx, s.employee, c.TrackingNumber, models.StatusDeclined, "")
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	_, err = s.service.ChangeStatus(s.ctx, s.admin, c.TrackingNumber, models.StatusFinished, "")
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	s.notifier.EXPECT().StatusChanged(gomock.Any(), gomock.Any(), models.StatusNew, models.StatusDeclined)
	c, err = s.service.ChangeStatus(s.ctx, s.admin, c.TrackingNumber, models.StatusDeclined, "Duplicate of CMP-2025-000001")
	s.Require().NoError(err)
	s.Equal("Duplicate of CMP-2025-000001", c.AdminNotes)
}

func (s *ComplaintServiceSuite) TestUnlockExpired() {
	expired := s.accepted()
	waiting := s.accepted()
	s.notifier.EXPECT().InfoRequested(gomock.Any(), gomock.Any())
	_, err := s.service.RequestInfo(s.ctx, s.employee, waiting.TrackingNumber, "Which floor is affected?")
	s.Require().NoError(err)

	n, err := s.service.UnlockExpired(context.Background(), s.now.Add(30*time.Minute))
	s.Require().NoError(err)
	s.Zero(n)

	s.notifier.EXPECT().StatusChanged(gomock.Any(), gomock.Any(), models.StatusInProgress, models.StatusNew)
	n, err = s.service.UnlockExpired(context.Background(), s.now.Add(2*time.Hour))
	s.Require().NoError(err)
	s.Equal(1, n)
	s.Equal(1, s.metrics.released)

	c, err := s.complaints.FindByTrackingNumber(s.ctx, expired.TrackingNumber)
	s.Require().NoError(err)
	s.Equal(models.StatusNew, c.Status)
	s.Nil(c.AssignedTo)

	c, err = s.complaints.FindByTrackingNumber(s.ctx, waiting.TrackingNumber)
	s.Require().NoError(err)
	s.Equal(models.StatusInProgress, c.Status)
}

func (s *ComplaintServiceSuite) TestTrackAndLists() {
	c := s.accepted()

	_, err := s.service.Track(s.ctx, s.citizen, c.TrackingNumber)
	s.NoError(err)
	_, err = s.service.Track(s.ctx, s.admin, c.TrackingNumber)
	s.NoError(err)
	outsider := id.EntityID(uuid.New())
	_, err = s.service.Track(s.ctx, models.Actor{ID: id.UserID(uuid.New()), Role: id.RoleEmployee, EntityID: &outsider}, c.TrackingNumber)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	public, err := s.service.PublicStatus(s.ctx, c.TrackingNumber)
	s.Require().NoError(err)
	s.Equal(models.StatusInProgress, public.Status)
	s.Equal("Water Authority", public.EntityName)

	_, err = s.service.PublicStatus(s.ctx, "not-a-number")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	page := id.NewPageRequest(1, 10)
	mine, err := s.service.ListForCitizen(s.ctx, s.citizen, page)
	s.Require().NoError(err)
	s.Equal(1, mine.Total)

	assigned, err := s.service.ListAssigned(s.ctx, s.employee, page)
	s.Require().NoError(err)
	s.Equal(1, assigned.Total)

	assigned, err = s.service.ListAssigned(s.ctx, s.other, page)
	s.Require().NoError(err)
	s.Zero(assigned.Total)

	status := models.StatusNew
	byStatus, err := s.service.ListForEntity(s.ctx, s.employee, &status, page)
	s.Require().NoError(err)
	s.Zero(byStatus.Total)

	_, err = s.service.ListForEntity(s.ctx, s.citizen, nil, page)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	all, err := s.service.ListAll(s.ctx, nil, page)
	s.Require().NoError(err)
	s.Equal(1, all.Total)

	byAdmin, err := s.service.ListForCitizenByAdmin(s.ctx, s.citizen.ID, page)
	s.Require().NoError(err)
	s.Equal(1, byAdmin.Total)
}
