package handler

import (
	"context"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grievance/internal/admin/service"
	"grievance/internal/auth/models"
	"grievance/internal/auth/store/user"
	complainthandler "grievance/internal/complaint/handler"
	complaintmodels "grievance/internal/complaint/models"
	id "grievance/pkg/domain"
	"grievance/pkg/testutil"
)

type stubComplaints struct {
	byCitizen map[id.UserID][]*complaintmodels.Complaint
}

func (s stubComplaints) CountByCitizen(_ context.Context, ids []id.UserID) (map[id.UserID]int, error) {
	out := make(map[id.UserID]int, len(ids))
	for _, uid := range ids {
		if n := len(s.byCitizen[uid]); n > 0 {
			out[uid] = n
		}
	}
	return out, nil
}

func (s stubComplaints) ListForCitizenByAdmin(_ context.Context, citizenID id.UserID, page id.PageRequest) (id.Page[*complaintmodels.Complaint], error) {
	return id.Paginate(s.byCitizen[citizenID], page), nil
}

type noURLs struct{}

func (noURLs) FileURL(context.Context, complaintmodels.Attachment) (string, error) { return "", nil }

type fixture struct {
	router   http.Handler
	ana      *models.User
	bo       *models.User
	employee *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	users := user.NewInMemory()
	newUser := func(first, email string, role id.Role, entityID *id.EntityID) *models.User {
		now = now.Add(time.Minute)
		u, err := models.NewUser(id.UserID(uuid.New()), models.NewUserParams{
			FirstName: first, LastName: "Haddad", Email: email, PasswordHash: "hash",
			Role: role, EntityID: entityID, IsActive: true, Verified: true,
		}, now)
		require.NoError(t, err)
		require.NoError(t, users.Create(ctx, u))
		return u
	}
	entityID := id.EntityID(uuid.New())
	f := &fixture{
		ana:      newUser("Ana", "ana@example.com", id.RoleCitizen, nil),
		bo:       newUser("Bo", "bo@example.com", id.RoleCitizen, nil),
		employee: newUser("Eve", "eve@gov.example", id.RoleEmployee, &entityID),
	}

	complaint, err := complaintmodels.NewComplaint(id.ComplaintID(uuid.New()), "CMP-2025-000001", f.ana.ID, entityID,
		"Water leak", "The main pipe on Elm street has been leaking for a week.", "", now)
	require.NoError(t, err)
	complaints := stubComplaints{byCitizen: map[id.UserID][]*complaintmodels.Complaint{f.ana.ID: {complaint}}}

	h := New(service.New(users, complaints), noURLs{}, slog.New(slog.DiscardHandler))
	r := chi.NewRouter()
	r.Route("/admin", h.RegisterAdmin)
	f.router = r
	return f
}

type citizenList struct {
	Data []CitizenResponse `json:"data"`
	Meta struct {
		Total int `json:"total"`
	} `json:"meta"`
	Summary struct {
		TotalCitizens int `json:"total_citizens"`
	} `json:"summary"`
}

func TestListCitizens(t *testing.T) {
	f := newFixture(t)

	rr := testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodGet, "/admin/citizens"))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	list := testutil.UnmarshalResponse[citizenList](t, rr)
	assert.Equal(t, 2, list.Meta.Total)
	assert.Equal(t, 2, list.Summary.TotalCitizens)
	counts := map[string]int{}
	for _, c := range list.Data {
		assert.Equal(t, "citizen", c.Role)
		counts[c.Email] = c.ComplaintsCount
	}
	assert.Equal(t, map[string]int{"ana@example.com": 1, "bo@example.com": 0}, counts)

	rr = testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodGet, "/admin/citizens?search=bo"))
	require.Equal(t, http.StatusOK, rr.Code)
	list = testutil.UnmarshalResponse[citizenList](t, rr)
	require.Len(t, list.Data, 1)
	assert.Equal(t, "bo@example.com", list.Data[0].Email)
	assert.Equal(t, 2, list.Summary.TotalCitizens)
}

func TestGetCitizen(t *testing.T) {
	f := newFixture(t)

	rr := testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodGet, "/admin/citizens/"+f.ana.ID.String()))
	require.Equal(t, http.StatusOK, rr.Code)
	resp := testutil.UnmarshalResponse[struct {
		Data CitizenResponse `json:"data"`
	}](t, rr)
	assert.Equal(t, "Ana Haddad", resp.Data.FullName)
	assert.Equal(t, 1, resp.Data.ComplaintsCount)

	rr = testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodGet, "/admin/citizens/"+f.employee.ID.String()))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodGet, "/admin/citizens/not-an-id"))
	assert.NotEqual(t, http.StatusOK, rr.Code)
}

func TestCitizenComplaints(t *testing.T) {
	f := newFixture(t)

	rr := testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodGet, "/admin/citizens/"+f.ana.ID.String()+"/complaints"))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := testutil.UnmarshalResponse[struct {
		Citizen CitizenResponse                      `json:"citizen"`
		Data    []complainthandler.ComplaintResponse `json:"data"`
	}](t, rr)
	assert.Equal(t, "ana@example.com", resp.Citizen.Email)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "CMP-2025-000001", resp.Data[0].TrackingNumber)
}
