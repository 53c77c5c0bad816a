package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"grievance/internal/admin/service"
	authhandler "grievance/internal/auth/handler"
	complainthandler "grievance/internal/complaint/handler"
	complaintmodels "grievance/internal/complaint/models"
	id "grievance/pkg/domain"
	"grievance/pkg/platform/httputil"
	"grievance/pkg/requestcontext"
)

type Service interface {
	List(ctx context.Context, search string, page id.PageRequest) (*service.CitizenList, error)
	Get(ctx context.Context, userID id.UserID) (*service.Citizen, error)
	Complaints(ctx context.Context, userID id.UserID, page id.PageRequest) (*service.Citizen, id.Page[*complaintmodels.Complaint], error)
}

type Handler struct {
	service   Service
	presenter complainthandler.Presenter
	logger    *slog.Logger
}

func New(service Service, urls complainthandler.URLResolver, logger *slog.Logger) *Handler {
	return &Handler{service: service, presenter: complainthandler.NewPresenter(urls), logger: logger}
}

// RegisterAdmin mounts the citizen directory. Callers apply auth and the admin guard.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/citizens", h.HandleList)
	r.Get("/citizens/{id}", h.HandleGet)
	r.Get("/citizens/{id}/complaints", h.HandleComplaints)
}

type CitizenResponse struct {
	authhandler.UserResponse
	ComplaintsCount int `json:"complaints_count"`
}

func fromCitizen(c service.Citizen) CitizenResponse {
	return CitizenResponse{UserResponse: authhandler.ToUserResponse(c.User), ComplaintsCount: c.ComplaintsCount}
}

type citizenListResponse struct {
	httputil.ListResponse[CitizenResponse]
	Summary struct {
		TotalCitizens int `json:"total_citizens"`
	} `json:"summary"`
}

// HandleList handles GET /admin/citizens requests.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context(), r.URL.Query().Get("search"), httputil.PageRequestFrom(r))
	if err != nil {
		h.fail(w, r, "failed to list citizens", err)
		return
	}
	resp := citizenListResponse{ListResponse: httputil.NewListResponse(list.Page, fromCitizen)}
	resp.Summary.TotalCitizens = list.TotalCitizens
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleGet handles GET /admin/citizens/{id} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	c, err := h.service.Get(r.Context(), userID)
	if err != nil {
		h.fail(w, r, "failed to get citizen", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"data": fromCitizen(*c)})
}

type citizenComplaintsResponse struct {
	Citizen CitizenResponse `json:"citizen"`
	httputil.ListResponse[complainthandler.ComplaintResponse]
}

// HandleComplaints handles GET /admin/citizens/{id}/complaints requests.
func (h *Handler) HandleComplaints(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	c, page, err := h.service.Complaints(ctx, userID, httputil.PageRequestFrom(r))
	if err != nil {
		h.fail(w, r, "failed to list citizen complaints", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, citizenComplaintsResponse{
		Citizen:      fromCitizen(*c),
		ListResponse: httputil.NewListResponse(page, h.presenter.Mapper(ctx)),
	})
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (id.UserID, bool) {
	userID, err := id.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.UserID{}, false
	}
	return userID, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	h.logger.WarnContext(ctx, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteError(w, err)
}
