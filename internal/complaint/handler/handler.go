package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"grievance/internal/complaint/models"
	"grievance/internal/complaint/service"
	id "grievance/pkg/domain"
	"grievance/pkg/platform/httputil"
	"grievance/pkg/requestcontext"
)

type Service interface {
	URLResolver
	Create(ctx context.Context, actor models.Actor, cmd service.CreateCommand) (*models.Complaint, error)
	Update(ctx context.Context, actor models.Actor, trackingNumber string, cmd service.UpdateCommand) (*models.Complaint, error)
	DeleteAttachment(ctx context.Context, actor models.Actor, trackingNumber string, attachmentID id.AttachmentID) error
	Track(ctx context.Context, actor models.Actor, trackingNumber string) (*models.Complaint, error)
	PublicStatus(ctx context.Context, trackingNumber string) (*service.PublicStatus, error)
	ListForCitizen(ctx context.Context, actor models.Actor, page id.PageRequest) (id.Page[*models.Complaint], error)
	ListForEntity(ctx context.Context, actor models.Actor, status *models.Status, page id.PageRequest) (id.Page[*models.Complaint], error)
	ListAssigned(ctx context.Context, actor models.Actor, page id.PageRequest) (id.Page[*models.Complaint], error)
	ListAll(ctx context.Context, status *models.Status, page id.PageRequest) (id.Page[*models.Complaint], error)
	Accept(ctx context.Context, actor models.Actor, trackingNumber string) (*models.Complaint, error)
	Finish(ctx context.Context, actor models.Actor, trackingNumber, resolution string) (*models.Complaint, error)
	Decline(ctx context.Context, actor models.Actor, trackingNumber, reason string) (*models.Complaint, error)
	RequestInfo(ctx context.Context, actor models.Actor, trackingNumber, message string) (*models.Complaint, error)
	Unlock(ctx context.Context, actor models.Actor, trackingNumber string) (*models.Complaint, error)
	Reopen(ctx context.Context, actor models.Actor, trackingNumber string) (*models.Complaint, error)
	ChangeStatus(ctx context.Context, actor models.Actor, trackingNumber string, to models.Status, note string) (*models.Complaint, error)
}

type Handler struct {
	service   Service
	presenter Presenter
	logger    *slog.Logger
	limiter   httputil.Limiter
}

func New(service Service, logger *slog.Logger, limiter httputil.Limiter) *Handler {
	if limiter == nil {
		limiter = httputil.NoLimit{}
	}
	return &Handler{service: service, presenter: NewPresenter(service), logger: logger, limiter: limiter}
}

// RegisterPublic mounts the anonymous tracking lookup.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.With(h.limiter.Limit("public-track")).Get("/public/complaints/{tracking}", h.HandlePublicStatus)
}

// RegisterCitizen mounts the citizen complaint endpoints. Callers apply auth and the citizen guard.
func (h *Handler) RegisterCitizen(r chi.Router) {
	r.With(h.limiter.Limit("create-complaint", "file-upload")).Post("/complaints", h.HandleCreate)
	r.Get("/complaints", h.HandleListMine)
	r.Get("/complaints/{tracking}", h.HandleGet)
	r.With(h.limiter.Limit("update-complaint", "file-upload")).Post("/complaints/{tracking}", h.HandleUpdate)
	r.With(h.limiter.Limit("update-complaint")).Delete("/complaints/{tracking}/attachments/{id}", h.HandleDeleteAttachment)
}

// RegisterEmployee mounts the entity work queue. Callers apply auth and the employee guard.
func (h *Handler) RegisterEmployee(r chi.Router) {
	r.Get("/complaints", h.HandleListEntity)
	r.Get("/complaints/assigned", h.HandleListAssigned)
	r.Get("/complaints/{tracking}", h.HandleGet)
	r.Group(func(r chi.Router) {
		r.Use(h.limiter.Limit("employee-actions"))
		r.Post("/complaints/{tracking}/accept", h.HandleAccept)
		r.Post("/complaints/{tracking}/finish", h.HandleFinish)
		r.Post("/complaints/{tracking}/decline", h.HandleDecline)
		r.Post("/complaints/{tracking}/request-info", h.HandleRequestInfo)
		r.Post("/complaints/{tracking}/unlock", h.HandleUnlock)
		r.Post("/complaints/{tracking}/reopen", h.HandleReopen)
	})
}

// RegisterAdmin mounts the admin complaint views. Callers apply auth and the admin guard.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/complaints", h.HandleListAll)
	r.Get("/complaints/{tracking}", h.HandleGet)
	r.Post("/complaints/{tracking}/status", h.HandleChangeStatus)
}

// HandleCreate handles multipart POST /complaints requests.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	form, err := parseComplaintForm(w, r)
	if err == nil {
		err = form.validateCreate()
	}
	if err != nil {
		h.fail(w, r, "invalid complaint submission", err)
		return
	}
	c, err := h.service.Create(ctx, actorFrom(ctx), service.CreateCommand{
		EntityID:    form.entityID,
		Kind:        value(form.Kind),
		Description: value(form.Description),
		Location:    value(form.Location),
		Files:       form.Files,
	})
	if err != nil {
		h.fail(w, r, "failed to create complaint", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]any{
		"message":         "Complaint submitted successfully",
		"tracking_number": c.TrackingNumber,
		"data":            h.presenter.Complaint(ctx, c),
	})
}

// HandleUpdate handles multipart POST /complaints/{tracking} requests.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	form, err := parseComplaintForm(w, r)
	if err != nil {
		h.fail(w, r, "invalid complaint update", err)
		return
	}
	c, err := h.service.Update(ctx, actorFrom(ctx), chi.URLParam(r, "tracking"), service.UpdateCommand{
		Changes: form.changes(),
		Files:   form.Files,
	})
	if err != nil {
		h.fail(w, r, "failed to update complaint", err)
		return
	}
	h.respond(w, r, "Complaint updated successfully", c)
}

func (h *Handler) HandleDeleteAttachment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	attachmentID, err := id.ParseAttachmentID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.DeleteAttachment(ctx, actorFrom(ctx), chi.URLParam(r, "tracking"), attachmentID); err != nil {
		h.fail(w, r, "failed to delete attachment", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "Attachment deleted successfully"})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, err := h.service.Track(ctx, actorFrom(ctx), chi.URLParam(r, "tracking"))
	if err != nil {
		h.fail(w, r, "failed to get complaint", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"data": h.presenter.Complaint(ctx, c)})
}

// HandlePublicStatus handles GET /public/complaints/{tracking} requests.
func (h *Handler) HandlePublicStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.PublicStatus(r.Context(), chi.URLParam(r, "tracking"))
	if err != nil {
		h.fail(w, r, "failed to track complaint", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"data": fromPublic(status)})
}

func (h *Handler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, err := h.service.ListForCitizen(ctx, actorFrom(ctx), httputil.PageRequestFrom(r))
	h.writeList(w, r, page, err)
}

// HandleListEntity handles GET /employee/complaints requests.
func (h *Handler) HandleListEntity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status, err := statusFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	page, err := h.service.ListForEntity(ctx, actorFrom(ctx), status, httputil.PageRequestFrom(r))
	h.writeList(w, r, page, err)
}

func (h *Handler) HandleListAssigned(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, err := h.service.ListAssigned(ctx, actorFrom(ctx), httputil.PageRequestFrom(r))
	h.writeList(w, r, page, err)
}

func (h *Handler) HandleListAll(w http.ResponseWriter, r *http.Request) {
	status, err := statusFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	page, err := h.service.ListAll(r.Context(), status, httputil.PageRequestFrom(r))
	h.writeList(w, r, page, err)
}

// HandleAccept handles POST /employee/complaints/{tracking}/accept requests.
func (h *Handler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "Complaint accepted and locked for you", h.service.Accept)
}

func (h *Handler) HandleUnlock(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "Complaint unlocked successfully", h.service.Unlock)
}

func (h *Handler) HandleReopen(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "Complaint reopened successfully", h.service.Reopen)
}

func (h *Handler) HandleFinish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[ResolutionRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	c, err := h.service.Finish(ctx, actorFrom(ctx), chi.URLParam(r, "tracking"), req.Resolution)
	if err != nil {
		h.fail(w, r, "failed to finish complaint", err)
		return
	}
	h.respond(w, r, "Complaint marked as finished", c)
}

func (h *Handler) HandleDecline(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[DeclineRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	c, err := h.service.Decline(ctx, actorFrom(ctx), chi.URLParam(r, "tracking"), req.Reason)
	if err != nil {
		h.fail(w, r, "failed to decline complaint", err)
		return
	}
	h.respond(w, r, "Complaint declined", c)
}

// HandleRequestInfo handles POST /employee/complaints/{tracking}/request-info requests.
func (h *Handler) HandleRequestInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[InfoRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	c, err := h.service.RequestInfo(ctx, actorFrom(ctx), chi.URLParam(r, "tracking"), req.Message)
	if err != nil {
		h.fail(w, r, "failed to request information", err)
		return
	}
	h.respond(w, r, "Information requested from the citizen", c)
}

// HandleChangeStatus handles POST /admin/complaints/{tracking}/status requests.
func (h *Handler) HandleChangeStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[StatusRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	c, err := h.service.ChangeStatus(ctx, actorFrom(ctx), chi.URLParam(r, "tracking"), req.status, req.AdminNotes)
	if err != nil {
		h.fail(w, r, "failed to change complaint status", err)
		return
	}
	h.respond(w, r, "Complaint status updated successfully", c)
}

func (h *Handler) act(w http.ResponseWriter, r *http.Request, message string,
	fn func(context.Context, models.Actor, string) (*models.Complaint, error)) {
	ctx := r.Context()
	c, err := fn(ctx, actorFrom(ctx), chi.URLParam(r, "tracking"))
	if err != nil {
		h.fail(w, r, "failed to change complaint", err)
		return
	}
	h.respond(w, r, message, c)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, message string, c *models.Complaint) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"message": message,
		"data":    h.presenter.Complaint(r.Context(), c),
	})
}

func (h *Handler) writeList(w http.ResponseWriter, r *http.Request, page id.Page[*models.Complaint], err error) {
	if err != nil {
		h.fail(w, r, "failed to list complaints", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.NewListResponse(page, h.presenter.Mapper(r.Context())))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	h.logger.WarnContext(ctx, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteError(w, err)
}

func actorFrom(ctx context.Context) models.Actor {
	return models.Actor{
		ID:       requestcontext.UserID(ctx),
		Role:     requestcontext.Role(ctx),
		EntityID: requestcontext.EntityID(ctx),
	}
}
