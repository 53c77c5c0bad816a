package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"grievance/internal/employee/service"
	id "grievance/pkg/domain"
	dErrors "grievance/pkg/domain-errors"
	"grievance/pkg/platform/httputil"
	"grievance/pkg/requestcontext"
)

type Service interface {
	List(ctx context.Context, entityID *id.EntityID, page id.PageRequest) (id.Page[service.Employee], error)
	Get(ctx context.Context, userID id.UserID) (*service.Employee, error)
	Create(ctx context.Context, cmd service.CreateCommand) (*service.Employee, error)
	Update(ctx context.Context, userID id.UserID, cmd service.UpdateCommand) (*service.Employee, error)
	Delete(ctx context.Context, userID id.UserID) error
	Restore(ctx context.Context, userID id.UserID) (*service.Employee, error)
	ToggleActive(ctx context.Context, userID id.UserID) (*service.Employee, error)
	Activate(ctx context.Context, userID id.UserID) (*service.Employee, error)
	Deactivate(ctx context.Context, userID id.UserID) (*service.Employee, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterAdmin mounts employee management. Callers apply auth and role guards.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/employees", h.HandleList)
	r.Post("/employees", h.HandleCreate)
	r.Get("/employees/{id}", h.HandleGet)
	r.Put("/employees/{id}", h.HandleUpdate)
	r.Delete("/employees/{id}", h.HandleDelete)
	r.Post("/employees/{id}/restore", h.HandleRestore)
	r.Post("/employees/{id}/toggle-active", h.HandleToggleActive)
	r.Post("/employees/{id}/activate", h.HandleActivate)
	r.Post("/employees/{id}/deactivate", h.HandleDeactivate)
}

// HandleList handles GET /admin/employees requests.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	var entityID *id.EntityID
	if raw := r.URL.Query().Get("entity_id"); raw != "" {
		parsed, err := id.ParseEntityID(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "entity_id must be a valid id"))
			return
		}
		entityID = &parsed
	}
	page, err := h.service.List(r.Context(), entityID, httputil.PageRequestFrom(r))
	if err != nil {
		h.fail(w, r, "failed to list employees", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.NewListResponse(page, fromEmployee))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	e, err := h.service.Get(r.Context(), userID)
	if err != nil {
		h.fail(w, r, "failed to get employee", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"data": fromEmployee(*e)})
}

// HandleCreate handles POST /admin/employees requests.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[CreateEmployeeRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	e, err := h.service.Create(ctx, req.Command())
	if err != nil {
		h.fail(w, r, "failed to create employee", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]any{
		"message": "Employee created successfully",
		"data":    fromEmployee(*e),
	})
}

// HandleUpdate handles PUT /admin/employees/{id} requests.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateEmployeeRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	e, err := h.service.Update(ctx, userID, req.Command())
	if err != nil {
		h.fail(w, r, "failed to update employee", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Employee updated successfully",
		"data":    fromEmployee(*e),
	})
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), userID); err != nil {
		h.fail(w, r, "failed to delete employee", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "Employee deleted successfully"})
}

func (h *Handler) HandleRestore(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Employee restored successfully", h.service.Restore)
}

func (h *Handler) HandleToggleActive(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Employee status updated successfully", h.service.ToggleActive)
}

func (h *Handler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Employee activated successfully", h.service.Activate)
}

func (h *Handler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "Employee deactivated successfully", h.service.Deactivate)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, message string,
	fn func(context.Context, id.UserID) (*service.Employee, error)) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	e, err := fn(r.Context(), userID)
	if err != nil {
		h.fail(w, r, "failed to change employee", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"message": message,
		"data":    fromEmployee(*e),
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
