package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"grievance/internal/entity/models"
	"grievance/internal/entity/service"
	id "grievance/pkg/domain"
	"grievance/pkg/platform/httputil"
	"grievance/pkg/requestcontext"
)

type Service interface {
	ListSummaries(ctx context.Context) ([]models.Summary, error)
	ListActive(ctx context.Context) ([]*models.Entity, error)
	Get(ctx context.Context, entityID id.EntityID) (*models.Summary, error)
	Create(ctx context.Context, cmd service.CreateCommand) (*models.Entity, error)
	Update(ctx context.Context, entityID id.EntityID, changes models.Changes) (*models.Entity, error)
	Delete(ctx context.Context, entityID id.EntityID) error
	Restore(ctx context.Context, entityID id.EntityID) (*models.Entity, error)
	ToggleActive(ctx context.Context, entityID id.EntityID) (*models.Entity, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterPublic mounts the unauthenticated entity directory.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/entities", h.HandleListActive)
}

// RegisterAdmin mounts entity management. Callers apply auth and role guards.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/entities", h.HandleList)
	r.Post("/entities", h.HandleCreate)
	r.Get("/entities/{id}", h.HandleGet)
	r.Put("/entities/{id}", h.HandleUpdate)
	r.Delete("/entities/{id}", h.HandleDelete)
	r.Post("/entities/{id}/restore", h.HandleRestore)
	r.Post("/entities/{id}/toggle-active", h.HandleToggleActive)
}

// HandleListActive handles GET /entities requests from citizens.
func (h *Handler) HandleListActive(w http.ResponseWriter, r *http.Request) {
	entities, err := h.service.ListActive(r.Context())
	if err != nil {
		h.fail(w, r, "failed to list active entities", err)
		return
	}
	out := make([]PublicEntityResponse, 0, len(entities))
	for _, e := range entities {
		out = append(out, toPublic(e))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"data": out})
}

// HandleList handles GET /admin/entities requests.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.service.ListSummaries(r.Context())
	if err != nil {
		h.fail(w, r, "failed to list entities", err)
		return
	}
	resp := EntityListResponse{Data: make([]EntityResponse, 0, len(summaries)), Total: len(summaries)}
	for _, s := range summaries {
		resp.Data = append(resp.Data, fromSummary(s))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	entityID, ok := h.entityID(w, r)
	if !ok {
		return
	}
	summary, err := h.service.Get(r.Context(), entityID)
	if err != nil {
		h.fail(w, r, "failed to get entity", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"data": fromSummary(*summary)})
}

// HandleCreate handles POST /admin/entities requests.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[CreateEntityRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	e, err := h.service.Create(ctx, service.CreateCommand{
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		Description: req.Description,
		Type:        req.parsedType,
		IsActive:    req.Active(),
	})
	if err != nil {
		h.fail(w, r, "failed to create entity", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]any{
		"message": "Entity created successfully",
		"data":    fromEntity(e),
	})
}

// HandleUpdate handles PUT /admin/entities/{id} requests.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entityID, ok := h.entityID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateEntityRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	e, err := h.service.Update(ctx, entityID, req.Changes())
	if err != nil {
		h.fail(w, r, "failed to update entity", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Entity updated successfully",
		"data":    fromEntity(e),
	})
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	entityID, ok := h.entityID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), entityID); err != nil {
		h.fail(w, r, "failed to delete entity", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "Entity deleted successfully"})
}

func (h *Handler) HandleRestore(w http.ResponseWriter, r *http.Request) {
	entityID, ok := h.entityID(w, r)
	if !ok {
		return
	}
	e, err := h.service.Restore(r.Context(), entityID)
	if err != nil {
		h.fail(w, r, "failed to restore entity", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Entity restored successfully",
		"data":    fromEntity(e),
	})
}

func (h *Handler) HandleToggleActive(w http.ResponseWriter, r *http.Request) {
	entityID, ok := h.entityID(w, r)
	if !ok {
		return
	}
	e, err := h.service.ToggleActive(r.Context(), entityID)
	if err != nil {
		h.fail(w, r, "failed to toggle entity", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"data": fromEntity(e)})
}

func (h *Handler) entityID(w http.ResponseWriter, r *http.Request) (id.EntityID, bool) {
	entityID, err := id.ParseEntityID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.EntityID{}, false
	}
	return entityID, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	h.logger.WarnContext(ctx, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteError(w, err)
}
