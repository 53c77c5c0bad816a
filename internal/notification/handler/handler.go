package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"grievance/internal/notification/models"
	"grievance/internal/notification/service"
	id "grievance/pkg/domain"
	"grievance/pkg/platform/httputil"
	"grievance/pkg/requestcontext"
)

type Service interface {
	List(ctx context.Context, userID id.UserID, unreadOnly bool, page id.PageRequest) (*service.Inbox, error)
	MarkRead(ctx context.Context, userID id.UserID, notificationID id.NotificationID) (*models.Notification, error)
	MarkAllRead(ctx context.Context, userID id.UserID) (int, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the inbox routes. Callers apply auth.
func (h *Handler) Register(r chi.Router) {
	r.Get("/notifications", h.HandleList)
	r.Post("/notifications/read-all", h.HandleMarkAllRead)
	r.Post("/notifications/{id}/read", h.HandleMarkRead)
}

type NotificationResponse struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Data      map[string]string `json:"data"`
	ReadAt    *time.Time        `json:"read_at"`
	CreatedAt time.Time         `json:"created_at"`
}

func toResponse(n *models.Notification) NotificationResponse {
	data := n.Data
	if data == nil {
		data = map[string]string{}
	}
	return NotificationResponse{
		ID:        n.ID.String(),
		Type:      string(n.Kind),
		Title:     n.Title,
		Message:   n.Body,
		Data:      data,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
}

type listResponse struct {
	httputil.ListResponse[NotificationResponse]
	UnreadCount int `json:"unread_count"`
}

// HandleList handles GET /notifications requests.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	unreadOnly := r.URL.Query().Get("unread") == "true" || r.URL.Query().Get("unread") == "1"
	inbox, err := h.service.List(ctx, requestcontext.UserID(ctx), unreadOnly, httputil.PageRequestFrom(r))
	if err != nil {
		h.fail(w, r, "failed to list notifications", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{
		ListResponse: httputil.NewListResponse(inbox.Page, toResponse),
		UnreadCount:  inbox.Unread,
	})
}

// HandleMarkRead handles POST /notifications/{id}/read requests.
func (h *Handler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	notificationID, err := id.ParseNotificationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	n, err := h.service.MarkRead(ctx, requestcontext.UserID(ctx), notificationID)
	if err != nil {
		h.fail(w, r, "failed to mark notification read", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"data": toResponse(n)})
}

func (h *Handler) HandleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n, err := h.service.MarkAllRead(ctx, requestcontext.UserID(ctx))
	if err != nil {
		h.fail(w, r, "failed to mark notifications read", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"message": "Notifications marked as read", "updated": n})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	h.logger.WarnContext(ctx, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteError(w, err)
}
