package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"grievance/internal/ratelimit/models"
	dErrors "grievance/pkg/domain-errors"
	"grievance/pkg/platform/httputil"
	"grievance/pkg/requestcontext"
)

type Service interface {
	Policies() []models.Policy
	BlockedIPs(ctx context.Context) ([]models.BlockedIP, error)
	Unblock(ctx context.Context, ip string) error
	Degraded() bool
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterAdmin mounts rate limit inspection. Callers apply auth and the admin guard.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/rate-limits", h.HandleListPolicies)
	r.Get("/rate-limits/blocked-ips", h.HandleListBlocked)
	r.Delete("/rate-limits/blocked-ips/{ip}", h.HandleUnblock)
}

type limitResponse struct {
	Max           int    `json:"max"`
	WindowSeconds int    `json:"window_seconds"`
	Window        string `json:"window"`
	By            string `json:"by"`
}

type policyResponse struct {
	Name   string          `json:"name"`
	Limits []limitResponse `json:"limits"`
}

// HandleListPolicies handles GET /admin/rate-limits requests.
func (h *Handler) HandleListPolicies(w http.ResponseWriter, r *http.Request) {
	policies := h.service.Policies()
	out := make([]policyResponse, 0, len(policies))
	for _, p := range policies {
		pr := policyResponse{Name: p.Name, Limits: make([]limitResponse, 0, len(p.Limits))}
		for _, l := range p.Limits {
			pr.Limits = append(pr.Limits, limitResponse{
				Max:           l.Max,
				WindowSeconds: int(l.Window.Seconds()),
				Window:        l.Window.String(),
				By:            string(l.By),
			})
		}
		out = append(out, pr)
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"data":     out,
		"degraded": h.service.Degraded(),
	})
}

// HandleListBlocked handles GET /admin/rate-limits/blocked-ips requests.
func (h *Handler) HandleListBlocked(w http.ResponseWriter, r *http.Request) {
	blocked, err := h.service.BlockedIPs(r.Context())
	if err != nil {
		h.fail(w, r, "failed to list blocked ips", err)
		return
	}
	if blocked == nil {
		blocked = []models.BlockedIP{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"data": blocked})
}

// HandleUnblock handles DELETE /admin/rate-limits/blocked-ips/{ip} requests.
func (h *Handler) HandleUnblock(w http.ResponseWriter, r *http.Request) {
	ip := strings.TrimSpace(chi.URLParam(r, "ip"))
	if ip == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "ip is required"))
		return
	}
	if err := h.service.Unblock(r.Context(), ip); err != nil {
		h.fail(w, r, "failed to unblock ip", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "IP address unblocked successfully"})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	h.logger.WarnContext(ctx, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteError(w, err)
}
