// Package httptransport assembles the chi router: the shared middleware chain,
// the operational endpoints and every role-scoped route group.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	id "grievance/pkg/domain"
	"grievance/pkg/platform/httputil"
	authmw "grievance/pkg/platform/middleware/auth"
	"grievance/pkg/platform/middleware/metadata"
	"grievance/pkg/platform/middleware/request"
	"grievance/pkg/platform/middleware/requesttime"
	"grievance/pkg/platform/middleware/role"
)

const healthTimeout = 2 * time.Second

// Routes collects route registration funcs per surface. Each func receives a
// router that already carries the surface's auth, role and limit middleware.
type Routes struct {
	Public        []func(chi.Router)
	Authenticated []func(chi.Router)
	Citizen       []func(chi.Router)
	Employee      []func(chi.Router)
	AdminPublic   []func(chi.Router)
	Admin         []func(chi.Router)
}

// IPGuard rejects requests from blocked client addresses.
type IPGuard interface {
	BlockSuspicious(next http.Handler) http.Handler
}

type Metrics interface {
	Middleware(next http.Handler) http.Handler
	Handler() http.Handler
}

// HealthCheck is one dependency probed by /healthz.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Config struct {
	Logger      *slog.Logger
	Tokens      authmw.JWTValidator
	Revocations authmw.TokenRevocationChecker
	Guard       IPGuard
	Limiter     httputil.Limiter
	Metrics     Metrics
	// Files serves locally stored uploads under /files. Nil when objects
	// live in a bucket.
	Files  http.Handler
	Health []HealthCheck
}

// NewRouter wires the middleware chain and mounts every surface.
func NewRouter(cfg Config, routes Routes) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = httputil.NoLimit{}
	}

	r := chi.NewRouter()
	r.Use(request.Recovery(logger))
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	if cfg.Guard != nil {
		r.Use(cfg.Guard.BlockSuspicious)
	}
	r.Use(request.Logger(logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Get("/healthz", healthHandler(cfg.Health))
	if cfg.Files != nil {
		r.Mount("/files", http.StripPrefix("/files", cfg.Files))
	}

	requireAuth := authmw.RequireAuth(cfg.Tokens, cfg.Revocations, logger)

	r.Group(func(r chi.Router) {
		r.Use(chimw.SetHeader("Content-Type", "application/json"))

		for _, register := range routes.Public {
			register(r)
		}

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(limiter.Limit("api"))
			for _, register := range routes.Authenticated {
				register(r)
			}
			r.Group(func(r chi.Router) {
				r.Use(role.Require(logger, id.RoleCitizen))
				for _, register := range routes.Citizen {
					register(r)
				}
			})
		})

		r.Route("/employee", func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(role.Require(logger, id.RoleEmployee))
			r.Use(limiter.Limit("api"))
			for _, register := range routes.Employee {
				register(r)
			}
		})

		r.Route("/admin", func(r chi.Router) {
			for _, register := range routes.AdminPublic {
				register(r)
			}
			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Use(role.Require(logger, id.RoleAdmin))
				r.Use(limiter.Limit("admin-api"))
				for _, register := range routes.Admin {
					register(r)
				}
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusNotFound, map[string]string{
			"error":             "not_found",
			"error_description": "the requested resource does not exist",
		})
	})

	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		if len(checks) > 0 {
			resp.Checks = make(map[string]string, len(checks))
		}
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				resp.Checks[c.Name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[c.Name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
