// Package role guards routes by the authenticated principal's role.
package role

import (
	"log/slog"
	"net/http"
	"slices"

	id "grievance/pkg/domain"
	"grievance/pkg/requestcontext"
)

// Require admits requests whose principal holds one of the given roles.
// It must run after auth.RequireAuth.
func Require(logger *slog.Logger, roles ...id.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			current := requestcontext.Role(ctx)
			if !slices.Contains(roles, current) {
				logger.WarnContext(ctx, "forbidden - role not permitted",
					"role", current,
					"user_id", requestcontext.UserID(ctx).String(),
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"forbidden","error_description":"insufficient role for this resource"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
