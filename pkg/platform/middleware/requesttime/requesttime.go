// Package requesttime pins one "now" per request so every timestamp written by
// a request (lock expiry, audit rows, notifications) agrees.
package requesttime

import (
	"net/http"
	"time"

	"grievance/pkg/requestcontext"
)

// Middleware stamps requests with the wall clock.
var Middleware = WithClock(time.Now)

// WithClock stamps requests with clock(). The value is UTC and truncated to
// microseconds to match what Postgres stores.
func WithClock(clock func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := clock().UTC().Truncate(time.Microsecond)
			next.ServeHTTP(w, r.WithContext(requestcontext.WithTime(r.Context(), now)))
		})
	}
}
