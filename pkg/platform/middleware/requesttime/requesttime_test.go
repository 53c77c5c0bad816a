package requesttime

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"grievance/pkg/requestcontext"
)

func TestWithClock(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 9, 30, 0, 123456789, time.FixedZone("EET", 2*3600))
	var got []time.Time
	h := WithClock(func() time.Time { return fixed })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, requestcontext.Now(r.Context()), requestcontext.Now(r.Context()))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	want := time.Date(2026, 3, 1, 7, 30, 0, 123456000, time.UTC)
	assert.Equal(t, []time.Time{want, want}, got)
}
