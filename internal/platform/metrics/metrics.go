package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	registry *prometheus.Registry

	HTTPDuration        *prometheus.HistogramVec
	ComplaintsCreated   prometheus.Counter
	ComplaintTransition *prometheus.CounterVec
	LocksReleased       prometheus.Counter
	UsersRegistered     prometheus.Counter
	LoginFailures       prometheus.Counter
	NotificationsSent   *prometheus.CounterVec
	NotificationsFailed *prometheus.CounterVec
	RateLimited         *prometheus.CounterVec
	IPsBlocked          prometheus.Counter
	RateLimitDegraded   prometheus.Gauge
	UploadBytes         *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics on reg.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grievance_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		ComplaintsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "grievance_complaints_created_total",
			Help: "Total number of complaints submitted",
		}),
		ComplaintTransition: f.NewCounterVec(prometheus.CounterOpts{
			Name: "grievance_complaint_transitions_total",
			Help: "Complaint status transitions",
		}, []string{"from", "to"}),
		LocksReleased: f.NewCounter(prometheus.CounterOpts{
			Name: "grievance_complaint_locks_expired_total",
			Help: "Complaints released back to new after their lock expired",
		}),
		UsersRegistered: f.NewCounter(prometheus.CounterOpts{
			Name: "grievance_users_registered_total",
			Help: "Citizens that completed email verification",
		}),
		LoginFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "grievance_login_failures_total",
			Help: "Failed login attempts",
		}),
		NotificationsSent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "grievance_notifications_sent_total",
			Help: "Notifications delivered by channel",
		}, []string{"channel"}),
		NotificationsFailed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "grievance_notifications_failed_total",
			Help: "Notification deliveries that failed by channel",
		}, []string{"channel"}),
		RateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Name: "grievance_rate_limited_total",
			Help: "Requests rejected by rate limit policy",
		}, []string{"policy"}),
		IPsBlocked: f.NewCounter(prometheus.CounterOpts{
			Name: "grievance_ips_blocked_total",
			Help: "Client IPs blocked for suspicious request volume",
		}),
		RateLimitDegraded: f.NewGauge(prometheus.GaugeOpts{
			Name: "grievance_ratelimit_degraded",
			Help: "1 while rate limit checks are served from the in-process fallback",
		}),
		UploadBytes: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grievance_upload_bytes",
			Help:    "Size of stored attachments",
			Buckets: prometheus.ExponentialBuckets(16*1024, 4, 6),
		}, []string{"type"}),
	}
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) IncrementComplaintsCreated() {
	m.ComplaintsCreated.Inc()
}

// ObserveTransition counts a status change by from and to.
func (m *Metrics) ObserveTransition(from, to string) {
	m.ComplaintTransition.WithLabelValues(from, to).Inc()
}

// AddLocksReleased counts complaints released by the lock sweeper.
func (m *Metrics) AddLocksReleased(n int) {
	m.LocksReleased.Add(float64(n))
}

func (m *Metrics) IncrementUsersRegistered() {
	m.UsersRegistered.Inc()
}

func (m *Metrics) IncrementLoginFailures() {
	m.LoginFailures.Inc()
}

// IncrementNotificationSent counts a delivery by channel.
func (m *Metrics) IncrementNotificationSent(channel string) {
	m.NotificationsSent.WithLabelValues(channel).Inc()
}

func (m *Metrics) IncrementNotificationFailed(channel string) {
	m.NotificationsFailed.WithLabelValues(channel).Inc()
}

// IncrementRateLimited counts a rejected request by policy.
func (m *Metrics) IncrementRateLimited(policy string) {
	m.RateLimited.WithLabelValues(policy).Inc()
}

func (m *Metrics) IncrementIPsBlocked() {
	m.IPsBlocked.Inc()
}

// SetRateLimitDegraded is 1 while checks are served by the fallback store.
func (m *Metrics) SetRateLimitDegraded(degraded bool) {
	if degraded {
		m.RateLimitDegraded.Set(1)
		return
	}
	m.RateLimitDegraded.Set(0)
}

func (m *Metrics) ObserveUpload(fileType string, size int64) {
	m.UploadBytes.WithLabelValues(fileType).Observe(float64(size))
}

// Middleware records request latency labelled by the matched chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		m.HTTPDuration.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).
			Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
