// Package middleware enforces rate limit policies and the suspicious IP
// blocker on HTTP routes.
package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"grievance/internal/ratelimit/models"
	"grievance/pkg/platform/httputil"
	"grievance/pkg/requestcontext"
)

const maxPeekBody = 64 << 10

type RateLimiter interface {
	Check(ctx context.Context, policy string, subj models.Subject) (*models.Result, error)
	Observe(ctx context.Context, ip string) (time.Time, bool, error)
	Degraded() bool
}

// PolicyScopes reports whether a policy has limits keyed on the email scope.
type PolicyScopes interface {
	Policies() []models.Policy
}

type Middleware struct {
	limiter     RateLimiter
	logger      *slog.Logger
	disabled    bool
	emailScoped map[string]bool
}

type Option func(*Middleware)

// WithDisabled turns every check into a pass-through.
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

// WithPolicies lets the middleware read the request email for policies that limit by email.
func WithPolicies(p PolicyScopes) Option {
	return func(m *Middleware) {
		for _, policy := range p.Policies() {
			for _, l := range policy.Limits {
				if l.By == models.ScopeEmail {
					m.emailScoped[policy.Name] = true
				}
			}
		}
	}
}

// New builds the middleware. When the limiter fails the request is allowed.
func New(limiter RateLimiter, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		limiter:     limiter,
		logger:      logger,
		emailScoped: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

var _ httputil.Limiter = (*Middleware)(nil)

// Limit checks each named policy in order and rejects with 429 on the first
// exhausted limit.
func (m *Middleware) Limit(policies ...string) func(http.Handler) http.Handler {
	needsEmail := false
	for _, p := range policies {
		needsEmail = needsEmail || m.emailScoped[p]
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			subj := models.Subject{IP: requestcontext.ClientIP(ctx)}
			if uid := requestcontext.UserID(ctx); !uid.IsNil() {
				subj.UserID = uid.String()
			}
			if needsEmail {
				subj.Email = peekEmail(r)
			}

			var tightest *models.Result
			for _, policy := range policies {
				result, err := m.limiter.Check(ctx, policy, subj)
				if err != nil {
					m.logger.ErrorContext(ctx, "failed to check rate limit",
						"error", err,
						"policy", policy,
						"request_id", requestcontext.RequestID(ctx),
					)
					continue
				}
				if result == nil {
					continue
				}
				if !result.Allowed {
					addRateLimitHeaders(w, result)
					m.logger.WarnContext(ctx, "rate limit exceeded",
						"policy", policy,
						"ip", subj.IP,
						"request_id", requestcontext.RequestID(ctx),
					)
					writeRateLimitExceeded(w, result)
					return
				}
				if tightest == nil || result.Remaining < tightest.Remaining {
					tightest = result
				}
			}
			addRateLimitHeaders(w, tightest)
			if m.limiter.Degraded() {
				w.Header().Set("X-RateLimit-Status", "degraded")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BlockSuspicious refuses requests from blocked IPs with 403 and counts every
// other request towards the block threshold.
func (m *Middleware) BlockSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.disabled {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()
		until, blocked, err := m.limiter.Observe(ctx, requestcontext.ClientIP(ctx))
		if err != nil {
			m.logger.ErrorContext(ctx, "failed to check ip block", "error", err)
			next.ServeHTTP(w, r)
			return
		}
		if blocked {
			retry := secondsUntil(until, requestcontext.Now(ctx))
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			httputil.WriteJSON(w, http.StatusForbidden, &models.BlockedResponse{
				Error:      "ip_blocked",
				Message:    "Your IP address has been temporarily blocked due to suspicious activity.",
				RetryAfter: retry,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// peekEmail reads the JSON body for an email field and restores the body for
// the next handler.
func peekEmail(r *http.Request) string {
	if r.Body == nil || r.ContentLength == 0 {
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPeekBody))
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), r.Body))
	if err != nil || len(body) == 0 {
		return ""
	}
	var payload struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(payload.Email))
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.Result) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.ExceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    "Too many requests. Please try again in " + strconv.Itoa(result.RetryAfter) + " seconds.",
		RetryAfter: result.RetryAfter,
	})
}

func secondsUntil(t, now time.Time) int {
	secs := int(math.Ceil(t.Sub(now).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
