// Package service evaluates rate limit policies and tracks suspicious IPs.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"grievance/internal/ratelimit/config"
	"grievance/internal/ratelimit/models"
	dErrors "grievance/pkg/domain-errors"
	"grievance/pkg/platform/circuit"
	"grievance/pkg/platform/sentinel"
)

const (
	DefaultBlockThreshold = 100
	DefaultBlockWindow    = 10 * time.Minute
	DefaultBlockDuration  = time.Hour
)

type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error)
	Peek(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error)
	Reset(ctx context.Context, key string) error
}

type BlockStore interface {
	Block(ctx context.Context, ip string, until time.Time) error
	BlockedUntil(ctx context.Context, ip string) (time.Time, bool, error)
	List(ctx context.Context) ([]models.BlockedIP, error)
	Unblock(ctx context.Context, ip string) error
}

type Metrics interface {
	IncrementRateLimited(policy string)
	IncrementIPsBlocked()
	SetRateLimitDegraded(degraded bool)
}

type Service struct {
	policies config.Policies
	buckets  BucketStore
	fallback BucketStore
	breaker  *circuit.Breaker
	blocks   BlockStore
	logger   *slog.Logger
	metrics  Metrics
	now      func() time.Time

	blockThreshold int
	blockWindow    time.Duration
	blockDuration  time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithFallback serves checks from fallback while the primary store keeps failing.
func WithFallback(fallback BucketStore) Option {
	return func(s *Service) {
		s.fallback = fallback
	}
}

// WithBlockRule blocks an IP for duration once it exceeds threshold requests within window.
func WithBlockRule(threshold int, window, duration time.Duration) Option {
	return func(s *Service) {
		if threshold > 0 {
			s.blockThreshold = threshold
		}
		if window > 0 {
			s.blockWindow = window
		}
		if duration > 0 {
			s.blockDuration = duration
		}
	}
}

// WithClock replaces time.Now for block expiry. Pass the same clock to the stores.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New validates policies and builds the limiter.
func New(policies config.Policies, buckets BucketStore, blocks BlockStore, opts ...Option) (*Service, error) {
	if len(policies) == 0 {
		return nil, errors.New("rate limit policies are required")
	}
	if buckets == nil || blocks == nil {
		return nil, errors.New("bucket and block stores are required")
	}
	s := &Service{
		policies:       policies,
		buckets:        buckets,
		blocks:         blocks,
		breaker:        circuit.New("ratelimit"),
		now:            time.Now,
		blockThreshold: DefaultBlockThreshold,
		blockWindow:    DefaultBlockWindow,
		blockDuration:  DefaultBlockDuration,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Check counts the request against every limit of policy that applies to
// subj. The first exhausted limit rejects; otherwise the tightest result is
// returned for headers.
func (s *Service) Check(ctx context.Context, policy string, subj models.Subject) (*models.Result, error) {
	p, ok := s.policies[policy]
	if !ok {
		return nil, fmt.Errorf("unknown rate limit policy %q", policy)
	}
	var tightest *models.Result
	for i, l := range p.Limits {
		key := subj.KeyFor(l.By)
		if key == "" {
			continue
		}
		res, err := s.allow(ctx, models.BucketKey(p.Name, i, key), l.Max, l.Window)
		if err != nil {
			return nil, err
		}
		if !res.Allowed {
			if s.metrics != nil {
				s.metrics.IncrementRateLimited(p.Name)
			}
			return res, nil
		}
		if tightest == nil || res.Remaining < tightest.Remaining {
			tightest = res
		}
	}
	return tightest, nil
}

// allow fails open on store errors until the breaker opens, then serves from
// the fallback store until the primary recovers.
func (s *Service) allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error) {
	res, err := s.buckets.Allow(ctx, key, limit, window)
	if err != nil {
		useFallback, change := s.breaker.RecordFailure()
		if change.Opened {
			s.logger.WarnContext(ctx, "rate limit store degraded, using fallback", "error", err)
			s.setDegraded(true)
		}
		if useFallback && s.fallback != nil {
			return s.fallback.Allow(ctx, key, limit, window)
		}
		s.logger.ErrorContext(ctx, "rate limit check failed", "error", err)
		return &models.Result{Allowed: true, Limit: limit, Remaining: limit, ResetAt: s.now().Add(window)}, nil
	}
	usePrimary, change := s.breaker.RecordSuccess()
	if change.Closed {
		s.logger.InfoContext(ctx, "rate limit store recovered")
		s.setDegraded(false)
	}
	if !usePrimary && s.fallback != nil {
		return s.fallback.Allow(ctx, key, limit, window)
	}
	return res, nil
}

func (s *Service) setDegraded(degraded bool) {
	if s.metrics != nil {
		s.metrics.SetRateLimitDegraded(degraded)
	}
}

// Degraded reports whether checks are currently served from the fallback.
func (s *Service) Degraded() bool {
	return s.breaker.IsOpen()
}

// Observe counts a request from ip and reports whether the IP is blocked,
// blocking it when it crosses the suspicious traffic threshold.
func (s *Service) Observe(ctx context.Context, ip string) (time.Time, bool, error) {
	if ip == "" {
		return time.Time{}, false, nil
	}
	until, blocked, err := s.blocks.BlockedUntil(ctx, ip)
	if err != nil || blocked {
		return until, blocked, err
	}
	key := "rl:suspicious:" + models.SanitizeKeySegment(ip)
	res, err := s.allow(ctx, key, s.blockThreshold, s.blockWindow)
	if err != nil || res.Allowed {
		return time.Time{}, false, err
	}
	until = s.now().Add(s.blockDuration)
	if err := s.blocks.Block(ctx, ip, until); err != nil {
		return time.Time{}, false, err
	}
	if s.metrics != nil {
		s.metrics.IncrementIPsBlocked()
	}
	s.logger.WarnContext(ctx, "blocked suspicious ip",
		"ip", ip,
		"blocked_until", until,
	)
	return until, true, nil
}

// LimitStatus is the current usage of one limit for one subject.
type LimitStatus struct {
	Policy    string        `json:"policy"`
	Key       string        `json:"key"`
	Max       int           `json:"max"`
	Window    time.Duration `json:"window"`
	Attempts  int           `json:"attempts"`
	Remaining int           `json:"remaining"`
	ResetAt   time.Time     `json:"reset_at"`
}

// Status reports usage of policy for subj without counting a hit.
func (s *Service) Status(ctx context.Context, policy string, subj models.Subject) ([]LimitStatus, error) {
	p, ok := s.policies[policy]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("unknown rate limit policy %q", policy))
	}
	var out []LimitStatus
	for i, l := range p.Limits {
		key := subj.KeyFor(l.By)
		if key == "" {
			continue
		}
		res, err := s.buckets.Peek(ctx, models.BucketKey(p.Name, i, key), l.Max, l.Window)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to read rate limit state")
		}
		out = append(out, LimitStatus{
			Policy:    p.Name,
			Key:       key,
			Max:       l.Max,
			Window:    l.Window,
			Attempts:  l.Max - res.Remaining,
			Remaining: res.Remaining,
			ResetAt:   res.ResetAt,
		})
	}
	return out, nil
}

// Clear resets every bucket of policy for subj.
func (s *Service) Clear(ctx context.Context, policy string, subj models.Subject) error {
	p, ok := s.policies[policy]
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("unknown rate limit policy %q", policy))
	}
	for i, l := range p.Limits {
		if key := subj.KeyFor(l.By); key != "" {
			if err := s.buckets.Reset(ctx, models.BucketKey(p.Name, i, key)); err != nil {
				return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to reset rate limit")
			}
		}
	}
	return nil
}

// Policies lists the configured policies by name.
func (s *Service) Policies() []models.Policy {
	out := make([]models.Policy, 0, len(s.policies))
	for _, p := range s.policies {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// BlockedIPs lists the addresses blocked right now.
func (s *Service) BlockedIPs(ctx context.Context) ([]models.BlockedIP, error) {
	list, err := s.blocks.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to list blocked ips")
	}
	return list, nil
}

// Unblock lifts a block early.
func (s *Service) Unblock(ctx context.Context, ip string) error {
	err := s.blocks.Unblock(ctx, ip)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "ip address is not blocked")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to unblock ip")
	}
	if reset := s.buckets.Reset(ctx, "rl:suspicious:"+models.SanitizeKeySegment(ip)); reset != nil {
		s.logger.WarnContext(ctx, "failed to reset suspicious counter", "ip", ip, "error", reset)
	}
	s.logger.InfoContext(ctx, "unblocked ip", "ip", ip)
	return nil
}
