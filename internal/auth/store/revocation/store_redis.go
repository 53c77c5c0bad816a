package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var revocationCheckSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "grievance_token_revocation_check_seconds",
	Help:    "Latency of revoked token lookups against Redis.",
	Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025},
})

// RedisTRL shares revocation state between instances. Each JTI is a key that
// expires together with the token it revokes.
type RedisTRL struct {
	client *redis.Client
	prefix string
}

// NewRedisTRL constructs a Redis-backed token revocation list.
func NewRedisTRL(client *redis.Client) *RedisTRL {
	return &RedisTRL{client: client, prefix: "grievance:revoked:"}
}

// RevokeToken stores jti with a TTL matching the token lifetime.
func (t *RedisTRL) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ok, err := admit(jti, ttl); !ok {
		return err
	}
	if err := t.client.Set(ctx, t.prefix+jti, time.Now().Add(ttl).Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (t *RedisTRL) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	timer := prometheus.NewTimer(revocationCheckSeconds)
	defer timer.ObserveDuration()

	n, err := t.client.Exists(ctx, t.prefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check token revocation: %w", err)
	}
	return n > 0, nil
}
