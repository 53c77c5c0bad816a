package blocklist

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"grievance/internal/ratelimit/models"
	"grievance/pkg/platform/sentinel"
)

const blockedKeyPrefix = "rl:blocked:"

// Redis keeps one key per blocked IP holding the unblock time; the key
// expires when the block does.
type Redis struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedis constructs a Redis-backed blocklist.
func NewRedis(client *redis.Client, opts ...Option) *Redis {
	return &Redis{client: client, now: apply(opts).now}
}

// Block stores the expiry with a TTL so Redis drops it on its own.
func (s *Redis) Block(ctx context.Context, ip string, until time.Time) error {
	ttl := until.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, blockedKeyPrefix+ip, until.UnixMilli(), ttl).Err()
}

func (s *Redis) BlockedUntil(ctx context.Context, ip string) (time.Time, bool, error) {
	ms, err := s.client.Get(ctx, blockedKeyPrefix+ip).Int64()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	until := time.UnixMilli(ms)
	if !until.After(s.now()) {
		return time.Time{}, false, nil
	}
	return until, true, nil
}

// List scans the block keys. It is meant for the admin listing, not hot paths.
func (s *Redis) List(ctx context.Context) ([]models.BlockedIP, error) {
	var out []models.BlockedIP
	iter := s.client.Scan(ctx, 0, blockedKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		ms, err := s.client.Get(ctx, key).Int64()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		until := time.UnixMilli(ms)
		if !until.After(s.now()) {
			continue
		}
		out = append(out, models.BlockedIP{
			IP:           strings.TrimPrefix(key, blockedKeyPrefix),
			BlockedUntil: until,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IP < out[j].IP })
	return out, nil
}

func (s *Redis) Unblock(ctx context.Context, ip string) error {
	n, err := s.client.Del(ctx, blockedKeyPrefix+ip).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
