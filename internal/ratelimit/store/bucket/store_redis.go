package bucket

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"grievance/internal/ratelimit/models"
)

// allowScript trims hits older than the window, then adds one when below the
// limit. It returns {allowed, count, oldest_ms}.
var allowScript = redis.NewScript(`
local key    = KEYS[1]
local now    = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit  = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, member)
  count = count + 1
  allowed = 1
end
redis.call('PEXPIRE', key, window)
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local oldestScore = now
if oldest[2] then
  oldestScore = tonumber(oldest[2])
end
return {allowed, count, oldestScore}
`)

// RedisBucketStore shares sliding windows between instances using one sorted
// set per key, scored by hit time in milliseconds.
type RedisBucketStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedis constructs a Redis-backed bucket store.
func NewRedis(client *redis.Client) *RedisBucketStore {
	return &RedisBucketStore{client: client, now: time.Now}
}

// Allow counts one hit against key in a sorted set, atomically in a Lua script.
func (s *RedisBucketStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error) {
	now := s.now()
	res, err := allowScript.Run(ctx, s.client, []string{key},
		now.UnixMilli(), window.Milliseconds(), limit, strconv.FormatInt(now.UnixNano(), 10)+"-"+uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("redis sliding window: %w", err)
	}
	if len(res) != 3 {
		return nil, fmt.Errorf("redis sliding window: unexpected reply length %d", len(res))
	}
	resetAt := time.UnixMilli(res[2]).Add(window)
	if res[0] == 0 {
		return denied(limit, resetAt, now), nil
	}
	return &models.Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - int(res[1]),
		ResetAt:   resetAt,
	}, nil
}

// Peek reports the current count without adding a hit.
func (s *RedisBucketStore) Peek(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error) {
	now := s.now()
	minScore := strconv.FormatInt(now.Add(-window).UnixMilli(), 10)
	hits, err := s.client.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{Min: "(" + minScore, Max: "+inf"}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis peek: %w", err)
	}
	if len(hits) == 0 {
		return &models.Result{Allowed: true, Limit: limit, Remaining: limit, ResetAt: now.Add(window)}, nil
	}
	resetAt := time.UnixMilli(int64(hits[0].Score)).Add(window)
	if len(hits) >= limit {
		return denied(limit, resetAt, now), nil
	}
	return &models.Result{Allowed: true, Limit: limit, Remaining: limit - len(hits), ResetAt: resetAt}, nil
}

func (s *RedisBucketStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
