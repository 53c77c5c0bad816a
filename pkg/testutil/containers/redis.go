//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

const redisImage = "redis:7-alpine"

// RedisContainer is a throwaway Redis shared by every suite in the binary.
// The container outlives individual tests; ryuk reaps it when the binary exits.
type RedisContainer struct {
	Container *tcredis.RedisContainer
	URL       string
	Client    *redis.Client
}

// NewRedisContainer starts a Redis container and returns a connected client.
func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, redisImage)
	require.NoError(t, err, "start %s", redisImage)

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err, "redis connection string")
	opts, err := redis.ParseURL(url)
	require.NoError(t, err, "parse %s", url)

	client := redis.NewClient(opts)
	require.NoError(t, client.Ping(ctx).Err(), "ping redis at %s", url)

	return &RedisContainer{Container: container, URL: url, Client: client}
}

// Reset empties the database so suites do not see each other's buckets,
// blocks or revoked tokens.
func (r *RedisContainer) Reset(t *testing.T) {
	t.Helper()
	require.NoError(t, r.Client.FlushDB(context.Background()).Err())
}
