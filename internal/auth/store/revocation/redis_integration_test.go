//go:build integration

package revocation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"grievance/internal/auth/store/revocation"
	"grievance/pkg/testutil/containers"
)

type RedisTRLSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	trl   *revocation.RedisTRL
}

func TestRedisTRLSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisTRLSuite))
}

func (s *RedisTRLSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.trl = revocation.NewRedisTRL(s.redis.Client)
}

func (s *RedisTRLSuite) SetupTest() {
	s.redis.Reset(s.T())
}

func (s *RedisTRLSuite) TestRevokeAndExpire() {
	ctx := context.Background()
	s.Require().NoError(s.trl.RevokeToken(ctx, "redis-jti", time.Second))

	revoked, err := s.trl.IsTokenRevoked(ctx, "redis-jti")
	s.Require().NoError(err)
	s.True(revoked)

	s.Eventually(func() bool {
		revoked, err := s.trl.IsTokenRevoked(ctx, "redis-jti")
		return err == nil && !revoked
	}, 5*time.Second, 100*time.Millisecond)
}

func (s *RedisTRLSuite) TestRejectsNonPositiveTTL() {
	s.Error(s.trl.RevokeToken(context.Background(), "redis-jti", 0))
}
