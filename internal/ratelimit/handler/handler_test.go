package handler

import (
	"context"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"grievance/internal/ratelimit/config"
	"grievance/internal/ratelimit/service"
	"grievance/internal/ratelimit/store/blocklist"
	"grievance/internal/ratelimit/store/bucket"
	"grievance/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	router  http.Handler
	service *service.Service
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	policies, err := config.Default()
	s.Require().NoError(err)
	s.service, err = service.New(policies, bucket.New(), blocklist.NewInMemory(),
		service.WithBlockRule(1, time.Minute, time.Hour))
	s.Require().NoError(err)

	r := chi.NewRouter()
	r.Route("/admin", New(s.service, slog.New(slog.DiscardHandler)).RegisterAdmin)
	s.router = r
}

func (s *HandlerSuite) TestListPolicies() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/admin/rate-limits"))
	s.Require().Equal(http.StatusOK, rr.Code)

	resp := testutil.UnmarshalResponse[struct {
		Data     []policyResponse `json:"data"`
		Degraded bool             `json:"degraded"`
	}](s.T(), rr)
	s.Len(resp.Data, 11)
	s.False(resp.Degraded)
	s.Equal("admin-api", resp.Data[0].Name)
	s.Equal(limitResponse{Max: 200, WindowSeconds: 60, Window: "1m0s", By: "user"}, resp.Data[0].Limits[0])
}

func (s *HandlerSuite) TestBlockedIPsAndUnblock() {
	ctx := context.Background()
	for range 2 {
		_, _, err := s.service.Observe(ctx, "198.51.100.4")
		s.Require().NoError(err)
	}

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/admin/rate-limits/blocked-ips"))
	s.Require().Equal(http.StatusOK, rr.Code)
	s.Contains(rr.Body.String(), "198.51.100.4")

	rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodDelete, "/admin/rate-limits/blocked-ips/198.51.100.4"))
	s.Require().Equal(http.StatusOK, rr.Code)

	rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodDelete, "/admin/rate-limits/blocked-ips/198.51.100.4"))
	s.Equal(http.StatusNotFound, rr.Code)

	rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/admin/rate-limits/blocked-ips"))
	s.Require().Equal(http.StatusOK, rr.Code)
	s.JSONEq(`{"data":[]}`, rr.Body.String())
}
