package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	id "grievance/pkg/domain"
	"grievance/pkg/requestcontext"
)

type stubValidator struct {
	claims *JWTClaims
	err    error
}

func (s stubValidator) ValidateToken(string) (*JWTClaims, error) { return s.claims, s.err }

type stubRevocations map[string]bool

func (s stubRevocations) IsTokenRevoked(_ context.Context, jti string) (bool, error) {
	return s[jti], nil
}

func TestRequireAuth(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	userID := id.UserID(uuid.New())
	entityID := id.EntityID(uuid.New())
	claims := &JWTClaims{UserID: userID, Role: id.RoleEmployee, EntityID: &entityID, JTI: "jti-1", ExpiresAt: time.Now().Add(time.Hour)}

	var seen context.Context
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Context()
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("missing header", func(t *testing.T) {
		h := RequireAuth(stubValidator{claims: claims}, nil, logger)(next)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.JSONEq(t, `{"error":"unauthorized","error_description":"Missing or invalid Authorization header"}`, rr.Body.String())
	})

	t.Run("invalid token", func(t *testing.T) {
		h := RequireAuth(stubValidator{err: errors.New("bad")}, nil, logger)(next)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer nope")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("revoked token", func(t *testing.T) {
		h := RequireAuth(stubValidator{claims: claims}, stubRevocations{"jti-1": true}, logger)(next)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer token")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Contains(t, rr.Body.String(), "Token has been revoked")
	})

	t.Run("valid token populates principal", func(t *testing.T) {
		h := RequireAuth(stubValidator{claims: claims}, stubRevocations{}, logger)(next)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer token")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, userID, requestcontext.UserID(seen))
		assert.Equal(t, id.RoleEmployee, requestcontext.Role(seen))
		assert.Equal(t, &entityID, requestcontext.EntityID(seen))
		assert.Equal(t, "jti-1", requestcontext.TokenJTI(seen))
	})
}
