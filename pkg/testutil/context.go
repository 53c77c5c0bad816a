package testutil

import (
	"context"
	"net/http"

	id "grievance/pkg/domain"
	"grievance/pkg/requestcontext"
)

// WithPrincipal adds the authenticated user to the request context.
// This simulates what the auth middleware would do for authenticated requests.
func WithPrincipal(req *http.Request, userID id.UserID, role id.Role, entityID *id.EntityID) *http.Request {
	ctx := requestcontext.WithPrincipal(req.Context(), userID, role, entityID)
	return req.WithContext(ctx)
}

// WithCitizen is WithPrincipal for a citizen account.
func WithCitizen(req *http.Request, userID id.UserID) *http.Request {
	return WithPrincipal(req, userID, id.RoleCitizen, nil)
}

// WithEmployee is WithPrincipal for an employee bound to entityID.
func WithEmployee(req *http.Request, userID id.UserID, entityID id.EntityID) *http.Request {
	return WithPrincipal(req, userID, id.RoleEmployee, &entityID)
}

// WithAdmin authenticates ctx as an admin.
func WithAdmin(req *http.Request, userID id.UserID) *http.Request {
	return WithPrincipal(req, userID, id.RoleAdmin, nil)
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
