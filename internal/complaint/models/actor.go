package models

import (
	id "grievance/pkg/domain"
)

// Actor is the authenticated principal acting on a complaint.
type Actor struct {
	ID       id.UserID
	Role     id.Role
	EntityID *id.EntityID
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == id.RoleAdmin
}

func (a Actor) IsCitizen() bool {
	return a.Role == id.RoleCitizen
}

func (a Actor) IsEmployee() bool {
	return a.Role == id.RoleEmployee
}

// IsEmployeeOf reports whether the actor works for entityID.
func (a Actor) IsEmployeeOf(entityID id.EntityID) bool {
	return a.IsEmployee() && a.EntityID != nil && *a.EntityID == entityID
}
