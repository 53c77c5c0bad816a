package domain

import dErrors "grievance/pkg/domain-errors"

// Role is the authorization role carried by every user account and access token.
type Role string

const (
	RoleCitizen  Role = "citizen"
	RoleEmployee Role = "employee"
	RoleAdmin    Role = "admin"
)

// IsValid reports whether r is one of the three account roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleCitizen, RoleEmployee, RoleAdmin:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// ParseRole constructs a Role from external input.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "role cannot be empty")
	}
	r := Role(s)
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid role: must be citizen, employee or admin")
	}
	return r, nil
}
