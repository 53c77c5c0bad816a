package models

import (
	"strings"
	"time"

	id "grievance/pkg/domain"
	dErrors "grievance/pkg/domain-errors"
)

// User is any account that can authenticate: citizens register themselves,
// employees and admins are provisioned.
type User struct {
	ID              id.UserID
	FirstName       string
	LastName        string
	Email           string
	Phone           string
	PasswordHash    string
	Role            id.Role
	EntityID        *id.EntityID
	IsActive        bool
	EmailVerifiedAt *time.Time
	FCMToken        string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       *time.Time
}

type NewUserParams struct {
	FirstName    string
	LastName     string
	Email        string
	Phone        string
	PasswordHash string
	Role         id.Role
	EntityID     *id.EntityID
	IsActive     bool
	Verified     bool
}

// NewUser validates the account fields and normalizes the email.
func NewUser(userID id.UserID, p NewUserParams, now time.Time) (*User, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "user id is required")
	}
	email := strings.ToLower(strings.TrimSpace(p.Email))
	if email == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "email is required")
	}
	if strings.TrimSpace(p.FirstName) == "" || strings.TrimSpace(p.LastName) == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "first and last name are required")
	}
	if p.PasswordHash == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "password hash is required")
	}
	if !p.Role.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid role")
	}
	if p.Role == id.RoleEmployee && p.EntityID == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "employees must belong to an entity")
	}
	if p.Role != id.RoleEmployee && p.EntityID != nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "only employees belong to an entity")
	}
	u := &User{
		ID:           userID,
		FirstName:    strings.TrimSpace(p.FirstName),
		LastName:     strings.TrimSpace(p.LastName),
		Email:        email,
		Phone:        strings.TrimSpace(p.Phone),
		PasswordHash: p.PasswordHash,
		Role:         p.Role,
		EntityID:     p.EntityID,
		IsActive:     p.IsActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if p.Verified {
		verified := now
		u.EmailVerifiedAt = &verified
	}
	return u, nil
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// IsDeleted reports whether the account is soft deleted.
func (u *User) IsDeleted() bool {
	return u.DeletedAt != nil
}

func (u *User) IsVerified() bool {
	return u.EmailVerifiedAt != nil
}

// CanLogin reports whether the account may obtain tokens.
func (u *User) CanLogin() error {
	if u.IsDeleted() {
		return dErrors.New(dErrors.CodeUnauthorized, "the provided credentials are incorrect")
	}
	if !u.IsActive {
		return dErrors.New(dErrors.CodeForbidden, "your account has been deactivated")
	}
	return nil
}

// CanLoginAsAdmin applies CanLogin and additionally requires the admin role.
func (u *User) CanLoginAsAdmin() error {
	if err := u.CanLogin(); err != nil {
		return err
	}
	if u.Role != id.RoleAdmin {
		return dErrors.New(dErrors.CodeForbidden, "access denied, admin privileges required")
	}
	return nil
}

// ApplyFCMToken sets the device token; an empty token unregisters the device.
func (u *User) ApplyFCMToken(token string, now time.Time) {
	u.FCMToken = token
	u.UpdatedAt = now
}

func (u *User) HasPushToken() bool {
	return u.FCMToken != ""
}

func (u *User) ApplySetActive(active bool, now time.Time) {
	u.IsActive = active
	u.UpdatedAt = now
}

// CanDelete treats an already deleted account as missing.
func (u *User) CanDelete() error {
	if u.IsDeleted() {
		return dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	return nil
}

// ApplyDelete soft deletes and deactivates the account and forgets its device token.
func (u *User) ApplyDelete(now time.Time) {
	u.DeletedAt = &now
	u.IsActive = false
	u.FCMToken = ""
	u.UpdatedAt = now
}

func (u *User) CanRestore() error {
	if !u.IsDeleted() {
		return dErrors.New(dErrors.CodeConflict, "user is not deleted")
	}
	return nil
}

// ApplyRestore undoes ApplyDelete and reactivates the account.
func (u *User) ApplyRestore(now time.Time) {
	u.DeletedAt = nil
	u.IsActive = true
	u.UpdatedAt = now
}

// Profile is the account view returned by "me" endpoints and login responses.
type Profile struct {
	*User
	ComplaintsCount int
}
