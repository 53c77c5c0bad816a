package models

import (
	"strings"
	"time"

	id "grievance/pkg/domain"
	dErrors "grievance/pkg/domain-errors"
)

// Type classifies a government entity.
type Type string

const (
	TypeMinistry        Type = "ministry"
	TypeGovernmentParty Type = "government_party"
	TypeDepartment      Type = "department"
	TypeAgency          Type = "agency"
)

// IsValid reports whether t is a known entity type.
func (t Type) IsValid() bool {
	switch t {
	case TypeMinistry, TypeGovernmentParty, TypeDepartment, TypeAgency:
		return true
	}
	return false
}

// ParseType constructs a Type from external input.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "type must be one of ministry, government_party, department, agency")
	}
	return t, nil
}

// Entity is a government body that receives complaints.
//
// Invariants:
//   - Email is unique across entities, including soft deleted ones
//   - A soft deleted entity is invisible to lookups until restored
//   - An entity with complaints cannot be deleted
type Entity struct {
	ID          id.EntityID `json:"id"`
	Name        string      `json:"name"`
	Email       string      `json:"email"`
	Phone       string      `json:"phone"`
	Description string      `json:"description"`
	Type        Type        `json:"type"`
	IsActive    bool        `json:"is_active"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	DeletedAt   *time.Time  `json:"deleted_at,omitempty"`
}

// NewEntity requires a name, an email and a valid type. The email is lowercased.
func NewEntity(entityID id.EntityID, name, email, phone, description string, t Type, active bool, now time.Time) (*Entity, error) {
	if strings.TrimSpace(name) == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "entity name cannot be empty")
	}
	if strings.TrimSpace(email) == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "entity email cannot be empty")
	}
	if !t.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid entity type")
	}
	return &Entity{
		ID:          entityID,
		Name:        name,
		Email:       strings.ToLower(email),
		Phone:       phone,
		Description: description,
		Type:        t,
		IsActive:    active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (e *Entity) IsDeleted() bool {
	return e.DeletedAt != nil
}

// AcceptsComplaints reports whether citizens may file against this entity.
func (e *Entity) AcceptsComplaints() bool {
	return e.IsActive && !e.IsDeleted()
}

// ApplyToggleActive flips IsActive.
func (e *Entity) ApplyToggleActive(now time.Time) {
	e.IsActive = !e.IsActive
	e.UpdatedAt = now
}

// CanDelete refuses deletion while complaints reference the entity.
func (e *Entity) CanDelete(complaints int) error {
	if e.IsDeleted() {
		return dErrors.New(dErrors.CodeNotFound, "entity not found")
	}
	if complaints > 0 {
		return dErrors.New(dErrors.CodeConflict, "cannot delete entity with associated complaints")
	}
	return nil
}

// ApplyDelete soft deletes the entity. Callers must check CanDelete first.
func (e *Entity) ApplyDelete(now time.Time) {
	e.DeletedAt = &now
	e.UpdatedAt = now
}

// CanRestore only accepts soft deleted entities.
func (e *Entity) CanRestore() error {
	if !e.IsDeleted() {
		return dErrors.New(dErrors.CodeConflict, "entity is not deleted")
	}
	return nil
}

func (e *Entity) ApplyRestore(now time.Time) {
	e.DeletedAt = nil
	e.UpdatedAt = now
}

// Changes is a partial update; nil fields are left untouched.
type Changes struct {
	Name        *string
	Email       *string
	Phone       *string
	Description *string
	Type        *Type
	IsActive    *bool
}

// ApplyChanges copies the set fields of c. Validation happens in the service,
// which also checks email uniqueness.
func (e *Entity) ApplyChanges(c Changes, now time.Time) {
	if c.Name != nil {
		e.Name = *c.Name
	}
	if c.Email != nil {
		e.Email = strings.ToLower(*c.Email)
	}
	if c.Phone != nil {
		e.Phone = *c.Phone
	}
	if c.Description != nil {
		e.Description = *c.Description
	}
	if c.Type != nil {
		e.Type = *c.Type
	}
	if c.IsActive != nil {
		e.IsActive = *c.IsActive
	}
	e.UpdatedAt = now
}

// Summary is an entity with the counts shown in admin listings.
type Summary struct {
	*Entity
	ComplaintsCount int
	EmployeesCount  int
}
