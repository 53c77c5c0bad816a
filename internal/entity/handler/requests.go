package handler

import (
	"strings"

	"github.com/asaskevich/govalidator"

	"grievance/internal/entity/models"
	dErrors "grievance/pkg/domain-errors"
)

type CreateEntityRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Description string `json:"description"`
	Type        string `json:"type"`
	IsActive    *bool  `json:"is_active"`

	parsedType models.Type
}

func (r *CreateEntityRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Phone = strings.TrimSpace(r.Phone)
	r.Description = strings.TrimSpace(r.Description)
}

func (r *CreateEntityRequest) Validate() error {
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if !govalidator.StringLength(r.Name, "1", "255") {
		return dErrors.New(dErrors.CodeValidation, "name must be at most 255 characters")
	}
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	if len(r.Phone) > 20 {
		return dErrors.New(dErrors.CodeValidation, "phone must be at most 20 characters")
	}
	t, err := models.ParseType(r.Type)
	if err != nil {
		return err
	}
	r.parsedType = t
	return nil
}

func (r *CreateEntityRequest) Active() bool {
	return r.IsActive == nil || *r.IsActive
}

// UpdateEntityRequest is a partial update; omitted fields are unchanged.
type UpdateEntityRequest struct {
	Name        *string `json:"name"`
	Email       *string `json:"email"`
	Phone       *string `json:"phone"`
	Description *string `json:"description"`
	Type        *string `json:"type"`
	IsActive    *bool   `json:"is_active"`

	changes models.Changes
}

func (r *UpdateEntityRequest) Validate() error {
	r.changes = models.Changes{IsActive: r.IsActive}
	if r.Name != nil {
		name := strings.TrimSpace(*r.Name)
		if name == "" || !govalidator.StringLength(name, "1", "255") {
			return dErrors.New(dErrors.CodeValidation, "name must be between 1 and 255 characters")
		}
		r.changes.Name = &name
	}
	if r.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*r.Email))
		if err := validateEmail(email); err != nil {
			return err
		}
		r.changes.Email = &email
	}
	if r.Phone != nil {
		phone := strings.TrimSpace(*r.Phone)
		if len(phone) > 20 {
			return dErrors.New(dErrors.CodeValidation, "phone must be at most 20 characters")
		}
		r.changes.Phone = &phone
	}
	if r.Description != nil {
		desc := strings.TrimSpace(*r.Description)
		r.changes.Description = &desc
	}
	if r.Type != nil {
		t, err := models.ParseType(*r.Type)
		if err != nil {
			return err
		}
		r.changes.Type = &t
	}
	return nil
}

func (r *UpdateEntityRequest) Changes() models.Changes {
	return r.changes
}

func validateEmail(email string) error {
	if email == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if len(email) > 255 || !govalidator.IsEmail(email) {
		return dErrors.New(dErrors.CodeValidation, "email must be a valid address")
	}
	return nil
}
