package handler

import (
	"strings"

	"github.com/asaskevich/govalidator"

	"grievance/internal/employee/service"
	id "grievance/pkg/domain"
	dErrors "grievance/pkg/domain-errors"
)

const minPasswordLength = 8

type CreateEmployeeRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Password  string `json:"password"`
	EntityID  string `json:"entity_id"`
	IsActive  *bool  `json:"is_active"`

	entityID id.EntityID
}

func (r *CreateEmployeeRequest) Normalize() {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Phone = strings.TrimSpace(r.Phone)
	r.EntityID = strings.TrimSpace(r.EntityID)
}

func (r *CreateEmployeeRequest) Validate() error {
	if err := validateName("first_name", r.FirstName); err != nil {
		return err
	}
	if err := validateName("last_name", r.LastName); err != nil {
		return err
	}
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	if len(r.Phone) > 20 {
		return dErrors.New(dErrors.CodeValidation, "phone must be at most 20 characters")
	}
	if len(r.Password) < minPasswordLength {
		return dErrors.New(dErrors.CodeValidation, "password must be at least 8 characters")
	}
	if r.EntityID == "" {
		return dErrors.New(dErrors.CodeValidation, "entity_id is required")
	}
	entityID, err := id.ParseEntityID(r.EntityID)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "entity_id must be a valid id")
	}
	r.entityID = entityID
	return nil
}

func (r *CreateEmployeeRequest) Command() service.CreateCommand {
	return service.CreateCommand{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Email:     r.Email,
		Phone:     r.Phone,
		Password:  r.Password,
		EntityID:  r.entityID,
		IsActive:  r.IsActive == nil || *r.IsActive,
	}
}

// UpdateEmployeeRequest is a partial update; omitted fields are unchanged.
type UpdateEmployeeRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Email     *string `json:"email"`
	Phone     *string `json:"phone"`
	Password  *string `json:"password"`
	EntityID  *string `json:"entity_id"`
	IsActive  *bool   `json:"is_active"`

	cmd service.UpdateCommand
}

func (r *UpdateEmployeeRequest) Validate() error {
	r.cmd = service.UpdateCommand{IsActive: r.IsActive}
	if r.FirstName != nil {
		v := strings.TrimSpace(*r.FirstName)
		if err := validateName("first_name", v); err != nil {
			return err
		}
		r.cmd.FirstName = &v
	}
	if r.LastName != nil {
		v := strings.TrimSpace(*r.LastName)
		if err := validateName("last_name", v); err != nil {
			return err
		}
		r.cmd.LastName = &v
	}
	if r.Email != nil {
		v := strings.ToLower(strings.TrimSpace(*r.Email))
		if err := validateEmail(v); err != nil {
			return err
		}
		r.cmd.Email = &v
	}
	if r.Phone != nil {
		v := strings.TrimSpace(*r.Phone)
		if len(v) > 20 {
			return dErrors.New(dErrors.CodeValidation, "phone must be at most 20 characters")
		}
		r.cmd.Phone = &v
	}
	// An empty password keeps the current one.
	if r.Password != nil && *r.Password != "" {
		if len(*r.Password) < minPasswordLength {
			return dErrors.New(dErrors.CodeValidation, "password must be at least 8 characters")
		}
		r.cmd.Password = r.Password
	}
	if r.EntityID != nil {
		entityID, err := id.ParseEntityID(strings.TrimSpace(*r.EntityID))
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "entity_id must be a valid id")
		}
		r.cmd.EntityID = &entityID
	}
	return nil
}

func (r *UpdateEmployeeRequest) Command() service.UpdateCommand {
	return r.cmd
}

func validateName(field, v string) error {
	if v == "" {
		return dErrors.New(dErrors.CodeValidation, field+" is required")
	}
	if !govalidator.StringLength(v, "1", "255") {
		return dErrors.New(dErrors.CodeValidation, field+" must be at most 255 characters")
	}
	return nil
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
