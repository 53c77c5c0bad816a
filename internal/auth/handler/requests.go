package handler

import (
	"strings"

	"github.com/asaskevich/govalidator"

	dErrors "grievance/pkg/domain-errors"
)

const minPasswordLength = 8

type RegisterRequest struct {
	FirstName            string `json:"first_name"`
	LastName             string `json:"last_name"`
	Email                string `json:"email"`
	Phone                string `json:"phone"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

func (r *RegisterRequest) Normalize() {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Phone = strings.TrimSpace(r.Phone)
}

func (r *RegisterRequest) Validate() error {
	if r.FirstName == "" || !govalidator.StringLength(r.FirstName, "1", "255") {
		return dErrors.New(dErrors.CodeValidation, "first_name is required and must be at most 255 characters")
	}
	if r.LastName == "" || !govalidator.StringLength(r.LastName, "1", "255") {
		return dErrors.New(dErrors.CodeValidation, "last_name is required and must be at most 255 characters")
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
	if r.Password != r.PasswordConfirmation {
		return dErrors.New(dErrors.CodeValidation, "password confirmation does not match")
	}
	return nil
}

type VerifyEmailRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (r *VerifyEmailRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Code = strings.TrimSpace(r.Code)
}

func (r *VerifyEmailRequest) Validate() error {
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	if len(r.Code) != 6 || !govalidator.IsNumeric(r.Code) {
		return dErrors.New(dErrors.CodeValidation, "code must be 6 digits")
	}
	return nil
}

type ResendVerificationRequest struct {
	Email string `json:"email"`
}

func (r *ResendVerificationRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

func (r *ResendVerificationRequest) Validate() error {
	return validateEmail(r.Email)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

func (r *LoginRequest) Validate() error {
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	if r.Password == "" {
		return dErrors.New(dErrors.CodeValidation, "password is required")
	}
	return nil
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (r *RefreshRequest) Validate() error {
	if strings.TrimSpace(r.RefreshToken) == "" {
		return dErrors.New(dErrors.CodeValidation, "refresh_token is required")
	}
	return nil
}

type PushTokenRequest struct {
	FCMToken string `json:"fcm_token"`
}

func (r *PushTokenRequest) Normalize() {
	r.FCMToken = strings.TrimSpace(r.FCMToken)
}

func (r *PushTokenRequest) Validate() error {
	if r.FCMToken == "" || len(r.FCMToken) > 255 {
		return dErrors.New(dErrors.CodeValidation, "fcm_token is required and must be at most 255 characters")
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
