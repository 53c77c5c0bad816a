package handler

import (
	"time"

	"grievance/internal/auth/models"
)

type UserResponse struct {
	ID              string     `json:"id"`
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	FullName        string     `json:"full_name"`
	Email           string     `json:"email"`
	Phone           string     `json:"phone,omitempty"`
	Role            string     `json:"role"`
	EntityID        *string    `json:"entity_id,omitempty"`
	IsActive        bool       `json:"is_active"`
	EmailVerified   bool       `json:"email_verified"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// ToUserResponse maps an account to its public JSON shape.
func ToUserResponse(u *models.User) UserResponse {
	resp := UserResponse{
		ID:              u.ID.String(),
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		FullName:        u.FullName(),
		Email:           u.Email,
		Phone:           u.Phone,
		Role:            string(u.Role),
		IsActive:        u.IsActive,
		EmailVerified:   u.IsVerified(),
		EmailVerifiedAt: u.EmailVerifiedAt,
		CreatedAt:       u.CreatedAt,
	}
	if u.EntityID != nil {
		s := u.EntityID.String()
		resp.EntityID = &s
	}
	return resp
}

type TokensResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

func toTokens(p models.TokenPair) TokensResponse {
	return TokensResponse{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int(p.ExpiresIn.Seconds()),
	}
}

type AuthResponse struct {
	Message string         `json:"message,omitempty"`
	User    UserResponse   `json:"user"`
	Tokens  TokensResponse `json:"tokens"`
}

type RegisterResponse struct {
	Message          string `json:"message"`
	Email            string `json:"email"`
	ExpiresInMinutes int    `json:"expires_in_minutes"`
}
