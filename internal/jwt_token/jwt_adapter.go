package jwttoken

import (
	id "grievance/pkg/domain"
	dErrors "grievance/pkg/domain-errors"
	authmw "grievance/pkg/platform/middleware/auth"
)

// ToMiddlewareClaims parses the string claims into typed identifiers.
func ToMiddlewareClaims(claims *Claims) (*authmw.JWTClaims, error) {
	userID, err := id.ParseUserID(claims.UserID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	role, err := id.ParseRole(claims.Role)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	out := &authmw.JWTClaims{
		UserID: userID,
		Role:   role,
		JTI:    claims.ID, // JWT ID for revocation tracking
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	if claims.EntityID != "" {
		entityID, err := id.ParseEntityID(claims.EntityID)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
		}
		out.EntityID = &entityID
	}
	return out, nil
}

// JWTServiceAdapter satisfies the auth middleware's validator interface.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*authmw.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return ToMiddlewareClaims(claims)
}
