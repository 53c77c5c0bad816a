package service

import (
	"context"
	"errors"
	"strings"

	"grievance/internal/auth/device"
	"grievance/internal/auth/models"
	dErrors "grievance/pkg/domain-errors"
	audit "grievance/pkg/platform/audit"
	"grievance/pkg/platform/sentinel"
	"grievance/pkg/requestcontext"
	"grievance/pkg/secrets"
)

var errBadCredentials = dErrors.New(dErrors.CodeUnauthorized, "the provided credentials are incorrect")

// Login authenticates any verified, active account.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	u, err := s.authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := u.CanLogin(); err != nil {
		s.loginFailed(ctx, email, "inactive")
		return nil, err
	}
	pair, err := s.issueTokens(ctx, u)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, audit.EventUserLoggedIn, u.ID.String())
	return &AuthResult{User: u, Tokens: *pair}, nil
}

// AdminLogin keeps a single active admin session by revoking every existing
// refresh token before issuing a new pair.
func (s *Service) AdminLogin(ctx context.Context, email, password string) (*AuthResult, error) {
	u, err := s.authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := u.CanLoginAsAdmin(); err != nil {
		s.loginFailed(ctx, email, "not_admin")
		return nil, err
	}

	var pair *models.TokenPair
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.refreshTokens.RevokeAllForUser(ctx, u.ID, requestcontext.Now(ctx)); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke previous sessions")
		}
		var err error
		pair, err = s.issueTokens(ctx, u)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, audit.EventAdminLoggedIn, u.ID.String())
	return &AuthResult{User: u, Tokens: *pair}, nil
}

func (s *Service) authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.loginFailed(ctx, email, "unknown_email")
			return nil, errBadCredentials
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	if err := secrets.Verify(password, u.PasswordHash); err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			s.loginFailed(ctx, email, "bad_password")
			return nil, errBadCredentials
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify password")
	}
	return u, nil
}

func (s *Service) loginFailed(ctx context.Context, email, reason string) {
	s.incrementLoginFailures()
	s.logger.WarnContext(ctx, "login failed",
		"email", email,
		"reason", reason,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.auditPublisher == nil {
		return
	}
	event := audit.FromContext(ctx, audit.EventAuthFailed, email)
	event.Reason = reason
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "error", err)
	}
}

// Refresh rotates a refresh token: the presented one is revoked and a new pair issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	now := requestcontext.Now(ctx)
	var pair *models.TokenPair
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		record, err := s.refreshTokens.Consume(ctx, models.HashRefreshToken(strings.TrimSpace(refreshToken)), now)
		if err != nil {
			switch {
			case errors.Is(err, sentinel.ErrNotFound), errors.Is(err, sentinel.ErrExpired), errors.Is(err, sentinel.ErrAlreadyUsed):
				return dErrors.New(dErrors.CodeUnauthorized, "invalid or expired refresh token")
			default:
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to consume refresh token")
			}
		}
		u, err := s.users.FindByID(ctx, record.UserID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeUnauthorized, "invalid or expired refresh token")
			}
			return wrapUserErr(err)
		}
		if err := u.CanLogin(); err != nil {
			return err
		}
		pair, err = s.issueTokens(ctx, u)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// Logout revokes the presented access token until it expires and every refresh token.
func (s *Service) Logout(ctx context.Context) error {
	userID := requestcontext.UserID(ctx)
	now := requestcontext.Now(ctx)
	if jti := requestcontext.TokenJTI(ctx); jti != "" {
		if ttl := requestcontext.TokenExpiry(ctx).Sub(now); ttl > 0 {
			if err := s.revocations.RevokeToken(ctx, jti, ttl); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke access token")
			}
		}
	}
	if _, err := s.refreshTokens.RevokeAllForUser(ctx, userID, now); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke refresh tokens")
	}
	s.emit(ctx, audit.EventUserLoggedOut, userID.String())
	return nil
}

// LogoutAll revokes the refresh tokens of every device.
func (s *Service) LogoutAll(ctx context.Context) (int, error) {
	userID := requestcontext.UserID(ctx)
	n, err := s.refreshTokens.RevokeAllForUser(ctx, userID, requestcontext.Now(ctx))
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke refresh tokens")
	}
	s.emit(ctx, audit.EventUserLoggedOut, userID.String())
	return n, nil
}

func (s *Service) issueTokens(ctx context.Context, u *models.User) (*models.TokenPair, error) {
	access, err := s.tokens.GenerateAccessToken(u.ID, u.Role, u.EntityID, s.cfg.AccessTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate access token")
	}
	plaintext, err := secrets.Token(models.RefreshTokenLength / 2)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate refresh token")
	}
	record, err := models.NewRefreshToken(u.ID, plaintext,
		device.ParseUserAgent(requestcontext.UserAgent(ctx)),
		requestcontext.ClientIP(ctx),
		s.cfg.RefreshTTL, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build refresh token")
	}
	if err := s.refreshTokens.Create(ctx, record); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store refresh token")
	}
	return &models.TokenPair{
		AccessToken:  access.Token,
		RefreshToken: plaintext,
		ExpiresIn:    s.cfg.AccessTTL,
	}, nil
}
