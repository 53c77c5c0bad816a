package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"grievance/internal/auth/models"
	id "grievance/pkg/domain"
	dErrors "grievance/pkg/domain-errors"
	audit "grievance/pkg/platform/audit"
	"grievance/pkg/platform/sentinel"
	"grievance/pkg/requestcontext"
	"grievance/pkg/secrets"
)

const verificationCodeDigits = 6

type RegisterCommand struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Password  string
}

// Register stores a pending registration and emails its code. A previous
// pending registration for the same email is replaced.
func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*models.PendingRegistration, error) {
	email := strings.ToLower(strings.TrimSpace(cmd.Email))
	taken, err := s.users.EmailTaken(ctx, email, nil)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check email")
	}
	if taken {
		return nil, dErrors.New(dErrors.CodeConflict, "this email is already registered")
	}

	hash, err := secrets.Hash(cmd.Password)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}
	code, err := secrets.NumericCode(verificationCodeDigits)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate verification code")
	}

	p, err := models.NewPendingRegistration(email, cmd.FirstName, cmd.LastName, cmd.Phone, hash, code, s.cfg.VerificationTTL, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, dErrors.Message(err))
	}
	if err := s.pending.Save(ctx, p); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save registration")
	}
	if err := s.sendCode(ctx, p); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "registration pending verification",
		"email", p.Email,
		"request_id", requestcontext.RequestID(ctx),
	)
	return p, nil
}

// ResendVerification issues a fresh code for a pending registration.
func (s *Service) ResendVerification(ctx context.Context, email string) (*models.PendingRegistration, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	p, err := s.pending.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			taken, takenErr := s.users.EmailTaken(ctx, email, nil)
			if takenErr == nil && taken {
				return nil, dErrors.New(dErrors.CodeValidation, "email is already verified")
			}
			return nil, dErrors.New(dErrors.CodeNotFound, "no pending registration found for this email")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registration")
	}

	code, err := secrets.NumericCode(verificationCodeDigits)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate verification code")
	}
	p.ApplyNewCode(code, s.cfg.VerificationTTL, requestcontext.Now(ctx))
	if err := s.pending.Save(ctx, p); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save registration")
	}
	if err := s.sendCode(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) sendCode(ctx context.Context, p *models.PendingRegistration) error {
	name := strings.TrimSpace(p.FirstName + " " + p.LastName)
	if err := s.sender.SendVerificationCode(ctx, p.Email, name, p.Code, s.cfg.VerificationTTL); err != nil {
		s.logger.ErrorContext(ctx, "failed to send verification code",
			"email", p.Email,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "could not send verification email")
	}
	return nil
}

// VerifyEmail turns a pending registration into a verified citizen and logs them in.
func (s *Service) VerifyEmail(ctx context.Context, email, code string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	now := requestcontext.Now(ctx)

	var result *AuthResult
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		p, err := s.pending.FindByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeValidation, "invalid or expired verification code")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registration")
		}
		if err := p.CanVerify(code, now); err != nil {
			return err
		}

		u, err := models.NewUser(id.UserID(uuid.New()), models.NewUserParams{
			FirstName:    p.FirstName,
			LastName:     p.LastName,
			Email:        p.Email,
			Phone:        p.Phone,
			PasswordHash: p.PasswordHash,
			Role:         id.RoleCitizen,
			IsActive:     true,
			Verified:     true,
		}, now)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, dErrors.Message(err))
		}
		if err := s.users.Create(ctx, u); err != nil {
			return wrapUserErr(err)
		}
		if err := s.pending.Delete(ctx, p.Email); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear registration")
		}
		pair, err := s.issueTokens(ctx, u)
		if err != nil {
			return err
		}
		result = &AuthResult{User: u, Tokens: *pair}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementUsersRegistered()
	}
	s.emit(ctx, audit.EventUserRegistered, result.User.ID.String())
	s.logger.InfoContext(ctx, "citizen registered",
		"user_id", result.User.ID,
		"request_id", requestcontext.RequestID(ctx),
	)
	return result, nil
}

// CleanupExpiredRegistrations deletes pending registrations whose code expired.
func (s *Service) CleanupExpiredRegistrations(ctx context.Context, now time.Time) (int, error) {
	n, err := s.pending.DeleteExpired(ctx, now)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete expired registrations")
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "expired registrations removed", "count", n)
	}
	return n, nil
}
