package service

import (
	"context"
	"strings"

	"grievance/internal/auth/models"
	dErrors "grievance/pkg/domain-errors"
	"grievance/pkg/requestcontext"
)

// Me returns the authenticated account.
func (s *Service) Me(ctx context.Context) (*models.User, error) {
	u, err := s.users.FindByID(ctx, requestcontext.UserID(ctx))
	if err != nil {
		return nil, wrapUserErr(err)
	}
	return u, nil
}

// RegisterPushToken stores the device token used for push notifications.
func (s *Service) RegisterPushToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" || len(token) > 255 {
		return dErrors.New(dErrors.CodeValidation, "fcm token must be between 1 and 255 characters")
	}
	return s.setPushToken(ctx, token)
}

func (s *Service) RemovePushToken(ctx context.Context) error {
	return s.setPushToken(ctx, "")
}

func (s *Service) setPushToken(ctx context.Context, token string) error {
	now := requestcontext.Now(ctx)
	_, err := s.users.Execute(ctx, requestcontext.UserID(ctx),
		func(u *models.User) error {
			if u.IsDeleted() {
				return dErrors.New(dErrors.CodeNotFound, "user not found")
			}
			return nil
		},
		func(u *models.User) { u.ApplyFCMToken(token, now) },
	)
	if err != nil {
		return wrapUserErr(err)
	}
	return nil
}

// SendTestPush sends a fixed notification to the caller's registered device.
func (s *Service) SendTestPush(ctx context.Context) error {
	if s.push == nil {
		return dErrors.New(dErrors.CodeUnavailable, "push notifications are not configured")
	}
	u, err := s.Me(ctx)
	if err != nil {
		return err
	}
	if !u.HasPushToken() {
		return dErrors.New(dErrors.CodeValidation, "no fcm token registered for this user")
	}
	err = s.push.Push(ctx, u.FCMToken, "Test notification", "Push notifications are working.", map[string]string{
		"type": "test",
	})
	if err != nil {
		s.logger.WarnContext(ctx, "test push failed",
			"user_id", u.ID,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to send push notification")
	}
	return nil
}
