package service

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"grievance/internal/complaint/models"
	dErrors "grievance/pkg/domain-errors"
	audit "grievance/pkg/platform/audit"
	"grievance/pkg/requestcontext"
)

// transition runs one guarded change under the row lock and records its audit
// event in the same transaction. Status notifications go out after commit.
func (s *Service) transition(ctx context.Context, op, trackingNumber string, event audit.AuditEvent, reason string,
	validate func(*models.Complaint) error, mutate func(*models.Complaint)) (_ *models.Complaint, err error) {
	ctx, span := startSpan(ctx, op, trackingNumber)
	defer func() { endSpan(span, err) }()

	var (
		changed *models.Complaint
		from    models.Status
	)
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		c, err := s.complaints.Execute(ctx, trackingNumber,
			func(c *models.Complaint) error {
				from = c.Status
				return validate(c)
			},
			mutate,
		)
		if err != nil {
			return wrapComplaintErr(err)
		}
		if err := s.emit(ctx, event, c, from, reason); err != nil {
			return err
		}
		changed = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyStatus(ctx, changed, from)
	s.logger.InfoContext(ctx, "complaint "+op,
		"tracking_number", trackingNumber,
		"from_status", from,
		"to_status", changed.Status,
		"actor_id", requestcontext.UserID(ctx),
		"request_id", requestcontext.RequestID(ctx),
	)
	return changed, nil
}

// Accept assigns the employee and locks the complaint for the lock TTL.
func (s *Service) Accept(ctx context.Context, actor models.Actor, trackingNumber string) (*models.Complaint, error) {
	now := requestcontext.Now(ctx)
	return s.transition(ctx, "accepted", trackingNumber, audit.EventComplaintAccepted, "",
		func(c *models.Complaint) error { return c.CanAccept(actor, now) },
		func(c *models.Complaint) { c.ApplyAccept(actor, s.lockTTL, now) },
	)
}

// Finish resolves an in-progress complaint with resolution.
func (s *Service) Finish(ctx context.Context, actor models.Actor, trackingNumber, resolution string) (*models.Complaint, error) {
	resolution = trimmed(resolution)
	if err := requireText("resolution", resolution, models.MinResolutionLength); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	return s.transition(ctx, "finished", trackingNumber, audit.EventComplaintFinished, "",
		func(c *models.Complaint) error { return c.CanFinish(actor, now) },
		func(c *models.Complaint) { c.ApplyFinish(resolution, now) },
	)
}

// Decline closes a new or in-progress complaint with reason.
func (s *Service) Decline(ctx context.Context, actor models.Actor, trackingNumber, reason string) (*models.Complaint, error) {
	reason = trimmed(reason)
	if err := requireText("reason", reason, models.MinDeclineLength); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	return s.transition(ctx, "declined", trackingNumber, audit.EventComplaintDeclined, reason,
		func(c *models.Complaint) error { return c.CanDecline(actor, now) },
		func(c *models.Complaint) { c.ApplyDecline(reason, now) },
	)
}

// RequestInfo asks the citizen for more details. The complaint stays in
// progress and becomes editable by its owner until they answer.
func (s *Service) RequestInfo(ctx context.Context, actor models.Actor, trackingNumber, message string) (*models.Complaint, error) {
	message = trimmed(message)
	if err := requireText("message", message, models.MinInfoRequestLength); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	c, err := s.transition(ctx, "info_requested", trackingNumber, audit.EventComplaintInfoRequested, message,
		func(c *models.Complaint) error { return c.CanRequestInfo(actor, now) },
		func(c *models.Complaint) { c.ApplyRequestInfo(message, now) },
	)
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.InfoRequested(context.WithoutCancel(ctx), c)
	}
	return c, nil
}

// Unlock releases the lock early. The assignment is kept.
func (s *Service) Unlock(ctx context.Context, actor models.Actor, trackingNumber string) (*models.Complaint, error) {
	now := requestcontext.Now(ctx)
	return s.transition(ctx, "unlocked", trackingNumber, audit.EventComplaintUnlocked, "",
		func(c *models.Complaint) error { return c.CanUnlock(actor) },
		func(c *models.Complaint) { c.ApplyReleaseLock(now) },
	)
}

// Reopen moves a declined or finished complaint back to in progress.
func (s *Service) Reopen(ctx context.Context, actor models.Actor, trackingNumber string) (*models.Complaint, error) {
	now := requestcontext.Now(ctx)
	return s.transition(ctx, "reopened", trackingNumber, audit.EventComplaintReopened, "",
		func(c *models.Complaint) error { return c.CanReopen(actor, now) },
		func(c *models.Complaint) { c.ApplyReopen(actor, s.lockTTL, now) },
	)
}

// ChangeStatus is the admin's generic guarded transition. note, when given,
// replaces the admin notes.
func (s *Service) ChangeStatus(ctx context.Context, actor models.Actor, trackingNumber string, to models.Status, note string) (*models.Complaint, error) {
	if !actor.IsAdmin() {
		return nil, dErrors.New(dErrors.CodeForbidden, "only admins can change complaint status directly")
	}
	now := requestcontext.Now(ctx)
	return s.transition(ctx, "status_changed", trackingNumber, audit.EventComplaintStatusChanged, trimmed(note),
		func(c *models.Complaint) error { return c.CanChangeStatusTo(to, actor, now) },
		func(c *models.Complaint) { c.ApplyStatus(to, note, now) },
	)
}

// UnlockExpired returns every in-progress complaint whose lock ran out to new
// with no assignee. Complaints waiting on the citizen are skipped. A complaint
// that changes between listing and locking is skipped too.
func (s *Service) UnlockExpired(ctx context.Context, now time.Time) (int, error) {
	ctx = requestcontext.WithTime(ctx, now)
	expired, err := s.complaints.ListLockExpired(ctx, now)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list expired locks")
	}
	released := 0
	for _, trackingNumber := range expired {
		if ctx.Err() != nil {
			break
		}
		_, err := s.transition(ctx, "lock_expired", trackingNumber, audit.EventComplaintLockExpired, "",
			func(c *models.Complaint) error { return c.CanReleaseExpiredLock(now) },
			func(c *models.Complaint) { c.ApplyReleaseExpiredLock(now) },
		)
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeConflict) || dErrors.HasCode(err, dErrors.CodeNotFound) {
				continue
			}
			return released, err
		}
		released++
	}
	if s.metrics != nil && released > 0 {
		s.metrics.AddLocksReleased(released)
	}
	if released > 0 {
		s.logger.InfoContext(ctx, "expired complaint locks released", "count", released)
	}
	return released, ctx.Err()
}

func requireText(field, value string, minLen int) error {
	if value == "" {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("the %s field is required", field))
	}
	if utf8.RuneCountInString(value) < minLen {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("the %s must be at least %d characters", field, minLen))
	}
	return nil
}
