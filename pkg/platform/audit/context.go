package audit

import (
	"context"

	"grievance/pkg/requestcontext"
)

// FromContext builds an event for action on subject, filling actor and
// request metadata from the request context.
func FromContext(ctx context.Context, action AuditEvent, subject string) Event {
	return Event{
		Action:    string(action),
		Subject:   subject,
		ActorID:   requestcontext.UserID(ctx),
		ActorRole: requestcontext.Role(ctx),
		RequestID: requestcontext.RequestID(ctx),
		IP:        requestcontext.ClientIP(ctx),
		Timestamp: requestcontext.Now(ctx),
	}
}
