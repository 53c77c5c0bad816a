// Package adapters connects the complaint service to other modules.
package adapters

import (
	"context"
	"log/slog"
	"strings"

	authmodels "grievance/internal/auth/models"
	"grievance/internal/complaint/models"
	entitymodels "grievance/internal/entity/models"
	"grievance/internal/notification/dispatch"
	notifmodels "grievance/internal/notification/models"
	id "grievance/pkg/domain"
	"grievance/pkg/requestcontext"
)

type UserLookup interface {
	FindByID(ctx context.Context, userID id.UserID) (*authmodels.User, error)
	ListActiveEmployees(ctx context.Context, entityID id.EntityID) ([]*authmodels.User, error)
}

type EntityLookup interface {
	FindByID(ctx context.Context, entityID id.EntityID) (*entitymodels.Entity, error)
}

type Enqueuer interface {
	Enqueue(ctx context.Context, deliveries ...dispatch.Delivery)
}

// Notifier turns committed complaint changes into notification deliveries.
// Lookup failures are logged and the notification is skipped.
type Notifier struct {
	users        UserLookup
	entities     EntityLookup
	queue        Enqueuer
	publicOrigin string
	logger       *slog.Logger
}

// NewNotifier builds complaint notifications. publicOrigin prefixes the
// tracking links.
func NewNotifier(users UserLookup, entities EntityLookup, queue Enqueuer, publicOrigin string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		users:        users,
		entities:     entities,
		queue:        queue,
		publicOrigin: strings.TrimRight(publicOrigin, "/"),
		logger:       logger,
	}
}

// ComplaintCreated confirms receipt to the citizen and alerts the entity's
// active employees.
func (n *Notifier) ComplaintCreated(ctx context.Context, c *models.Complaint) {
	entityName := n.entityName(ctx, c.EntityID)
	var deliveries []dispatch.Delivery

	if citizen, ok := n.citizen(ctx, c); ok {
		deliveries = append(deliveries, n.delivery(ctx, citizen, notifmodels.Message{
			Kind:      notifmodels.KindComplaintReceived,
			Title:     "Complaint Submitted",
			Body:      "Your complaint #" + c.TrackingNumber + " has been received.",
			Data:      n.data(c, "complaint_created", map[string]string{"entity_name": entityName, "action": "open_complaint"}),
			PushTitle: "Complaint Submitted Successfully",
			PushBody:  "Your complaint #" + c.TrackingNumber + " has been received.",
			Mail: &notifmodels.Mail{
				Subject: "Complaint Submitted Successfully",
				Lines: []string{
					"Your complaint has been submitted successfully.",
					"Tracking Number: " + c.TrackingNumber,
					"Entity: " + entityName,
					"Status: " + StatusLabel(c.Status),
				},
				Action: "Track Complaint",
				URL:    n.url(c.TrackingNumber),
				Outro:  "You will receive updates about your complaint.",
			},
		}))
	}

	employees, err := n.users.ListActiveEmployees(ctx, c.EntityID)
	if err != nil {
		n.logger.WarnContext(ctx, "failed to load entity employees for notification",
			"tracking_number", c.TrackingNumber, "error", err)
	}
	for _, e := range employees {
		deliveries = append(deliveries, n.delivery(ctx, e, notifmodels.Message{
			Kind:      notifmodels.KindComplaintCreated,
			Title:     "New Complaint",
			Body:      "A new complaint #" + c.TrackingNumber + " (" + c.Kind + ") was submitted to " + entityName + ".",
			Data:      n.data(c, "new_complaint", map[string]string{"kind": c.Kind}),
			PushTitle: "New Complaint",
			PushBody:  c.Kind + " - #" + c.TrackingNumber,
			Mail: &notifmodels.Mail{
				Subject: "New Complaint Received",
				Lines: []string{
					"A new complaint was submitted to " + entityName + ".",
					"Tracking Number: " + c.TrackingNumber,
					"Type: " + c.Kind,
				},
				Action: "Review Complaint",
				URL:    n.publicOrigin + "/employee/complaints/" + c.TrackingNumber,
			},
		}))
	}
	n.queue.Enqueue(ctx, deliveries...)
}

// StatusChanged tells the citizen about a move from from to to.
func (n *Notifier) StatusChanged(ctx context.Context, c *models.Complaint, from, to models.Status) {
	citizen, ok := n.citizen(ctx, c)
	if !ok {
		return
	}
	toLabel := StatusLabel(to)
	n.queue.Enqueue(ctx, n.delivery(ctx, citizen, notifmodels.Message{
		Kind:      notifmodels.KindStatusChanged,
		Title:     "Status Updated",
		Body:      "Your complaint #" + c.TrackingNumber + " status changed to " + toLabel,
		Data:      n.data(c, "status_changed", map[string]string{"old_status": string(from), "new_status": string(to)}),
		PushTitle: "Complaint Status Updated",
		PushBody:  "Status changed to: " + toLabel,
		Mail: &notifmodels.Mail{
			Subject: "Complaint Status Updated",
			Lines: []string{
				"Your complaint status has been updated.",
				"Tracking Number: " + c.TrackingNumber,
				"Previous Status: " + StatusLabel(from),
				"New Status: " + toLabel,
			},
			Action: "View Complaint",
			URL:    n.url(c.TrackingNumber),
			Outro:  "Thank you for using our service!",
		},
	}))
}

// InfoRequested forwards the employee's question to the citizen.
func (n *Notifier) InfoRequested(ctx context.Context, c *models.Complaint) {
	citizen, ok := n.citizen(ctx, c)
	if !ok {
		return
	}
	n.queue.Enqueue(ctx, n.delivery(ctx, citizen, notifmodels.Message{
		Kind:      notifmodels.KindInfoRequested,
		Title:     "Information Requested",
		Body:      c.InfoRequestMessage,
		Data:      n.data(c, "info_requested", nil),
		PushTitle: "Additional Information Needed",
		PushBody:  "Please update your complaint with the requested information.",
		Mail: &notifmodels.Mail{
			Subject: "Additional Information Requested",
			Lines: []string{
				"The employee handling your complaint has requested additional information.",
				"Tracking Number: " + c.TrackingNumber,
				"Message: " + c.InfoRequestMessage,
			},
			Action: "Update Complaint",
			URL:    n.url(c.TrackingNumber) + "/update",
			Outro:  "Please provide the requested information to proceed with your complaint.",
		},
	}))
}

func (n *Notifier) citizen(ctx context.Context, c *models.Complaint) (*authmodels.User, bool) {
	u, err := n.users.FindByID(ctx, c.CitizenID)
	if err != nil {
		n.logger.WarnContext(ctx, "failed to load complaint owner for notification",
			"tracking_number", c.TrackingNumber, "error", err)
		return nil, false
	}
	return u, true
}

func (n *Notifier) entityName(ctx context.Context, entityID id.EntityID) string {
	e, err := n.entities.FindByID(ctx, entityID)
	if err != nil {
		return ""
	}
	return e.Name
}

func (n *Notifier) delivery(ctx context.Context, u *authmodels.User, msg notifmodels.Message) dispatch.Delivery {
	return dispatch.Delivery{
		To: notifmodels.Recipient{
			UserID:   u.ID,
			Email:    u.Email,
			Name:     u.FullName(),
			FCMToken: u.FCMToken,
		},
		Message:   msg,
		RequestID: requestcontext.RequestID(ctx),
	}
}

func (n *Notifier) data(c *models.Complaint, kind string, extra map[string]string) map[string]string {
	out := map[string]string{
		"complaint_id":    c.ID.String(),
		"tracking_number": c.TrackingNumber,
		"type":            kind,
		"status":          string(c.Status),
		"action_url":      "/complaints/" + c.TrackingNumber,
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func (n *Notifier) url(trackingNumber string) string {
	return n.publicOrigin + "/complaints/" + trackingNumber
}

// StatusLabel renders a status for humans, e.g. "In Progress".
func StatusLabel(s models.Status) string {
	words := strings.Split(string(s), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
