package audit

import (
	"time"

	"github.com/google/uuid"

	id "grievance/pkg/domain"
)

// EventCategory classifies audit events so consumers can route and retain them differently.
type EventCategory string

const (
	// CategoryCompliance covers complaint lifecycle changes and account creation.
	CategoryCompliance EventCategory = "compliance"
	// CategorySecurity covers authentication failures, blocks and administrative access.
	CategorySecurity EventCategory = "security"
	// CategoryOperations covers routine activity.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions.
type Event struct {
	ID        uuid.UUID
	Category  EventCategory
	Timestamp time.Time
	Action    string
	// ActorID is the user who performed the action; nil for system sweeps.
	ActorID   id.UserID
	ActorRole id.Role
	// Subject is the business identifier acted on (tracking number, email, IP).
	Subject    string
	FromStatus string
	ToStatus   string
	Reason     string
	RequestID  string
	IP         string
}

// AuditEvent names the action recorded by an audit event.
type AuditEvent string

const (
	EventComplaintCreated       AuditEvent = "complaint_created"
	EventComplaintUpdated       AuditEvent = "complaint_updated"
	EventComplaintAccepted      AuditEvent = "complaint_accepted"
	EventComplaintFinished      AuditEvent = "complaint_finished"
	EventComplaintDeclined      AuditEvent = "complaint_declined"
	EventComplaintInfoRequested AuditEvent = "complaint_info_requested"
	EventComplaintUnlocked      AuditEvent = "complaint_unlocked"
	EventComplaintLockExpired   AuditEvent = "complaint_lock_expired"
	EventComplaintReopened      AuditEvent = "complaint_reopened"
	EventComplaintStatusChanged AuditEvent = "complaint_status_changed"
	EventAttachmentDeleted      AuditEvent = "attachment_deleted"

	EventUserRegistered AuditEvent = "user_registered"
	EventUserLoggedIn   AuditEvent = "user_logged_in"
	EventAdminLoggedIn  AuditEvent = "admin_logged_in"
	EventUserLoggedOut  AuditEvent = "user_logged_out"
	EventAuthFailed     AuditEvent = "auth_failed"

	EventEntityCreated   AuditEvent = "entity_created"
	EventEntityUpdated   AuditEvent = "entity_updated"
	EventEntityDeleted   AuditEvent = "entity_deleted"
	EventEntityRestored  AuditEvent = "entity_restored"
	EventEmployeeCreated AuditEvent = "employee_created"
	EventEmployeeUpdated AuditEvent = "employee_updated"
	EventEmployeeDeleted AuditEvent = "employee_deleted"

	EventIPBlocked   AuditEvent = "ip_blocked"
	EventIPUnblocked AuditEvent = "ip_unblocked"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventComplaintCreated:       CategoryCompliance,
	EventComplaintAccepted:      CategoryCompliance,
	EventComplaintFinished:      CategoryCompliance,
	EventComplaintDeclined:      CategoryCompliance,
	EventComplaintInfoRequested: CategoryCompliance,
	EventComplaintReopened:      CategoryCompliance,
	EventComplaintStatusChanged: CategoryCompliance,
	EventUserRegistered:         CategoryCompliance,
	EventEmployeeCreated:        CategoryCompliance,
	EventEmployeeDeleted:        CategoryCompliance,
	EventEntityDeleted:          CategoryCompliance,

	EventAuthFailed:        CategorySecurity,
	EventAdminLoggedIn:     CategorySecurity,
	EventIPBlocked:         CategorySecurity,
	EventIPUnblocked:       CategorySecurity,
	EventUserLoggedOut:     CategorySecurity,
	EventAttachmentDeleted: CategorySecurity,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// OutboxEntry is a persisted event awaiting publication to the event stream.
type OutboxEntry struct {
	ID          uuid.UUID
	EventType   string
	AggregateID string
	Payload     []byte
	CreatedAt   time.Time
}
