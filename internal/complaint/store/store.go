// Package store persists complaints and their attachments.
//
// Error contract: missing complaints or attachments return sentinel.ErrNotFound;
// tracking number collisions return sentinel.ErrAlreadyUsed; a stale version
// on write returns sentinel.ErrConflict.
package store

import (
	"context"
	"time"

	"grievance/internal/complaint/models"
	id "grievance/pkg/domain"
)

// Filter narrows List. Nil fields do not filter. Results are newest first.
type Filter struct {
	CitizenID  *id.UserID
	EntityID   *id.EntityID
	AssignedTo *id.UserID
	Status     *models.Status
}

type Store interface {
	// Create inserts the complaint together with its attachments.
	Create(ctx context.Context, c *models.Complaint) error
	FindByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Complaint, error)
	List(ctx context.Context, filter Filter, page id.PageRequest) (id.Page[*models.Complaint], error)
	// Execute runs validate then mutate under a row lock and persists the result.
	Execute(ctx context.Context, trackingNumber string, validate func(*models.Complaint) error, mutate func(*models.Complaint)) (*models.Complaint, error)
	AddAttachments(ctx context.Context, complaintID id.ComplaintID, attachments []models.Attachment) error
	DeleteAttachment(ctx context.Context, complaintID id.ComplaintID, attachmentID id.AttachmentID) error
	CountByEntity(ctx context.Context, entityIDs []id.EntityID) (map[id.EntityID]int, error)
	CountByCitizen(ctx context.Context, citizenIDs []id.UserID) (map[id.UserID]int, error)
	// ListLockExpired returns tracking numbers of in-progress complaints whose
	// lock ran out at or before now and that are not waiting on the citizen.
	ListLockExpired(ctx context.Context, now time.Time) ([]string, error)
}
