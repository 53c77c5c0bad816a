package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"grievance/internal/complaint/models"
	"grievance/internal/upload"
	id "grievance/pkg/domain"
	dErrors "grievance/pkg/domain-errors"
	audit "grievance/pkg/platform/audit"
	"grievance/pkg/platform/sentinel"
	"grievance/pkg/requestcontext"
)

type CreateCommand struct {
	EntityID    id.EntityID
	Kind        string
	Description string
	Location    string
	Files       upload.Batch
}

type UpdateCommand struct {
	Changes models.CitizenChanges
	Files   upload.Batch
}

func attachmentDir(complaintID id.ComplaintID) string {
	return "complaints/" + complaintID.String()
}

func toAttachments(complaintID id.ComplaintID, stored []upload.Stored, c *models.Complaint) []models.Attachment {
	out := make([]models.Attachment, 0, len(stored))
	for _, st := range stored {
		out = append(out, models.Attachment{
			ID:          id.AttachmentID(uuid.New()),
			ComplaintID: complaintID,
			FileName:    st.FileName,
			FilePath:    st.Key,
			FileType:    st.FileType,
			MimeType:    st.MimeType,
			FileSize:    st.Size,
			CreatedAt:   c.UpdatedAt,
		})
	}
	return out
}

// Create files a complaint for a citizen. Files are stored before the
// transaction starts and removed again if it rolls back.
func (s *Service) Create(ctx context.Context, actor models.Actor, cmd CreateCommand) (_ *models.Complaint, err error) {
	ctx, span := startSpan(ctx, "create", "")
	defer func() { endSpan(span, err) }()

	if !actor.IsCitizen() {
		return nil, dErrors.New(dErrors.CodeForbidden, "only citizens can submit complaints")
	}
	if err := models.ValidateContent(cmd.Kind, cmd.Description, cmd.Location); err != nil {
		return nil, asValidation(err)
	}
	if err := s.requireOpenEntity(ctx, cmd.EntityID); err != nil {
		return nil, err
	}
	if err := s.uploads.Validate(cmd.Files, nil); err != nil {
		return nil, err
	}

	complaintID := id.ComplaintID(uuid.New())
	stored, err := s.uploads.Upload(ctx, cmd.Files, attachmentDir(complaintID))
	if err != nil {
		return nil, wrapUploadErr(err)
	}

	now := requestcontext.Now(ctx)
	var created *models.Complaint
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		trackingNumber, err := s.tracking.Generate(ctx, now.Year())
		if err != nil {
			return err
		}
		c, err := models.NewComplaint(complaintID, trackingNumber, actor.ID, cmd.EntityID,
			cmd.Kind, cmd.Description, cmd.Location, now)
		if err != nil {
			return asValidation(err)
		}
		c.Attachments = toAttachments(complaintID, stored, c)
		if err := s.complaints.Create(ctx, c); err != nil {
			return wrapComplaintErr(err)
		}
		if err := s.emit(ctx, audit.EventComplaintCreated, c, "", ""); err != nil {
			return err
		}
		created = c
		return nil
	})
	if err != nil {
		s.uploads.Remove(ctx, stored)
		return nil, err
	}

	span.SetAttributes(trackingAttr(created.TrackingNumber))
	if s.metrics != nil {
		s.metrics.IncrementComplaintsCreated()
	}
	if s.notifier != nil {
		s.notifier.ComplaintCreated(context.WithoutCancel(ctx), created)
	}
	s.logger.InfoContext(ctx, "complaint created",
		"tracking_number", created.TrackingNumber,
		"entity_id", created.EntityID,
		"attachments", len(created.Attachments),
		"request_id", requestcontext.RequestID(ctx),
	)
	return created, nil
}

// Update lets the owning citizen edit content and add files while the
// complaint is new, declined, or waiting on requested information.
func (s *Service) Update(ctx context.Context, actor models.Actor, trackingNumber string, cmd UpdateCommand) (_ *models.Complaint, err error) {
	ctx, span := startSpan(ctx, "update", trackingNumber)
	defer func() { endSpan(span, err) }()

	current, err := s.complaints.FindByTrackingNumber(ctx, trackingNumber)
	if err != nil {
		return nil, wrapComplaintErr(err)
	}
	if err := current.CanCitizenUpdate(actor); err != nil {
		return nil, err
	}
	if err := current.ValidateCitizenChanges(cmd.Changes); err != nil {
		return nil, asValidation(err)
	}
	images, pdfs := current.CountAttachments()
	existing := map[models.FileType]int{models.FileTypeImage: images, models.FileTypePDF: pdfs}
	if err := s.uploads.Validate(cmd.Files, existing); err != nil {
		return nil, err
	}

	stored, err := s.uploads.Upload(ctx, cmd.Files, attachmentDir(current.ID))
	if err != nil {
		return nil, wrapUploadErr(err)
	}

	now := requestcontext.Now(ctx)
	var (
		updated *models.Complaint
		from    models.Status
	)
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		c, err := s.complaints.Execute(ctx, trackingNumber,
			func(c *models.Complaint) error {
				if err := c.CanCitizenUpdate(actor); err != nil {
					return err
				}
				return asValidation(c.ValidateCitizenChanges(cmd.Changes))
			},
			func(c *models.Complaint) { from = c.ApplyCitizenUpdate(cmd.Changes, now) },
		)
		if err != nil {
			return wrapComplaintErr(err)
		}
		if len(stored) > 0 {
			added := toAttachments(c.ID, stored, c)
			if err := s.complaints.AddAttachments(ctx, c.ID, added); err != nil {
				return wrapComplaintErr(err)
			}
			c.Attachments = append(c.Attachments, added...)
		}
		if err := s.emit(ctx, audit.EventComplaintUpdated, c, from, ""); err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		s.uploads.Remove(ctx, stored)
		return nil, err
	}

	s.notifyStatus(ctx, updated, from)
	s.logger.InfoContext(ctx, "complaint updated",
		"tracking_number", trackingNumber,
		"from_status", from,
		"to_status", updated.Status,
		"request_id", requestcontext.RequestID(ctx),
	)
	return updated, nil
}

// DeleteAttachment removes one attachment and its stored object. The object
// is deleted only after the row removal commits.
func (s *Service) DeleteAttachment(ctx context.Context, actor models.Actor, trackingNumber string, attachmentID id.AttachmentID) error {
	var removed models.Attachment
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		c, err := s.complaints.Execute(ctx, trackingNumber,
			func(c *models.Complaint) error {
				if err := c.CanCitizenUpdate(actor); err != nil {
					return err
				}
				a, ok := c.FindAttachment(attachmentID)
				if !ok {
					return dErrors.New(dErrors.CodeNotFound, "attachment not found")
				}
				removed = a
				return nil
			},
			func(*models.Complaint) {},
		)
		if err != nil {
			return wrapComplaintErr(err)
		}
		if err := s.complaints.DeleteAttachment(ctx, c.ID, attachmentID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "attachment not found")
			}
			return wrapComplaintErr(err)
		}
		return s.emit(ctx, audit.EventAttachmentDeleted, c, "", removed.FileName)
	})
	if err != nil {
		return err
	}
	s.uploads.Delete(ctx, removed.FilePath)
	return nil
}

func (s *Service) requireOpenEntity(ctx context.Context, entityID id.EntityID) error {
	if entityID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "the entity field is required")
	}
	e, err := s.entities.FindByID(ctx, entityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || dErrors.HasCode(err, dErrors.CodeNotFound) {
			return dErrors.New(dErrors.CodeValidation, "the selected entity does not exist")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load entity")
	}
	if !e.AcceptsComplaints() {
		return dErrors.New(dErrors.CodeValidation, "the selected entity is not active")
	}
	return nil
}

func wrapUploadErr(err error) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store attachments")
}

func trimmed(s string) string { return strings.TrimSpace(s) }
