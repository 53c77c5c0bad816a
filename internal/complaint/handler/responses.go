package handler

import (
	"context"
	"time"

	"grievance/internal/complaint/models"
	"grievance/internal/complaint/service"
	"grievance/pkg/requestcontext"
)

type AttachmentResponse struct {
	ID        string    `json:"id"`
	FileName  string    `json:"file_name"`
	FileType  string    `json:"file_type"`
	MimeType  string    `json:"mime_type"`
	FileSize  int64     `json:"file_size"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

type ComplaintResponse struct {
	ID                 string               `json:"id"`
	TrackingNumber     string               `json:"tracking_number"`
	CitizenID          string               `json:"citizen_id"`
	EntityID           string               `json:"entity_id"`
	Type               string               `json:"type"`
	Description        string               `json:"description"`
	Location           string               `json:"location"`
	Status             string               `json:"status"`
	AssignedTo         *string              `json:"assigned_to"`
	IsLocked           bool                 `json:"is_locked"`
	LockedAt           *time.Time           `json:"locked_at"`
	LockExpiresAt      *time.Time           `json:"lock_expires_at"`
	InfoRequested      bool                 `json:"info_requested"`
	InfoRequestMessage string               `json:"info_request_message,omitempty"`
	InfoRequestedAt    *time.Time           `json:"info_requested_at"`
	AdminNotes         string               `json:"admin_notes,omitempty"`
	Resolution         string               `json:"resolution,omitempty"`
	ReviewedAt         *time.Time           `json:"reviewed_at"`
	ResolvedAt         *time.Time           `json:"resolved_at"`
	CanEdit            bool                 `json:"can_edit"`
	AllowedTransitions []string             `json:"allowed_transitions"`
	Attachments        []AttachmentResponse `json:"attachments"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

type PublicStatusResponse struct {
	TrackingNumber string    `json:"tracking_number"`
	Status         string    `json:"status"`
	Entity         string    `json:"entity,omitempty"`
	InfoRequested  bool      `json:"info_requested"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// URLResolver maps a stored attachment to a client URL.
type URLResolver interface {
	FileURL(ctx context.Context, a models.Attachment) (string, error)
}

// Presenter renders complaints, resolving attachment URLs.
type Presenter struct {
	urls URLResolver
}

// NewPresenter renders complaints with attachment URLs resolved through files.
func NewPresenter(urls URLResolver) Presenter {
	return Presenter{urls: urls}
}

func (p Presenter) Complaint(ctx context.Context, c *models.Complaint) ComplaintResponse {
	now := requestcontext.Now(ctx)
	resp := ComplaintResponse{
		ID:                 c.ID.String(),
		TrackingNumber:     c.TrackingNumber,
		CitizenID:          c.CitizenID.String(),
		EntityID:           c.EntityID.String(),
		Type:               c.Kind,
		Description:        c.Description,
		Location:           c.Location,
		Status:             string(c.Status),
		IsLocked:           c.IsLocked(now),
		LockedAt:           c.LockedAt,
		LockExpiresAt:      c.LockExpiresAt,
		InfoRequested:      c.InfoRequested,
		InfoRequestMessage: c.InfoRequestMessage,
		InfoRequestedAt:    c.InfoRequestedAt,
		AdminNotes:         c.AdminNotes,
		Resolution:         c.Resolution,
		ReviewedAt:         c.ReviewedAt,
		ResolvedAt:         c.ResolvedAt,
		CanEdit:            c.CanBeUpdatedByCitizen(),
		AllowedTransitions: []string{},
		Attachments:        make([]AttachmentResponse, 0, len(c.Attachments)),
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
	if c.AssignedTo != nil {
		assignee := c.AssignedTo.String()
		resp.AssignedTo = &assignee
	}
	for _, s := range models.AllowedTransitions(c.Status) {
		resp.AllowedTransitions = append(resp.AllowedTransitions, string(s))
	}
	for _, a := range c.Attachments {
		url, _ := p.urls.FileURL(ctx, a)
		resp.Attachments = append(resp.Attachments, AttachmentResponse{
			ID:        a.ID.String(),
			FileName:  a.FileName,
			FileType:  string(a.FileType),
			MimeType:  a.MimeType,
			FileSize:  a.FileSize,
			URL:       url,
			CreatedAt: a.CreatedAt,
		})
	}
	return resp
}

func (p Presenter) Mapper(ctx context.Context) func(*models.Complaint) ComplaintResponse {
	return func(c *models.Complaint) ComplaintResponse { return p.Complaint(ctx, c) }
}

func fromPublic(s *service.PublicStatus) PublicStatusResponse {
	return PublicStatusResponse{
		TrackingNumber: s.TrackingNumber,
		Status:         string(s.Status),
		Entity:         s.EntityName,
		InfoRequested:  s.InfoRequested,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}
