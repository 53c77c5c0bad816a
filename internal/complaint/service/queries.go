package service

import (
	"context"
	"time"

	"grievance/internal/complaint/models"
	"grievance/internal/complaint/store"
	"grievance/internal/complaint/tracking"
	id "grievance/pkg/domain"
	dErrors "grievance/pkg/domain-errors"
)

// PublicStatus is what unauthenticated visitors see when tracking a complaint.
type PublicStatus struct {
	TrackingNumber string
	Status         models.Status
	EntityName     string
	InfoRequested  bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Track returns the full complaint to its owner, the entity's employees and admins.
func (s *Service) Track(ctx context.Context, actor models.Actor, trackingNumber string) (*models.Complaint, error) {
	c, err := s.complaints.FindByTrackingNumber(ctx, trackingNumber)
	if err != nil {
		return nil, wrapComplaintErr(err)
	}
	if !c.CanView(actor) {
		return nil, dErrors.New(dErrors.CodeForbidden, "you are not allowed to view this complaint")
	}
	return c, nil
}

// PublicStatus returns the anonymous view served to tracking number lookups.
func (s *Service) PublicStatus(ctx context.Context, trackingNumber string) (*PublicStatus, error) {
	if !tracking.Validate(trackingNumber) {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid tracking number format")
	}
	c, err := s.complaints.FindByTrackingNumber(ctx, trackingNumber)
	if err != nil {
		return nil, wrapComplaintErr(err)
	}
	out := &PublicStatus{
		TrackingNumber: c.TrackingNumber,
		Status:         c.Status,
		InfoRequested:  c.InfoRequested,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
	if e, err := s.entities.FindByID(ctx, c.EntityID); err == nil {
		out.EntityName = e.Name
	}
	return out, nil
}

// ListForCitizen lists the actor's own complaints, newest first.
func (s *Service) ListForCitizen(ctx context.Context, actor models.Actor, page id.PageRequest) (id.Page[*models.Complaint], error) {
	if !actor.IsCitizen() {
		return id.Page[*models.Complaint]{}, dErrors.New(dErrors.CodeForbidden, "only citizens have their own complaints")
	}
	citizenID := actor.ID
	return s.list(ctx, store.Filter{CitizenID: &citizenID}, page)
}

// ListForEntity lists the complaints of the employee's entity, optionally by status.
func (s *Service) ListForEntity(ctx context.Context, actor models.Actor, status *models.Status, page id.PageRequest) (id.Page[*models.Complaint], error) {
	entityID, err := employeeEntity(actor)
	if err != nil {
		return id.Page[*models.Complaint]{}, err
	}
	return s.list(ctx, store.Filter{EntityID: &entityID, Status: status}, page)
}

// ListAssigned lists complaints assigned to the employee.
func (s *Service) ListAssigned(ctx context.Context, actor models.Actor, page id.PageRequest) (id.Page[*models.Complaint], error) {
	entityID, err := employeeEntity(actor)
	if err != nil {
		return id.Page[*models.Complaint]{}, err
	}
	assignee := actor.ID
	return s.list(ctx, store.Filter{EntityID: &entityID, AssignedTo: &assignee}, page)
}

func (s *Service) ListAll(ctx context.Context, status *models.Status, page id.PageRequest) (id.Page[*models.Complaint], error) {
	return s.list(ctx, store.Filter{Status: status}, page)
}

func (s *Service) ListForCitizenByAdmin(ctx context.Context, citizenID id.UserID, page id.PageRequest) (id.Page[*models.Complaint], error) {
	return s.list(ctx, store.Filter{CitizenID: &citizenID}, page)
}

// CountByCitizen serves the admin citizen directory.
func (s *Service) CountByCitizen(ctx context.Context, citizenIDs []id.UserID) (map[id.UserID]int, error) {
	counts, err := s.complaints.CountByCitizen(ctx, citizenIDs)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count complaints")
	}
	return counts, nil
}

func (s *Service) list(ctx context.Context, filter store.Filter, page id.PageRequest) (id.Page[*models.Complaint], error) {
	out, err := s.complaints.List(ctx, filter, page)
	if err != nil {
		return id.Page[*models.Complaint]{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list complaints")
	}
	return out, nil
}

func employeeEntity(actor models.Actor) (id.EntityID, error) {
	if !actor.IsEmployee() || actor.EntityID == nil {
		return id.EntityID{}, dErrors.New(dErrors.CodeForbidden, "only employees of an entity can list its complaints")
	}
	return *actor.EntityID, nil
}
