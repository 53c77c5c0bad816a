package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"grievance/internal/complaint/models"
	id "grievance/pkg/domain"
	"grievance/pkg/platform/sentinel"
)

type InMemory struct {
	mu         sync.RWMutex
	complaints map[string]*models.Complaint
}

// NewInMemory constructs an in-memory complaint store.
func NewInMemory() *InMemory {
	return &InMemory{complaints: make(map[string]*models.Complaint)}
}

func clone(c *models.Complaint) *models.Complaint {
	cp := *c
	cp.Attachments = slices.Clone(c.Attachments)
	return &cp
}

func (s *InMemory) Create(_ context.Context, c *models.Complaint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.complaints[c.TrackingNumber]; ok {
		return fmt.Errorf("complaint %s: %w", c.TrackingNumber, sentinel.ErrAlreadyUsed)
	}
	s.complaints[c.TrackingNumber] = clone(c)
	return nil
}

func (s *InMemory) FindByTrackingNumber(_ context.Context, trackingNumber string) (*models.Complaint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.complaints[trackingNumber]
	if !ok {
		return nil, fmt.Errorf("complaint %s: %w", trackingNumber, sentinel.ErrNotFound)
	}
	return clone(c), nil
}

func (f Filter) matches(c *models.Complaint) bool {
	if f.CitizenID != nil && c.CitizenID != *f.CitizenID {
		return false
	}
	if f.EntityID != nil && c.EntityID != *f.EntityID {
		return false
	}
	if f.AssignedTo != nil && !c.IsAssignedTo(*f.AssignedTo) {
		return false
	}
	if f.Status != nil && c.Status != *f.Status {
		return false
	}
	return true
}

// List filters and sorts newest first.
func (s *InMemory) List(_ context.Context, filter Filter, page id.PageRequest) (id.Page[*models.Complaint], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Complaint
	for _, c := range s.complaints {
		if filter.matches(c) {
			out = append(out, clone(c))
		}
	}
	slices.SortFunc(out, func(a, b *models.Complaint) int {
		if cmp := b.CreatedAt.Compare(a.CreatedAt); cmp != 0 {
			return cmp
		}
		return strings.Compare(b.TrackingNumber, a.TrackingNumber)
	})
	return id.Paginate(out, page), nil
}

// Execute applies mutate to a copy and saves it when validate passes.
func (s *InMemory) Execute(_ context.Context, trackingNumber string, validate func(*models.Complaint) error, mutate func(*models.Complaint)) (*models.Complaint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.complaints[trackingNumber]
	if !ok {
		return nil, fmt.Errorf("complaint %s: %w", trackingNumber, sentinel.ErrNotFound)
	}
	working := clone(c)
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	s.complaints[trackingNumber] = working
	return clone(working), nil
}

func (s *InMemory) findByIDLocked(complaintID id.ComplaintID) (*models.Complaint, bool) {
	for _, c := range s.complaints {
		if c.ID == complaintID {
			return c, true
		}
	}
	return nil, false
}

func (s *InMemory) AddAttachments(_ context.Context, complaintID id.ComplaintID, attachments []models.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.findByIDLocked(complaintID)
	if !ok {
		return fmt.Errorf("complaint %s: %w", complaintID, sentinel.ErrNotFound)
	}
	c.Attachments = append(c.Attachments, attachments...)
	return nil
}

func (s *InMemory) DeleteAttachment(_ context.Context, complaintID id.ComplaintID, attachmentID id.AttachmentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.findByIDLocked(complaintID)
	if !ok {
		return fmt.Errorf("complaint %s: %w", complaintID, sentinel.ErrNotFound)
	}
	i := slices.IndexFunc(c.Attachments, func(a models.Attachment) bool { return a.ID == attachmentID })
	if i < 0 {
		return fmt.Errorf("attachment %s: %w", attachmentID, sentinel.ErrNotFound)
	}
	c.Attachments = slices.Delete(c.Attachments, i, i+1)
	return nil
}

func (s *InMemory) CountByEntity(_ context.Context, entityIDs []id.EntityID) (map[id.EntityID]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[id.EntityID]int, len(entityIDs))
	for _, c := range s.complaints {
		if slices.Contains(entityIDs, c.EntityID) {
			out[c.EntityID]++
		}
	}
	return out, nil
}

func (s *InMemory) CountByCitizen(_ context.Context, citizenIDs []id.UserID) (map[id.UserID]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[id.UserID]int, len(citizenIDs))
	for _, c := range s.complaints {
		if slices.Contains(citizenIDs, c.CitizenID) {
			out[c.CitizenID]++
		}
	}
	return out, nil
}

func (s *InMemory) ListLockExpired(_ context.Context, now time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for tn, c := range s.complaints {
		if c.LockExpired(now) {
			out = append(out, tn)
		}
	}
	slices.Sort(out)
	return out, nil
}
