// Package service gives admins a read view over citizen accounts.
package service

import (
	"context"
	"errors"
	"strings"

	"grievance/internal/auth/models"
	"grievance/internal/auth/store/user"
	complaintmodels "grievance/internal/complaint/models"
	id "grievance/pkg/domain"
	dErrors "grievance/pkg/domain-errors"
	"grievance/pkg/platform/sentinel"
)

type UserStore interface {
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	List(ctx context.Context, filter user.Filter, page id.PageRequest) (id.Page[*models.User], error)
	Count(ctx context.Context, filter user.Filter) (int, error)
}

type Complaints interface {
	CountByCitizen(ctx context.Context, citizenIDs []id.UserID) (map[id.UserID]int, error)
	ListForCitizenByAdmin(ctx context.Context, citizenID id.UserID, page id.PageRequest) (id.Page[*complaintmodels.Complaint], error)
}

// Citizen is a citizen account with its complaint total.
type Citizen struct {
	User            *models.User
	ComplaintsCount int
}

// CitizenList is one page of citizens plus the unfiltered citizen total.
type CitizenList struct {
	Page          id.Page[Citizen]
	TotalCitizens int
}

type Service struct {
	users      UserStore
	complaints Complaints
}

func New(users UserStore, complaints Complaints) *Service {
	return &Service{users: users, complaints: complaints}
}

// List returns citizens matching search by name or email, with their complaint counts.
func (s *Service) List(ctx context.Context, search string, page id.PageRequest) (*CitizenList, error) {
	filter := user.Filter{Role: id.RoleCitizen, Search: strings.TrimSpace(search)}
	users, err := s.users.List(ctx, filter, page)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list citizens")
	}
	total, err := s.users.Count(ctx, user.Filter{Role: id.RoleCitizen})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count citizens")
	}

	ids := make([]id.UserID, 0, len(users.Items))
	for _, u := range users.Items {
		ids = append(ids, u.ID)
	}
	counts, err := s.complaints.CountByCitizen(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]Citizen, 0, len(users.Items))
	for _, u := range users.Items {
		items = append(items, Citizen{User: u, ComplaintsCount: counts[u.ID]})
	}
	return &CitizenList{
		Page:          id.Page[Citizen]{Items: items, Total: users.Total, Request: users.Request},
		TotalCitizens: total,
	}, nil
}

// Get returns one citizen. Employees and admins are reported as not found.
func (s *Service) Get(ctx context.Context, userID id.UserID) (*Citizen, error) {
	u, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, sentinel.ErrNotFound) || (err == nil && u.Role != id.RoleCitizen) {
		return nil, dErrors.New(dErrors.CodeNotFound, "citizen not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load citizen")
	}
	counts, err := s.complaints.CountByCitizen(ctx, []id.UserID{u.ID})
	if err != nil {
		return nil, err
	}
	return &Citizen{User: u, ComplaintsCount: counts[u.ID]}, nil
}

// Complaints lists the complaints filed by one citizen.
func (s *Service) Complaints(ctx context.Context, userID id.UserID, page id.PageRequest) (*Citizen, id.Page[*complaintmodels.Complaint], error) {
	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, id.Page[*complaintmodels.Complaint]{}, err
	}
	complaints, err := s.complaints.ListForCitizenByAdmin(ctx, userID, page)
	if err != nil {
		return nil, id.Page[*complaintmodels.Complaint]{}, err
	}
	return c, complaints, nil
}
