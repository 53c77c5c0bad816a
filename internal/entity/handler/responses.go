package handler

import (
	"time"

	"grievance/internal/entity/models"
)

type EntityResponse struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Phone           string     `json:"phone"`
	Description     string     `json:"description"`
	Type            string     `json:"type"`
	IsActive        bool       `json:"is_active"`
	ComplaintsCount *int       `json:"complaints_count,omitempty"`
	EmployeesCount  *int       `json:"employees_count,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
}

// PublicEntityResponse omits contact and bookkeeping fields.
type PublicEntityResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

type EntityListResponse struct {
	Data  []EntityResponse `json:"data"`
	Total int              `json:"total"`
}

func fromEntity(e *models.Entity) EntityResponse {
	return EntityResponse{
		ID:          e.ID.String(),
		Name:        e.Name,
		Email:       e.Email,
		Phone:       e.Phone,
		Description: e.Description,
		Type:        string(e.Type),
		IsActive:    e.IsActive,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
		DeletedAt:   e.DeletedAt,
	}
}

func fromSummary(s models.Summary) EntityResponse {
	resp := fromEntity(s.Entity)
	complaints, employees := s.ComplaintsCount, s.EmployeesCount
	resp.ComplaintsCount = &complaints
	resp.EmployeesCount = &employees
	return resp
}

func toPublic(e *models.Entity) PublicEntityResponse {
	return PublicEntityResponse{
		ID:          e.ID.String(),
		Name:        e.Name,
		Description: e.Description,
		Type:        string(e.Type),
	}
}
