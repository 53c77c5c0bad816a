package handler

import (
	"time"

	authhandler "grievance/internal/auth/handler"
	"grievance/internal/employee/service"
)

type EntityRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type EmployeeResponse struct {
	authhandler.UserResponse
	Entity    *EntityRef `json:"entity,omitempty"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

func fromEmployee(e service.Employee) EmployeeResponse {
	resp := EmployeeResponse{
		UserResponse: authhandler.ToUserResponse(e.User),
		DeletedAt:    e.DeletedAt,
	}
	if e.Entity != nil {
		resp.Entity = &EntityRef{ID: e.Entity.ID.String(), Name: e.Entity.Name, Type: string(e.Entity.Type)}
	}
	return resp
}
