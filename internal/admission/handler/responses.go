package handler

import (
	"time"

	"civicflow/internal/admission/models"
)

// RequestResponse is the HTTP shape of a role request.
type RequestResponse struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	UserEmail      string     `json:"user_email"`
	Role           string     `json:"role"`
	OrganizationID string     `json:"organization_id,omitempty"`
	Justification  string     `json:"justification,omitempty"`
	Status         string     `json:"status"`
	Reason         string     `json:"reason,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	DecidedAt      *time.Time `json:"decided_at,omitempty"`
	DecidedBy      string     `json:"decided_by,omitempty"`
}

// ListResponse is the HTTP response for GET /admission/requests.
type ListResponse struct {
	Requests []*RequestResponse `json:"requests"`
}

// FromRequest converts a domain role request to its HTTP shape.
func FromRequest(request *models.RoleRequest) *RequestResponse {
	resp := &RequestResponse{
		ID:            request.ID.String(),
		UserID:        request.UserID.String(),
		UserEmail:     request.UserEmail,
		Role:          request.Role.String(),
		Justification: request.Justification,
		Status:        string(request.Status),
		Reason:        request.Reason,
		CreatedAt:     request.CreatedAt,
		DecidedAt:     request.DecidedAt,
		DecidedBy:     request.DecidedBy,
	}
	if !request.OrganizationID.IsNil() {
		resp.OrganizationID = request.OrganizationID.String()
	}
	return resp
}

// FromRequests converts a slice of role requests.
func FromRequests(requests []*models.RoleRequest) *ListResponse {
	out := make([]*RequestResponse, 0, len(requests))
	for _, request := range requests {
		out = append(out, FromRequest(request))
	}
	return &ListResponse{Requests: out}
}
