package handler

import (
	"strings"

	id "civicflow/pkg/domain"
	dErrors "civicflow/pkg/domain-errors"
)

const maxJustificationLength = 2000

// SubmitRequest is the HTTP request body for POST /admission/requests.
type SubmitRequest struct {
	UserEmail      string `json:"user_email"`
	Role           string `json:"role"`
	OrganizationID string `json:"organization_id"`
	Justification  string `json:"justification"`

	parsedRole  id.Role
	parsedOrgID id.OrganizationID
}

// Validate validates and parses the request. The justification-required rule
// for elevated roles belongs to the service; here we only check shape.
func (r *SubmitRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.UserEmail = strings.TrimSpace(r.UserEmail)
	if r.UserEmail == "" {
		return dErrors.New(dErrors.CodeValidation, "user_email is required")
	}

	r.Role = strings.TrimSpace(r.Role)
	if r.Role == "" {
		return dErrors.New(dErrors.CodeValidation, "role is required")
	}
	role, err := id.ParseRole(r.Role)
	if err != nil {
		return dErrors.Newf(dErrors.CodeValidation, "unknown role %q", r.Role)
	}
	r.parsedRole = role

	r.OrganizationID = strings.TrimSpace(r.OrganizationID)
	if r.OrganizationID != "" {
		orgID, err := id.ParseOrganizationID(r.OrganizationID)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "organization_id must be a valid UUID")
		}
		r.parsedOrgID = orgID
	}

	if len(r.Justification) > maxJustificationLength {
		return dErrors.Newf(dErrors.CodeValidation, "justification must be at most %d characters", maxJustificationLength)
	}
	return nil
}

// ParsedRole returns the validated role.
func (r *SubmitRequest) ParsedRole() id.Role {
	return r.parsedRole
}

// ParsedOrganizationID returns the validated organization ID; zero when the
// request carried none.
func (r *SubmitRequest) ParsedOrganizationID() id.OrganizationID {
	return r.parsedOrgID
}

// DecideRequest is the HTTP request body for
// POST /admission/requests/{id}/decision.
type DecideRequest struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason"`
}

// Validate checks the decision verb.
func (r *DecideRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	switch strings.TrimSpace(r.Decision) {
	case "approve", "reject":
		return nil
	}
	return dErrors.New(dErrors.CodeValidation, `decision must be "approve" or "reject"`)
}

// Approve reports whether the decision is an approval.
func (r *DecideRequest) Approve() bool {
	return strings.TrimSpace(r.Decision) == "approve"
}
