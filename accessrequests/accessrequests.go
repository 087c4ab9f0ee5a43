package accessrequests

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("access request not found")
	ErrInvalidTransition = errors.New("access request is not pending")
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusDenied:
		return true
	}
	return false
}

// Capability is one item of the fixed vocabulary a requester can ask for
type Capability string

const (
	CapabilityDashboard           Capability = "dashboard"
	CapabilityReportsProjects     Capability = "reports.projects"
	CapabilityReportsPublications Capability = "reports.publications"
	CapabilityReportsFunding      Capability = "reports.funding"
	CapabilityReportsTheses       Capability = "reports.theses"
	CapabilityAdminRequests       Capability = "admin.requests"
)

var Capabilities = []Capability{
	CapabilityDashboard,
	CapabilityReportsProjects,
	CapabilityReportsPublications,
	CapabilityReportsFunding,
	CapabilityReportsTheses,
	CapabilityAdminRequests,
}

func (c Capability) Valid() bool {
	for _, known := range Capabilities {
		if c == known {
			return true
		}
	}
	return false
}

// Duration is how long the requester expects to need access
type Duration string

const (
	Duration1Month     Duration = "1m"
	Duration3Months    Duration = "3m"
	Duration6Months    Duration = "6m"
	Duration12Months   Duration = "12m"
	DurationIndefinite Duration = "indefinite"
)

func (d Duration) Valid() bool {
	switch d {
	case Duration1Month, Duration3Months, Duration6Months, Duration12Months, DurationIndefinite:
		return true
	}
	return false
}

type AccessRequest struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	Email            string       `json:"email"`
	OrgUnit          string       `json:"org_unit,omitempty"`
	Position         string       `json:"position,omitempty"`
	ExternalEmployee bool         `json:"external_employee"`
	Capabilities     []Capability `json:"capabilities"`
	Justification    string       `json:"justification"`
	Duration         Duration     `json:"duration"`
	Status           Status       `json:"status"`
	SubmittedAt      time.Time    `json:"submitted_at"`
	DecidedAt        *time.Time   `json:"decided_at,omitempty"`
	DecidedBy        *string      `json:"decided_by,omitempty"`
	DecisionNote     string       `json:"decision_note,omitempty"`
}

type ListResponse struct {
	Requests []*AccessRequest `json:"requests"`
	Total    int              `json:"total"`
	Offset   int              `json:"offset"`
	Limit    int              `json:"limit"`
}

// Decision is the one-way move out of pending
type Decision struct {
	To        Status
	DecidedBy string
	Note      string
	At        time.Time
}

type Repo interface {
	Create(ctx context.Context, request *AccessRequest) error
	Get(ctx context.Context, id string) (*AccessRequest, error)
	// List returns requests newest first. An empty status lists every request.
	List(ctx context.Context, status Status, offset, limit int) (ListResponse, error)
	// Decide applies the decision only while the request is pending. It returns ErrNotFound for an
	// unknown id and ErrInvalidTransition when the request was already decided.
	Decide(ctx context.Context, id string, decision Decision) error
}
