package accessrequests

import (
	"fmt"
	"strings"

	"github.com/jrsteele09/research-portal/accounts"
	"github.com/jrsteele09/research-portal/internal/errors"
)

const (
	maxNameLen          = 128
	maxFieldLen         = 256
	maxJustificationLen = 2000
)

// SubmitRequest is the access request form
type SubmitRequest struct {
	Name             string       `json:"name"`
	Email            string       `json:"email"`
	OrgUnit          string       `json:"org_unit"`
	Position         string       `json:"position"`
	ExternalEmployee bool         `json:"external_employee"`
	Capabilities     []Capability `json:"capabilities"`
	Justification    string       `json:"justification"`
	Duration         Duration     `json:"duration"`
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errors.ErrInvalidInput, fmt.Sprintf(format, args...))
}

// normalise trims the free-text fields, lower-cases the e-mail and de-duplicates capabilities
func (r SubmitRequest) normalise() SubmitRequest {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = accounts.NormaliseEmail(r.Email)
	r.OrgUnit = strings.TrimSpace(r.OrgUnit)
	r.Position = strings.TrimSpace(r.Position)
	r.Justification = strings.TrimSpace(r.Justification)

	seen := make(map[Capability]bool, len(r.Capabilities))
	caps := make([]Capability, 0, len(r.Capabilities))
	for _, c := range r.Capabilities {
		c = Capability(strings.TrimSpace(string(c)))
		if seen[c] {
			continue
		}
		seen[c] = true
		caps = append(caps, c)
	}
	r.Capabilities = caps
	return r
}

func (r SubmitRequest) validate() error {
	if r.Name == "" {
		return invalid("name is required")
	}
	if len(r.Name) > maxNameLen {
		return invalid("name must be at most %d characters", maxNameLen)
	}
	if err := accounts.ValidateEmail(r.Email); err != nil {
		return invalid("%v", err)
	}
	if len(r.OrgUnit) > maxFieldLen || len(r.Position) > maxFieldLen {
		return invalid("organisational unit and position must be at most %d characters", maxFieldLen)
	}
	if len(r.Capabilities) == 0 {
		return invalid("at least one capability must be requested")
	}
	for _, c := range r.Capabilities {
		if !c.Valid() {
			return invalid("unknown capability %q", c)
		}
	}
	if r.Justification == "" {
		return invalid("justification is required")
	}
	if len(r.Justification) > maxJustificationLen {
		return invalid("justification must be at most %d characters", maxJustificationLen)
	}
	if !r.Duration.Valid() {
		return invalid("unknown duration %q", r.Duration)
	}
	return nil
}
