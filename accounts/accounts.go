package accounts

import (
	"time"
)

// Role is the portal-wide role of an account
type Role string

const (
	RoleAdministrator Role = "administrator" // Manages accounts, access requests and the audit log
	RoleStaff         Role = "staff"         // Member of the organisation's own domain
	RoleGuest         Role = "guest"         // Everyone else, admitted only after review
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleAdministrator, RoleStaff, RoleGuest:
		return true
	}
	return false
}

// ParseRole converts a stored or submitted role name into a Role
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", ErrInvalidRole
	}
	return r, nil
}

type Account struct {
	ID           string     `json:"id"`                      // Unique identifier for the account
	Email        string     `json:"email"`                   // Lower-cased, unique
	Username     string     `json:"username"`                // Lower-cased, unique
	DisplayName  string     `json:"display_name,omitempty"`  // Name shown in the portal
	OrgUnit      string     `json:"org_unit,omitempty"`      // Faculty, school or department (free text)
	Role         Role       `json:"role"`                    // Portal role
	PasswordHash string     `json:"-"`                       // Empty for accounts created through Google sign-in
	Active       bool       `json:"active"`                  // Deactivated accounts cannot hold sessions
	Approved     bool       `json:"approved"`                // Unapproved accounts cannot hold sessions
	External     bool       `json:"external"`                // Created or linked through external identity verification
	AvatarURL    string     `json:"avatar_url,omitempty"`    // Picture supplied by the identity provider
	CreatedAt    time.Time  `json:"created_at"`              // Registration time
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"` // Nil until the first successful login
}

// HasPassword reports whether the account can sign in with local credentials
func (a *Account) HasPassword() bool {
	return a.PasswordHash != ""
}

// CanHoldSession reports whether the account passes both the active and approval gates
func (a *Account) CanHoldSession() bool {
	return a.Active && a.Approved
}

// IsAdministrator returns true if the account has administrator privileges
func (a *Account) IsAdministrator() bool {
	return a.Role == RoleAdministrator
}

// Public returns the projection of the account that is safe to hand to callers
func (a *Account) Public() *PublicAccount {
	return &PublicAccount{
		ID:          a.ID,
		Email:       a.Email,
		DisplayName: a.DisplayName,
		Role:        a.Role,
	}
}

// PublicAccount is what session validation and login hand back. It never carries credentials.
type PublicAccount struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
}

// IsAdministrator returns true if the account has administrator privileges
func (p *PublicAccount) IsAdministrator() bool {
	return p != nil && p.Role == RoleAdministrator
}

// Profile holds the fields refreshed on every external login
type Profile struct {
	DisplayName string
	External    bool
	AvatarURL   string
}

type ListResponse struct {
	Accounts []*Account `json:"accounts"`
	Total    int        `json:"total"`
	Offset   int        `json:"offset"`
	Limit    int        `json:"limit"`
}
