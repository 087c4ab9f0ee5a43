package accounts

import "strings"

// Policy decides the role and approval state of a newly created account
type Policy struct {
	OrgDomain   string   // e.g. "uni.example.edu"; subdomains do not match
	AdminEmails []string // addresses that are provisioned as administrators
}

// Classify derives (role, approved) from an e-mail address. It has no side effects.
func (p Policy) Classify(email string) (Role, bool) {
	email = NormaliseEmail(email)
	for _, admin := range p.AdminEmails {
		if NormaliseEmail(admin) == email && email != "" {
			return RoleAdministrator, true
		}
	}

	at := strings.LastIndex(email, "@")
	if at < 0 || p.OrgDomain == "" {
		return RoleGuest, false
	}
	if email[at+1:] == strings.ToLower(strings.TrimSpace(p.OrgDomain)) {
		return RoleStaff, true
	}
	return RoleGuest, false
}
