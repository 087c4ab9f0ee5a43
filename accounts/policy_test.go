package accounts_test

import (
	"testing"

	"github.com/jrsteele09/research-portal/accounts"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	policy := accounts.Policy{
		OrgDomain:   "org.com",
		AdminEmails: []string{"Head.Office@outside.com"},
	}

	tests := []struct {
		name         string
		email        string
		wantRole     accounts.Role
		wantApproved bool
	}{
		{name: "org domain", email: "alice@org.com", wantRole: accounts.RoleStaff, wantApproved: true},
		{name: "org domain mixed case", email: "Alice@ORG.com", wantRole: accounts.RoleStaff, wantApproved: true},
		{name: "outside domain", email: "bob@outside.com", wantRole: accounts.RoleGuest, wantApproved: false},
		{name: "subdomain does not match", email: "carol@mail.org.com", wantRole: accounts.RoleGuest, wantApproved: false},
		{name: "suffix trick does not match", email: "dave@evilorg.com", wantRole: accounts.RoleGuest, wantApproved: false},
		{name: "admin allow-list", email: "head.office@outside.com", wantRole: accounts.RoleAdministrator, wantApproved: true},
		{name: "no at sign", email: "org.com", wantRole: accounts.RoleGuest, wantApproved: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			role, approved := policy.Classify(tt.email)
			require.Equal(t, tt.wantRole, role)
			require.Equal(t, tt.wantApproved, approved)
		})
	}
}

func TestClassify_NoOrgDomainConfigured(t *testing.T) {
	role, approved := accounts.Policy{}.Classify("alice@org.com")
	require.Equal(t, accounts.RoleGuest, role)
	require.False(t, approved)
}

func TestParseRole(t *testing.T) {
	role, err := accounts.ParseRole("staff")
	require.NoError(t, err)
	require.Equal(t, accounts.RoleStaff, role)

	_, err = accounts.ParseRole("super_admin")
	require.ErrorIs(t, err, accounts.ErrInvalidRole)
}
