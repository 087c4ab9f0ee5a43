package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/research-portal/accessrequests"
	"github.com/jrsteele09/research-portal/accounts"
	"github.com/jrsteele09/research-portal/store/sqlstore"
	"github.com/stretchr/testify/require"
)

type testFixture struct {
	ctx    context.Context
	dbPath string
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	f := &testFixture{
		ctx:    context.Background(),
		dbPath: filepath.Join(t.TempDir(), "portal.db"),
	}
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("ENV", "TEST")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", f.dbPath)
	t.Setenv("BCRYPT_COST", "4")
	t.Setenv("ORG_DOMAIN", "org.com")
	t.Setenv("ADMIN_EMAILS", "")

	out := f.run(t, "", "migrate")
	require.Contains(t, out, "applied 001_accounts.sql")
	return f
}

func (f *testFixture) run(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	var stdout bytes.Buffer
	require.NoError(t, run(f.ctx, args, strings.NewReader(stdin), &stdout))
	return stdout.String()
}

func (f *testFixture) openDB(t *testing.T) *sqlstore.DB {
	t.Helper()
	db, err := sqlstore.Open(f.ctx, "sqlite", f.dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestUsage(t *testing.T) {
	var stdout bytes.Buffer
	require.NoError(t, run(context.Background(), nil, strings.NewReader(""), &stdout))
	require.Contains(t, stdout.String(), "create-admin")

	stdout.Reset()
	require.Error(t, run(context.Background(), []string{"drop-tables"}, strings.NewReader(""), &stdout))
}

func TestMigrateIsIdempotent(t *testing.T) {
	f := setupTestFixture(t)
	require.Contains(t, f.run(t, "", "migrate"), "schema is up to date")
}

func TestCreateAdmin(t *testing.T) {
	f := setupTestFixture(t)

	out := f.run(t, "Secret123!\n", "create-admin", "--email", "Head@Org.com", "--username", "head", "--display-name", "Head of Research")
	require.Contains(t, out, "created administrator head@org.com")

	account, err := f.openDB(t).Accounts().GetByEmail(f.ctx, "head@org.com")
	require.NoError(t, err)
	require.Equal(t, accounts.RoleAdministrator, account.Role)
	require.True(t, account.CanHoldSession())
	require.NotEqual(t, "Secret123!", account.PasswordHash)

	var stdout bytes.Buffer
	err = run(f.ctx, []string{"create-admin", "--email", "head@org.com", "--username", "head2"}, strings.NewReader("Secret123!\n"), &stdout)
	require.ErrorIs(t, err, accounts.ErrDuplicate)

	err = run(f.ctx, []string{"create-admin", "--email", "other@org.com", "--username", "other"}, strings.NewReader(""), &stdout)
	require.Error(t, err)

	err = run(f.ctx, []string{"create-admin", "--username", "other"}, strings.NewReader("Secret123!\n"), &stdout)
	require.Error(t, err)
}

func TestApproveRequestProvisionsAccount(t *testing.T) {
	f := setupTestFixture(t)
	f.run(t, "Secret123!\n", "create-admin", "--email", "head@org.com", "--username", "head")

	db := f.openDB(t)
	require.NoError(t, db.AccessRequests().Create(f.ctx, &accessrequests.AccessRequest{
		ID:            "req-1",
		Name:          "Erin Visitor",
		Email:         "erin@partner.org",
		Capabilities:  []accessrequests.Capability{accessrequests.CapabilityDashboard},
		Justification: "Joint grant reporting",
		Duration:      accessrequests.Duration3Months,
		Status:        accessrequests.StatusPending,
		SubmittedAt:   time.Now().UTC(),
	}))
	require.NoError(t, db.Close())

	var stdout bytes.Buffer
	err := run(f.ctx, []string{"approve-request", "--id", "req-1", "--as", "erin@partner.org"}, strings.NewReader(""), &stdout)
	require.Error(t, err)

	out := f.run(t, "", "approve-request", "--id", "req-1", "--as", "head@org.com", "--note", "welcome")
	require.Contains(t, out, "approved req-1 for erin@partner.org")

	db = f.openDB(t)
	account, err := db.Accounts().GetByEmail(f.ctx, "erin@partner.org")
	require.NoError(t, err)
	require.True(t, account.CanHoldSession())
	require.Equal(t, accounts.RoleGuest, account.Role)
	request, err := db.AccessRequests().Get(f.ctx, "req-1")
	require.NoError(t, err)
	require.Equal(t, accessrequests.StatusApproved, request.Status)
	require.Equal(t, "welcome", request.DecisionNote)
	require.NoError(t, db.Close())

	require.Contains(t, f.run(t, "", "reprovision", "--id", "req-1", "--as", "head@org.com"), "provisioned")

	err = run(f.ctx, []string{"deny-request", "--id", "req-1", "--as", "head@org.com"}, strings.NewReader(""), &stdout)
	require.ErrorIs(t, err, accessrequests.ErrInvalidTransition)
}

func TestPurgeSessions(t *testing.T) {
	f := setupTestFixture(t)
	require.Contains(t, f.run(t, "", "purge-sessions"), "purged 0 expired sessions")
}
