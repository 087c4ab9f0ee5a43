package sqlstore_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/research-portal/accessrequests"
	"github.com/jrsteele09/research-portal/accounts"
	"github.com/jrsteele09/research-portal/audit"
	"github.com/jrsteele09/research-portal/sessions"
	"github.com/jrsteele09/research-portal/store/sqlstore"
	"github.com/stretchr/testify/require"
)

type testFixture struct {
	db  *sqlstore.DB
	ctx context.Context
	now time.Time
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	ctx := context.Background()
	db, err := sqlstore.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "data", "portal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	applied, err := db.Migrate(ctx)
	require.NoError(t, err)
	require.Len(t, applied, 4)

	return &testFixture{
		db:  db,
		ctx: ctx,
		now: time.Date(2024, 3, 4, 10, 30, 0, 123456789, time.UTC),
	}
}

func (f *testFixture) createAccount(t *testing.T, id, email, username string, active, approved bool) *accounts.Account {
	t.Helper()
	a := &accounts.Account{
		ID:          id,
		Email:       email,
		Username:    username,
		DisplayName: "Name " + id,
		Role:        accounts.RoleStaff,
		Active:      active,
		Approved:    approved,
		CreatedAt:   f.now,
	}
	require.NoError(t, f.db.Accounts().Create(f.ctx, a))
	return a
}

func TestMigrateIsIdempotent(t *testing.T) {
	f := setupTestFixture(t)

	applied, err := f.db.Migrate(f.ctx)
	require.NoError(t, err)
	require.Empty(t, applied)
	require.NoError(t, f.db.Ping(f.ctx))
	require.Equal(t, sqlstore.SQLite, f.db.Dialect())
}

func TestAccountStore(t *testing.T) {
	f := setupTestFixture(t)
	store := f.db.Accounts()

	created := f.createAccount(t, "acc-1", "Alice@Org.com", "Alice", true, true)
	require.Equal(t, "alice@org.com", created.Email)

	byID, err := store.GetByID(f.ctx, "acc-1")
	require.NoError(t, err)
	require.Equal(t, "alice", byID.Username)
	require.Equal(t, accounts.RoleStaff, byID.Role)
	require.True(t, byID.Active)
	require.True(t, byID.Approved)
	require.False(t, byID.External)
	require.True(t, f.now.Equal(byID.CreatedAt))
	require.Nil(t, byID.LastLoginAt)

	byEmail, err := store.GetByEmail(f.ctx, " ALICE@org.com ")
	require.NoError(t, err)
	require.Equal(t, "acc-1", byEmail.ID)

	for _, identifier := range []string{"alice", "ALICE", "alice@org.com"} {
		a, err := store.GetByUsernameOrEmail(f.ctx, identifier)
		require.NoError(t, err, identifier)
		require.Equal(t, "acc-1", a.ID)
	}

	_, err = store.GetByID(f.ctx, "missing")
	require.ErrorIs(t, err, accounts.ErrNotFound)
	_, err = store.GetByUsernameOrEmail(f.ctx, "nobody")
	require.ErrorIs(t, err, accounts.ErrNotFound)
}

func TestAccountStoreRejectsDuplicates(t *testing.T) {
	f := setupTestFixture(t)
	f.createAccount(t, "acc-1", "alice@org.com", "alice", true, true)

	err := f.db.Accounts().Create(f.ctx, &accounts.Account{
		ID: "acc-2", Email: "ALICE@org.com", Username: "other", Role: accounts.RoleStaff, CreatedAt: f.now,
	})
	require.ErrorIs(t, err, accounts.ErrDuplicate)

	err = f.db.Accounts().Create(f.ctx, &accounts.Account{
		ID: "acc-3", Email: "other@org.com", Username: "alice", Role: accounts.RoleStaff, CreatedAt: f.now,
	})
	require.ErrorIs(t, err, accounts.ErrDuplicate)
}

func TestAccountStoreUpdates(t *testing.T) {
	f := setupTestFixture(t)
	store := f.db.Accounts()
	f.createAccount(t, "acc-1", "alice@org.com", "alice", true, false)

	loginAt := f.now.Add(time.Hour)
	require.NoError(t, store.TouchLastLogin(f.ctx, "acc-1", loginAt))
	require.NoError(t, store.SetPasswordHash(f.ctx, "acc-1", "$2a$12$hash"))
	require.NoError(t, store.SetActive(f.ctx, "acc-1", false))
	require.NoError(t, store.SetApproved(f.ctx, "acc-1", true))
	require.NoError(t, store.SetRole(f.ctx, "acc-1", accounts.RoleAdministrator))
	require.NoError(t, store.UpdateProfile(f.ctx, "acc-1", accounts.Profile{
		DisplayName: "Alice Smith", External: true, AvatarURL: "https://example.com/a.png",
	}))

	a, err := store.GetByID(f.ctx, "acc-1")
	require.NoError(t, err)
	require.NotNil(t, a.LastLoginAt)
	require.True(t, loginAt.Equal(*a.LastLoginAt))
	require.Equal(t, "$2a$12$hash", a.PasswordHash)
	require.False(t, a.Active)
	require.True(t, a.Approved)
	require.Equal(t, accounts.RoleAdministrator, a.Role)
	require.Equal(t, "Alice Smith", a.DisplayName)
	require.True(t, a.External)
	require.Equal(t, "https://example.com/a.png", a.AvatarURL)

	require.ErrorIs(t, store.SetActive(f.ctx, "missing", true), accounts.ErrNotFound)
	require.ErrorIs(t, store.SetRole(f.ctx, "acc-1", accounts.Role("owner")), accounts.ErrInvalidRole)
}

func TestAccountStoreList(t *testing.T) {
	f := setupTestFixture(t)
	store := f.db.Accounts()

	for i, name := range []string{"carol", "alice", "bob"} {
		require.NoError(t, store.Create(f.ctx, &accounts.Account{
			ID:        "acc-" + name,
			Email:     name + "@org.com",
			Username:  name,
			Role:      accounts.RoleStaff,
			CreatedAt: f.now.Add(time.Duration(i) * time.Minute),
		}))
	}

	page, err := store.List(f.ctx, 1, 1)
	require.NoError(t, err)
	require.Equal(t, 3, page.Total)
	require.Len(t, page.Accounts, 1)
	require.Equal(t, "alice", page.Accounts[0].Username)

	all, err := store.List(f.ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, all.Accounts, 3)
	require.Equal(t, "carol", all.Accounts[0].Username)
	require.Equal(t, "bob", all.Accounts[2].Username)
}

func TestSessionStore(t *testing.T) {
	f := setupTestFixture(t)
	store := f.db.Sessions()
	f.createAccount(t, "acc-1", "alice@org.com", "alice", true, true)

	session := &sessions.Session{
		TokenHash: sessions.HashToken("token-1"),
		AccountID: "acc-1",
		Channel:   sessions.ChannelLocalRemember,
		CreatedAt: f.now,
		ExpiresAt: f.now.Add(30 * 24 * time.Hour),
		Origin:    "192.0.2.10",
	}
	require.NoError(t, store.Create(f.ctx, session))

	got, err := store.Get(f.ctx, session.TokenHash)
	require.NoError(t, err)
	require.Equal(t, "acc-1", got.AccountID)
	require.Equal(t, sessions.ChannelLocalRemember, got.Channel)
	require.True(t, session.ExpiresAt.Equal(got.ExpiresAt))
	require.Equal(t, "192.0.2.10", got.Origin)

	n, err := store.CountForAccount(f.ctx, "acc-1")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.NoError(t, store.Delete(f.ctx, session.TokenHash))
	require.NoError(t, store.Delete(f.ctx, session.TokenHash))
	_, err = store.Get(f.ctx, session.TokenHash)
	require.ErrorIs(t, err, sessions.ErrNotFound)
}

func TestSessionStoreRefusesIneligibleAccounts(t *testing.T) {
	f := setupTestFixture(t)
	store := f.db.Sessions()
	f.createAccount(t, "inactive", "a@org.com", "a", false, true)
	f.createAccount(t, "pending", "b@org.com", "b", true, false)

	for _, accountID := range []string{"inactive", "pending", "missing"} {
		err := store.Create(f.ctx, &sessions.Session{
			TokenHash: sessions.HashToken(accountID),
			AccountID: accountID,
			Channel:   sessions.ChannelLocal,
			CreatedAt: f.now,
			ExpiresAt: f.now.Add(time.Hour),
		})
		require.ErrorIs(t, err, sessions.ErrAccountUnavailable, accountID)
	}
}

func TestSessionStoreBulkDeletes(t *testing.T) {
	f := setupTestFixture(t)
	store := f.db.Sessions()
	f.createAccount(t, "acc-1", "alice@org.com", "alice", true, true)
	f.createAccount(t, "acc-2", "bob@org.com", "bob", true, true)

	issue := func(token, accountID string, ttl time.Duration) {
		require.NoError(t, store.Create(f.ctx, &sessions.Session{
			TokenHash: sessions.HashToken(token),
			AccountID: accountID,
			Channel:   sessions.ChannelLocal,
			CreatedAt: f.now,
			ExpiresAt: f.now.Add(ttl),
		}))
	}
	issue("a1", "acc-1", time.Hour)
	issue("a2", "acc-1", 8*time.Hour)
	issue("b1", "acc-2", time.Hour)
	issue("b2", "acc-2", 8*time.Hour)

	purged, err := store.DeleteExpired(f.ctx, f.now.Add(time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 2, purged)

	revoked, err := store.DeleteForAccount(f.ctx, "acc-1")
	require.NoError(t, err)
	require.EqualValues(t, 1, revoked)

	n, err := store.CountForAccount(f.ctx, "acc-2")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestAuditStore(t *testing.T) {
	f := setupTestFixture(t)
	store := f.db.Audit()
	f.createAccount(t, "acc-1", "alice@org.com", "alice", true, true)

	accountID := "acc-1"
	require.NoError(t, store.Append(f.ctx, &audit.Entry{
		ID: "01HQ0000000000000000000001", Timestamp: f.now, AccountID: &accountID,
		Action: audit.ActionLoginSuccess, Resource: "session", Detail: "channel=local", Origin: "192.0.2.1",
	}))
	require.NoError(t, store.Append(f.ctx, &audit.Entry{
		ID: "01HQ0000000000000000000002", Timestamp: f.now.Add(time.Second),
		Action: audit.ActionLoginFailure, Resource: "session", Detail: "reason=invalid_credentials",
	}))

	resp, err := store.List(f.ctx, 0, 10)
	require.NoError(t, err)
	require.Equal(t, 2, resp.Total)
	require.Len(t, resp.Entries, 2)

	newest := resp.Entries[0]
	require.Equal(t, audit.ActionLoginFailure, newest.Action)
	require.Nil(t, newest.AccountID)
	require.Empty(t, newest.AccountName)

	oldest := resp.Entries[1]
	require.NotNil(t, oldest.AccountID)
	require.Equal(t, "acc-1", *oldest.AccountID)
	require.Equal(t, "Name acc-1", oldest.AccountName)
	require.Equal(t, "192.0.2.1", oldest.Origin)
	require.True(t, f.now.Equal(oldest.Timestamp))
}

func newAccessRequest(id string, submittedAt time.Time) *accessrequests.AccessRequest {
	return &accessrequests.AccessRequest{
		ID:               id,
		Name:             "Erin Visitor",
		Email:            "erin@partner.org",
		OrgUnit:          "Partner Institute",
		Position:         "Research Fellow",
		ExternalEmployee: true,
		Capabilities: []accessrequests.Capability{
			accessrequests.CapabilityDashboard,
			accessrequests.CapabilityReportsFunding,
		},
		Justification: "Joint grant reporting",
		Duration:      accessrequests.Duration6Months,
		Status:        accessrequests.StatusPending,
		SubmittedAt:   submittedAt,
	}
}

func TestAccessRequestStore(t *testing.T) {
	f := setupTestFixture(t)
	store := f.db.AccessRequests()

	require.NoError(t, store.Create(f.ctx, newAccessRequest("req-1", f.now)))
	require.NoError(t, store.Create(f.ctx, newAccessRequest("req-2", f.now.Add(time.Minute))))

	got, err := store.Get(f.ctx, "req-1")
	require.NoError(t, err)
	require.Equal(t, "Research Fellow", got.Position)
	require.True(t, got.ExternalEmployee)
	require.Equal(t, []accessrequests.Capability{
		accessrequests.CapabilityDashboard,
		accessrequests.CapabilityReportsFunding,
	}, got.Capabilities)
	require.Equal(t, accessrequests.StatusPending, got.Status)
	require.Nil(t, got.DecidedAt)
	require.Nil(t, got.DecidedBy)

	decidedAt := f.now.Add(time.Hour)
	require.NoError(t, store.Decide(f.ctx, "req-1", accessrequests.Decision{
		To: accessrequests.StatusApproved, DecidedBy: "admin-1", Note: "ok", At: decidedAt,
	}))

	got, err = store.Get(f.ctx, "req-1")
	require.NoError(t, err)
	require.Equal(t, accessrequests.StatusApproved, got.Status)
	require.NotNil(t, got.DecidedAt)
	require.True(t, decidedAt.Equal(*got.DecidedAt))
	require.Equal(t, "admin-1", *got.DecidedBy)
	require.Equal(t, "ok", got.DecisionNote)

	err = store.Decide(f.ctx, "req-1", accessrequests.Decision{To: accessrequests.StatusDenied, DecidedBy: "admin-2", At: decidedAt})
	require.ErrorIs(t, err, accessrequests.ErrInvalidTransition)
	err = store.Decide(f.ctx, "missing", accessrequests.Decision{To: accessrequests.StatusDenied, DecidedBy: "admin-2", At: decidedAt})
	require.ErrorIs(t, err, accessrequests.ErrNotFound)
	_, err = store.Get(f.ctx, "missing")
	require.ErrorIs(t, err, accessrequests.ErrNotFound)

	pending, err := store.List(f.ctx, accessrequests.StatusPending, 0, 10)
	require.NoError(t, err)
	require.Equal(t, 1, pending.Total)
	require.Equal(t, "req-2", pending.Requests[0].ID)

	all, err := store.List(f.ctx, "", 0, 10)
	require.NoError(t, err)
	require.Equal(t, 2, all.Total)
	require.Equal(t, "req-2", all.Requests[0].ID)
	require.Equal(t, "req-1", all.Requests[1].ID)
}

func TestAccessRequestStoreConcurrentDecisions(t *testing.T) {
	f := setupTestFixture(t)
	store := f.db.AccessRequests()
	require.NoError(t, store.Create(f.ctx, newAccessRequest("req-1", f.now)))

	const deciders = 8
	results := make(chan error, deciders)
	var wg sync.WaitGroup
	for i := 0; i < deciders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			to := accessrequests.StatusApproved
			if i%2 == 1 {
				to = accessrequests.StatusDenied
			}
			results <- store.Decide(f.ctx, "req-1", accessrequests.Decision{To: to, DecidedBy: "admin", At: f.now})
		}(i)
	}
	wg.Wait()
	close(results)

	won := 0
	for err := range results {
		if err == nil {
			won++
			continue
		}
		require.ErrorIs(t, err, accessrequests.ErrInvalidTransition)
	}
	require.Equal(t, 1, won)
}
