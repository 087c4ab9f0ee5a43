package accessrequests_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/research-portal/accessrequests"
	fakeaccessrequestrepo "github.com/jrsteele09/research-portal/accessrequests/repofake"
	"github.com/jrsteele09/research-portal/accounts"
	fakeaccountrepo "github.com/jrsteele09/research-portal/accounts/repofake"
	"github.com/jrsteele09/research-portal/audit"
	fakeauditrepo "github.com/jrsteele09/research-portal/audit/repofake"
	"github.com/jrsteele09/research-portal/internal/errors"
	"github.com/stretchr/testify/require"
)

var (
	admin = &accounts.PublicAccount{ID: "admin-1", Email: "head@org.com", Role: accounts.RoleAdministrator}
	staff = &accounts.PublicAccount{ID: "staff-1", Email: "alice@org.com", Role: accounts.RoleStaff}
)

type testFixture struct {
	requestRepo *fakeaccessrequestrepo.FakeAccessRequestRepo
	accountRepo *fakeaccountrepo.FakeAccountRepo
	auditRepo   *fakeauditrepo.FakeAuditRepo
	now         time.Time
	service     *accessrequests.Service
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{
		requestRepo: fakeaccessrequestrepo.NewFakeAccessRequestRepo(),
		accountRepo: fakeaccountrepo.NewFakeAccountRepo(),
		auditRepo:   fakeauditrepo.NewFakeAuditRepo(nil),
		now:         time.Date(2024, 2, 12, 14, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }

	service, err := accessrequests.NewService(
		f.requestRepo,
		f.accountRepo,
		audit.NewRecorder(f.auditRepo, audit.WithRecorderClock(clock)),
		accounts.Policy{OrgDomain: "org.com"},
		accessrequests.WithNowTime(clock),
	)
	require.NoError(t, err)
	f.service = service
	return f
}

func validSubmission() accessrequests.SubmitRequest {
	return accessrequests.SubmitRequest{
		Name:             "  Erin Visitor ",
		Email:            "Erin@Partner.org",
		OrgUnit:          "Partner Institute",
		Position:         "Research Fellow",
		ExternalEmployee: true,
		Capabilities: []accessrequests.Capability{
			accessrequests.CapabilityDashboard,
			accessrequests.CapabilityReportsFunding,
			accessrequests.CapabilityDashboard,
		},
		Justification: "Joint grant reporting",
		Duration:      accessrequests.Duration6Months,
	}
}

func (f *testFixture) submit(t *testing.T) *accessrequests.AccessRequest {
	t.Helper()
	request, err := f.service.Submit(context.Background(), validSubmission())
	require.NoError(t, err)
	return request
}

func TestSubmit(t *testing.T) {
	f := setupTestFixture(t)

	request := f.submit(t)
	require.NotEmpty(t, request.ID)
	require.Equal(t, accessrequests.StatusPending, request.Status)
	require.Equal(t, "Erin Visitor", request.Name)
	require.Equal(t, "erin@partner.org", request.Email)
	require.Equal(t, []accessrequests.Capability{
		accessrequests.CapabilityDashboard,
		accessrequests.CapabilityReportsFunding,
	}, request.Capabilities)
	require.Equal(t, f.now, request.SubmittedAt)
	require.Nil(t, request.DecidedAt)

	require.Equal(t, []string{audit.ActionAccessRequestSubmit}, f.auditRepo.Actions())
}

func TestSubmit_Validation(t *testing.T) {
	f := setupTestFixture(t)

	tests := []struct {
		name   string
		modify func(r *accessrequests.SubmitRequest)
	}{
		{"missing name", func(r *accessrequests.SubmitRequest) { r.Name = " " }},
		{"bad email", func(r *accessrequests.SubmitRequest) { r.Email = "erin" }},
		{"no capabilities", func(r *accessrequests.SubmitRequest) { r.Capabilities = nil }},
		{"unknown capability", func(r *accessrequests.SubmitRequest) {
			r.Capabilities = []accessrequests.Capability{"reports.salaries"}
		}},
		{"missing justification", func(r *accessrequests.SubmitRequest) { r.Justification = "" }},
		{"unknown duration", func(r *accessrequests.SubmitRequest) { r.Duration = "2y" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validSubmission()
			tt.modify(&req)
			_, err := f.service.Submit(context.Background(), req)
			require.ErrorIs(t, err, errors.ErrInvalidInput)
		})
	}
}

func TestApprove_ProvisionsNewExternalAccount(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	request := f.submit(t)

	f.now = f.now.Add(time.Hour)
	decided, err := f.service.Approve(ctx, admin, request.ID, "ok for grant period")
	require.NoError(t, err)
	require.Equal(t, accessrequests.StatusApproved, decided.Status)
	require.Equal(t, f.now, *decided.DecidedAt)
	require.Equal(t, admin.ID, *decided.DecidedBy)
	require.Equal(t, "ok for grant period", decided.DecisionNote)

	account, err := f.accountRepo.GetByEmail(ctx, "erin@partner.org")
	require.NoError(t, err)
	require.True(t, account.Approved)
	require.True(t, account.Active)
	require.True(t, account.External)
	require.False(t, account.HasPassword())
	require.Equal(t, accounts.RoleGuest, account.Role)
	require.Equal(t, "Erin Visitor", account.DisplayName)

	require.Equal(t, []string{
		audit.ActionAccessRequestSubmit,
		audit.ActionAccessRequestApprove,
		audit.ActionAccountRegister,
	}, f.auditRepo.Actions())
}

func TestApprove_ApprovesExistingAccount(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	require.NoError(t, f.accountRepo.Create(ctx, &accounts.Account{
		ID: "erin-1", Email: "erin@partner.org", Username: "erin@partner.org",
		Role: accounts.RoleGuest, Active: false, Approved: false, External: true,
	}))
	request := f.submit(t)

	_, err := f.service.Approve(ctx, admin, request.ID, "")
	require.NoError(t, err)

	account, err := f.accountRepo.GetByID(ctx, "erin-1")
	require.NoError(t, err)
	require.True(t, account.Approved)
	require.True(t, account.Active)
	require.Contains(t, f.auditRepo.Actions(), audit.ActionAccountApprove)
	require.Contains(t, f.auditRepo.Actions(), audit.ActionAccountActivate)
}

func TestDecisionsAreOneWay(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	request := f.submit(t)

	denied, err := f.service.Deny(ctx, admin, request.ID, "no sponsor")
	require.NoError(t, err)
	require.Equal(t, accessrequests.StatusDenied, denied.Status)

	_, err = f.service.Approve(ctx, admin, request.ID, "")
	require.ErrorIs(t, err, accessrequests.ErrInvalidTransition)
	_, err = f.service.Deny(ctx, admin, request.ID, "")
	require.ErrorIs(t, err, accessrequests.ErrInvalidTransition)

	_, err = f.accountRepo.GetByEmail(ctx, "erin@partner.org")
	require.ErrorIs(t, err, accounts.ErrNotFound, "denied requests provision nothing")

	_, err = f.service.Approve(ctx, admin, "missing", "")
	require.ErrorIs(t, err, accessrequests.ErrNotFound)
}

func TestConcurrentDecisionsOnlyOneWins(t *testing.T) {
	f := setupTestFixture(t)
	request := f.submit(t)

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = f.service.Approve(context.Background(), admin, request.ID, "")
			} else {
				_, err = f.service.Deny(context.Background(), admin, request.ID, "")
			}
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		require.ErrorIs(t, err, accessrequests.ErrInvalidTransition)
	}
	require.Equal(t, 1, wins)
}

func TestNonAdministratorsAreForbidden(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	request := f.submit(t)

	_, err := f.service.Approve(ctx, staff, request.ID, "")
	require.ErrorIs(t, err, errors.ErrForbidden)
	_, err = f.service.Deny(ctx, staff, request.ID, "")
	require.ErrorIs(t, err, errors.ErrForbidden)
	_, err = f.service.List(ctx, staff, "", 0, 10)
	require.ErrorIs(t, err, errors.ErrForbidden)
	_, err = f.service.Get(ctx, nil, request.ID)
	require.ErrorIs(t, err, errors.ErrForbidden)

	stored, err := f.service.Get(ctx, admin, request.ID)
	require.NoError(t, err)
	require.Equal(t, accessrequests.StatusPending, stored.Status)

	denied := 0
	for _, e := range f.auditRepo.Entries() {
		if e.Action == audit.ActionAuthzDenied {
			denied++
		}
	}
	require.Equal(t, 4, denied)
}

func TestList_FiltersByStatus(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	first := f.submit(t)
	f.now = f.now.Add(time.Minute)
	second := f.submit(t)
	_, err := f.service.Deny(ctx, admin, first.ID, "")
	require.NoError(t, err)

	pending, err := f.service.List(ctx, admin, accessrequests.StatusPending, 0, 10)
	require.NoError(t, err)
	require.Equal(t, 1, pending.Total)
	require.Equal(t, second.ID, pending.Requests[0].ID)

	all, err := f.service.List(ctx, admin, "", 0, 10)
	require.NoError(t, err)
	require.Equal(t, 2, all.Total)
	require.Equal(t, second.ID, all.Requests[0].ID, "newest first")

	_, err = f.service.List(ctx, admin, "archived", 0, 10)
	require.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestReprovision(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	request := f.submit(t)

	require.ErrorIs(t, f.service.Reprovision(ctx, admin, request.ID), accessrequests.ErrInvalidTransition)

	_, err := f.service.Approve(ctx, admin, request.ID, "")
	require.NoError(t, err)
	require.NoError(t, f.service.Reprovision(ctx, admin, request.ID))
}
