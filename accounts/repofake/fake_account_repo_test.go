package fakeaccountrepo_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/research-portal/accounts"
	fakeaccountrepo "github.com/jrsteele09/research-portal/accounts/repofake"
	"github.com/stretchr/testify/require"
)

func TestFakeAccountRepo_UniqueAndCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	repo := fakeaccountrepo.NewFakeAccountRepo()

	require.NoError(t, repo.Create(ctx, &accounts.Account{Email: "Alice@Org.com", Username: "Alice", CreatedAt: time.Now()}))
	require.ErrorIs(t, repo.Create(ctx, &accounts.Account{Email: "alice@org.com", Username: "other"}), accounts.ErrDuplicate)
	require.ErrorIs(t, repo.Create(ctx, &accounts.Account{Email: "other@org.com", Username: "ALICE"}), accounts.ErrDuplicate)

	byEmail, err := repo.GetByUsernameOrEmail(ctx, "ALICE@org.com")
	require.NoError(t, err)
	byName, err := repo.GetByUsernameOrEmail(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, byEmail.ID, byName.ID)

	_, err = repo.GetByID(ctx, "missing")
	require.ErrorIs(t, err, accounts.ErrNotFound)
}

func TestFakeAccountRepo_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := fakeaccountrepo.NewFakeAccountRepo()
	a := &accounts.Account{Email: "alice@org.com", Username: "alice", Active: true}
	require.NoError(t, repo.Create(ctx, a))

	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	got.Active = false

	again, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, again.Active)
}

func TestFakeAccountRepo_List(t *testing.T) {
	ctx := context.Background()
	repo := fakeaccountrepo.NewFakeAccountRepo()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"ann", "ben", "cat"} {
		require.NoError(t, repo.Create(ctx, &accounts.Account{
			Email: name + "@org.com", Username: name, CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	resp, err := repo.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Equal(t, 3, resp.Total)
	require.Len(t, resp.Accounts, 1)
	require.Equal(t, "ben", resp.Accounts[0].Username)

	resp, err = repo.List(ctx, 5, 10)
	require.NoError(t, err)
	require.Empty(t, resp.Accounts)
}
