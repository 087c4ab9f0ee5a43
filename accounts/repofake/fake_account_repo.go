package fakeaccountrepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/research-portal/accounts"
)

var _ accounts.Repo = (*FakeAccountRepo)(nil)

// FakeAccountRepo keeps accounts in memory. Every read returns a copy so callers cannot mutate
// stored state behind the repo's back.
type FakeAccountRepo struct {
	accounts  map[string]*accounts.Account
	emailIds  map[string]string // email to account id
	usernames map[string]string // username to account id
	lock      sync.RWMutex
}

func NewFakeAccountRepo() *FakeAccountRepo {
	return &FakeAccountRepo{
		accounts:  make(map[string]*accounts.Account),
		emailIds:  make(map[string]string),
		usernames: make(map[string]string),
	}
}

func (ar *FakeAccountRepo) Create(_ context.Context, account *accounts.Account) error {
	ar.lock.Lock()
	defer ar.lock.Unlock()

	email := accounts.NormaliseEmail(account.Email)
	username := accounts.NormaliseUsername(account.Username)
	if _, ok := ar.emailIds[email]; ok {
		return accounts.ErrDuplicate
	}
	if _, ok := ar.usernames[username]; ok {
		return accounts.ErrDuplicate
	}

	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if _, ok := ar.accounts[account.ID]; ok {
		return accounts.ErrDuplicate
	}
	account.Email = email
	account.Username = username

	stored := *account
	ar.accounts[account.ID] = &stored
	ar.emailIds[email] = account.ID
	ar.usernames[username] = account.ID
	return nil
}

func (ar *FakeAccountRepo) GetByID(_ context.Context, id string) (*accounts.Account, error) {
	ar.lock.RLock()
	defer ar.lock.RUnlock()
	return ar.copyOf(id)
}

func (ar *FakeAccountRepo) GetByEmail(_ context.Context, email string) (*accounts.Account, error) {
	ar.lock.RLock()
	defer ar.lock.RUnlock()

	id, ok := ar.emailIds[accounts.NormaliseEmail(email)]
	if !ok {
		return nil, accounts.ErrNotFound
	}
	return ar.copyOf(id)
}

func (ar *FakeAccountRepo) GetByUsernameOrEmail(_ context.Context, identifier string) (*accounts.Account, error) {
	ar.lock.RLock()
	defer ar.lock.RUnlock()

	key := accounts.NormaliseEmail(identifier)
	if id, ok := ar.usernames[key]; ok {
		return ar.copyOf(id)
	}
	if id, ok := ar.emailIds[key]; ok {
		return ar.copyOf(id)
	}
	return nil, accounts.ErrNotFound
}

func (ar *FakeAccountRepo) UpdateProfile(_ context.Context, id string, profile accounts.Profile) error {
	return ar.update(id, func(a *accounts.Account) {
		a.DisplayName = profile.DisplayName
		a.External = profile.External
		a.AvatarURL = profile.AvatarURL
	})
}

func (ar *FakeAccountRepo) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	return ar.update(id, func(a *accounts.Account) {
		a.LastLoginAt = &at
	})
}

func (ar *FakeAccountRepo) SetPasswordHash(_ context.Context, id, hash string) error {
	return ar.update(id, func(a *accounts.Account) { a.PasswordHash = hash })
}

func (ar *FakeAccountRepo) SetActive(_ context.Context, id string, active bool) error {
	return ar.update(id, func(a *accounts.Account) { a.Active = active })
}

func (ar *FakeAccountRepo) SetApproved(_ context.Context, id string, approved bool) error {
	return ar.update(id, func(a *accounts.Account) { a.Approved = approved })
}

func (ar *FakeAccountRepo) SetRole(_ context.Context, id string, role accounts.Role) error {
	if !role.Valid() {
		return accounts.ErrInvalidRole
	}
	return ar.update(id, func(a *accounts.Account) { a.Role = role })
}

func (ar *FakeAccountRepo) List(_ context.Context, offset, limit int) (accounts.ListResponse, error) {
	ar.lock.RLock()
	defer ar.lock.RUnlock()

	accountList := make([]*accounts.Account, 0, len(ar.accounts))
	for _, v := range ar.accounts {
		c := *v
		accountList = append(accountList, &c)
	}

	sort.Slice(accountList, func(i, j int) bool {
		if accountList[i].CreatedAt.Equal(accountList[j].CreatedAt) {
			return accountList[i].Email < accountList[j].Email
		}
		return accountList[i].CreatedAt.Before(accountList[j].CreatedAt)
	})

	resp := accounts.ListResponse{Total: len(accountList), Offset: offset, Limit: limit}
	if offset >= len(accountList) {
		resp.Accounts = []*accounts.Account{}
		return resp, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(accountList) {
		end = len(accountList)
	}
	resp.Accounts = accountList[offset:end]
	return resp, nil
}

// IsEligible reports whether the account exists and is active and approved. The fake session
// repo uses it to emulate the conditional insert of the SQL store.
func (ar *FakeAccountRepo) IsEligible(id string) bool {
	ar.lock.RLock()
	defer ar.lock.RUnlock()

	a, ok := ar.accounts[id]
	return ok && a.CanHoldSession()
}

func (ar *FakeAccountRepo) update(id string, fn func(a *accounts.Account)) error {
	ar.lock.Lock()
	defer ar.lock.Unlock()

	a, ok := ar.accounts[id]
	if !ok {
		return accounts.ErrNotFound
	}
	fn(a)
	return nil
}

func (ar *FakeAccountRepo) copyOf(id string) (*accounts.Account, error) {
	a, ok := ar.accounts[id]
	if !ok {
		return nil, accounts.ErrNotFound
	}
	c := *a
	return &c, nil
}
