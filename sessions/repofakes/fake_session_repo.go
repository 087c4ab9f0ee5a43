package fakesessionrepo

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/research-portal/sessions"
)

var _ sessions.Repo = (*FakeSessionRepo)(nil)

// AccountChecker answers whether an account may currently hold a session
type AccountChecker interface {
	IsEligible(accountID string) bool
}

type FakeSessionRepo struct {
	sessions map[string]*sessions.Session
	accounts AccountChecker
	lock     sync.RWMutex
}

func NewFakeSessionRepo(accounts AccountChecker) *FakeSessionRepo {
	return &FakeSessionRepo{
		sessions: make(map[string]*sessions.Session),
		accounts: accounts,
	}
}

func (sr *FakeSessionRepo) Create(_ context.Context, session *sessions.Session) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	if sr.accounts != nil && !sr.accounts.IsEligible(session.AccountID) {
		return sessions.ErrAccountUnavailable
	}
	stored := *session
	sr.sessions[session.TokenHash] = &stored
	return nil
}

func (sr *FakeSessionRepo) Get(_ context.Context, tokenHash string) (*sessions.Session, error) {
	sr.lock.RLock()
	defer sr.lock.RUnlock()

	s, ok := sr.sessions[tokenHash]
	if !ok {
		return nil, sessions.ErrNotFound
	}
	c := *s
	return &c, nil
}

func (sr *FakeSessionRepo) Delete(_ context.Context, tokenHash string) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	delete(sr.sessions, tokenHash)
	return nil
}

func (sr *FakeSessionRepo) DeleteForAccount(_ context.Context, accountID string) (int64, error) {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	var n int64
	for hash, s := range sr.sessions {
		if s.AccountID == accountID {
			delete(sr.sessions, hash)
			n++
		}
	}
	return n, nil
}

func (sr *FakeSessionRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	var n int64
	for hash, s := range sr.sessions {
		if s.Expired(now) {
			delete(sr.sessions, hash)
			n++
		}
	}
	return n, nil
}

func (sr *FakeSessionRepo) CountForAccount(_ context.Context, accountID string) (int, error) {
	sr.lock.RLock()
	defer sr.lock.RUnlock()

	n := 0
	for _, s := range sr.sessions {
		if s.AccountID == accountID {
			n++
		}
	}
	return n, nil
}
