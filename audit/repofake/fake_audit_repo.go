package fakeauditrepo

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/jrsteele09/research-portal/audit"
)

var _ audit.Repo = (*FakeAuditRepo)(nil)

// ErrFailing is returned by a repo switched into failure mode
var ErrFailing = errors.New("audit storage unavailable")

type FakeAuditRepo struct {
	entries []audit.Entry
	names   func(accountID string) string
	failing bool
	lock    sync.RWMutex
}

// NewFakeAuditRepo keeps entries in memory. names resolves account display names for List and
// may be nil.
func NewFakeAuditRepo(names func(accountID string) string) *FakeAuditRepo {
	return &FakeAuditRepo{names: names}
}

// SetFailing makes every subsequent Append fail
func (ar *FakeAuditRepo) SetFailing(failing bool) {
	ar.lock.Lock()
	defer ar.lock.Unlock()
	ar.failing = failing
}

func (ar *FakeAuditRepo) Append(_ context.Context, entry *audit.Entry) error {
	ar.lock.Lock()
	defer ar.lock.Unlock()

	if ar.failing {
		return ErrFailing
	}
	ar.entries = append(ar.entries, *entry)
	return nil
}

func (ar *FakeAuditRepo) List(_ context.Context, offset, limit int) (audit.ListResponse, error) {
	ar.lock.RLock()
	defer ar.lock.RUnlock()

	listed := make([]audit.ListedEntry, 0, len(ar.entries))
	for _, e := range ar.entries {
		le := audit.ListedEntry{Entry: e}
		if e.AccountID != nil && ar.names != nil {
			le.AccountName = ar.names(*e.AccountID)
		}
		listed = append(listed, le)
	}
	sort.SliceStable(listed, func(i, j int) bool {
		return listed[i].ID > listed[j].ID
	})

	resp := audit.ListResponse{Total: len(listed), Offset: offset, Limit: limit, Entries: []audit.ListedEntry{}}
	if offset >= len(listed) {
		return resp, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(listed) {
		end = len(listed)
	}
	resp.Entries = listed[offset:end]
	return resp, nil
}

// Actions returns the recorded action labels in write order
func (ar *FakeAuditRepo) Actions() []string {
	ar.lock.RLock()
	defer ar.lock.RUnlock()

	actions := make([]string, 0, len(ar.entries))
	for _, e := range ar.entries {
		actions = append(actions, e.Action)
	}
	return actions
}

// Entries returns a copy of every recorded entry in write order
func (ar *FakeAuditRepo) Entries() []audit.Entry {
	ar.lock.RLock()
	defer ar.lock.RUnlock()
	return append([]audit.Entry(nil), ar.entries...)
}
