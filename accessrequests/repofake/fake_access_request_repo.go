package fakeaccessrequestrepo

import (
	"context"
	"sort"
	"sync"

	"github.com/jrsteele09/research-portal/accessrequests"
)

var _ accessrequests.Repo = (*FakeAccessRequestRepo)(nil)

type FakeAccessRequestRepo struct {
	requests map[string]*accessrequests.AccessRequest
	lock     sync.RWMutex
}

func NewFakeAccessRequestRepo() *FakeAccessRequestRepo {
	return &FakeAccessRequestRepo{
		requests: make(map[string]*accessrequests.AccessRequest),
	}
}

func (rr *FakeAccessRequestRepo) Create(_ context.Context, request *accessrequests.AccessRequest) error {
	rr.lock.Lock()
	defer rr.lock.Unlock()

	rr.requests[request.ID] = copyRequest(request)
	return nil
}

func (rr *FakeAccessRequestRepo) Get(_ context.Context, id string) (*accessrequests.AccessRequest, error) {
	rr.lock.RLock()
	defer rr.lock.RUnlock()

	r, ok := rr.requests[id]
	if !ok {
		return nil, accessrequests.ErrNotFound
	}
	return copyRequest(r), nil
}

func (rr *FakeAccessRequestRepo) List(_ context.Context, status accessrequests.Status, offset, limit int) (accessrequests.ListResponse, error) {
	rr.lock.RLock()
	defer rr.lock.RUnlock()

	list := make([]*accessrequests.AccessRequest, 0, len(rr.requests))
	for _, r := range rr.requests {
		if status != "" && r.Status != status {
			continue
		}
		list = append(list, copyRequest(r))
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].SubmittedAt.Equal(list[j].SubmittedAt) {
			return list[i].ID > list[j].ID
		}
		return list[i].SubmittedAt.After(list[j].SubmittedAt)
	})

	resp := accessrequests.ListResponse{Total: len(list), Offset: offset, Limit: limit, Requests: []*accessrequests.AccessRequest{}}
	if offset >= len(list) {
		return resp, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(list) {
		end = len(list)
	}
	resp.Requests = list[offset:end]
	return resp, nil
}

func (rr *FakeAccessRequestRepo) Decide(_ context.Context, id string, decision accessrequests.Decision) error {
	rr.lock.Lock()
	defer rr.lock.Unlock()

	r, ok := rr.requests[id]
	if !ok {
		return accessrequests.ErrNotFound
	}
	if r.Status != accessrequests.StatusPending {
		return accessrequests.ErrInvalidTransition
	}
	at := decision.At
	by := decision.DecidedBy
	r.Status = decision.To
	r.DecidedAt = &at
	r.DecidedBy = &by
	r.DecisionNote = decision.Note
	return nil
}

func copyRequest(r *accessrequests.AccessRequest) *accessrequests.AccessRequest {
	c := *r
	c.Capabilities = append([]accessrequests.Capability(nil), r.Capabilities...)
	return &c
}
