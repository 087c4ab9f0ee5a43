package accessrequests

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/research-portal/accounts"
	"github.com/jrsteele09/research-portal/audit"
	"github.com/jrsteele09/research-portal/internal/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Service runs the access request workflow: submission by anyone, then a one-way decision by an
// administrator. Approval provisions an account so the requester can sign in with Google.
type Service struct {
	repo          Repo
	accounts      accounts.Repo
	recorder      *audit.Recorder
	accountPolicy accounts.Policy
	logger        zerolog.Logger
	nowTime       func() time.Time
}

type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

func NewService(repo Repo, accountRepo accounts.Repo, recorder *audit.Recorder, policy accounts.Policy, options ...ServiceOption) (*Service, error) {
	if repo == nil {
		return nil, errors.New("[accessrequests.NewService] access request repo is required")
	}
	if accountRepo == nil {
		return nil, errors.New("[accessrequests.NewService] account repo is required")
	}
	if recorder == nil {
		return nil, errors.New("[accessrequests.NewService] audit recorder is required")
	}

	s := &Service{
		repo:          repo,
		accounts:      accountRepo,
		recorder:      recorder,
		accountPolicy: policy,
		logger:        log.Logger,
		nowTime:       time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Submit validates and stores a pending request. Validation failures wrap errors.ErrInvalidInput.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*AccessRequest, error) {
	req = req.normalise()
	if err := req.validate(); err != nil {
		return nil, err
	}

	request := &AccessRequest{
		ID:               uuid.New().String(),
		Name:             req.Name,
		Email:            req.Email,
		OrgUnit:          req.OrgUnit,
		Position:         req.Position,
		ExternalEmployee: req.ExternalEmployee,
		Capabilities:     req.Capabilities,
		Justification:    req.Justification,
		Duration:         req.Duration,
		Status:           StatusPending,
		SubmittedAt:      s.nowTime().UTC(),
	}

	if err := s.repo.Create(ctx, request); err != nil {
		return nil, s.storageFailure("Submit", err)
	}

	s.recorder.Record(ctx, nil, audit.ActionAccessRequestSubmit, "access_request:"+request.ID,
		fmt.Sprintf("email=%s capabilities=%d duration=%s", request.Email, len(request.Capabilities), request.Duration))
	return request, nil
}

func (s *Service) Get(ctx context.Context, actor *accounts.PublicAccount, id string) (*AccessRequest, error) {
	if err := s.requireAdministrator(ctx, actor, "access_request:"+id); err != nil {
		return nil, err
	}
	request, err := s.repo.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, s.storageFailure("Get", err)
	}
	return request, nil
}

func (s *Service) List(ctx context.Context, actor *accounts.PublicAccount, status Status, offset, limit int) (ListResponse, error) {
	if err := s.requireAdministrator(ctx, actor, "access_requests"); err != nil {
		return ListResponse{}, err
	}
	if status != "" && !status.Valid() {
		return ListResponse{}, invalid("unknown status %q", status)
	}
	resp, err := s.repo.List(ctx, status, offset, limit)
	if err != nil {
		return ListResponse{}, s.storageFailure("List", err)
	}
	return resp, nil
}

// Approve moves a pending request to approved and provisions the requester's account
func (s *Service) Approve(ctx context.Context, actor *accounts.PublicAccount, id, note string) (*AccessRequest, error) {
	request, err := s.decide(ctx, actor, id, StatusApproved, note)
	if err != nil {
		return nil, err
	}
	s.recorder.Record(ctx, audit.AccountRef(actor.ID), audit.ActionAccessRequestApprove, "access_request:"+id, note)

	if err := s.provision(ctx, actor, request); err != nil {
		return request, err
	}
	return request, nil
}

// Deny moves a pending request to denied
func (s *Service) Deny(ctx context.Context, actor *accounts.PublicAccount, id, note string) (*AccessRequest, error) {
	request, err := s.decide(ctx, actor, id, StatusDenied, note)
	if err != nil {
		return nil, err
	}
	s.recorder.Record(ctx, audit.AccountRef(actor.ID), audit.ActionAccessRequestDeny, "access_request:"+id, note)
	return request, nil
}

// Reprovision repeats the account provisioning of an already approved request. It is idempotent and
// exists for the case where provisioning failed after the decision was stored.
func (s *Service) Reprovision(ctx context.Context, actor *accounts.PublicAccount, id string) error {
	request, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if request.Status != StatusApproved {
		return ErrInvalidTransition
	}
	return s.provision(ctx, actor, request)
}

func (s *Service) decide(ctx context.Context, actor *accounts.PublicAccount, id string, to Status, note string) (*AccessRequest, error) {
	if err := s.requireAdministrator(ctx, actor, "access_request:"+id); err != nil {
		return nil, err
	}

	err := s.repo.Decide(ctx, id, Decision{
		To:        to,
		DecidedBy: actor.ID,
		Note:      note,
		At:        s.nowTime().UTC(),
	})
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidTransition):
		return nil, err
	case err != nil:
		return nil, s.storageFailure("decide", err)
	}

	request, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, s.storageFailure("decide", err)
	}
	return request, nil
}

// provision makes sure an active, approved account exists for the requester's e-mail
func (s *Service) provision(ctx context.Context, actor *accounts.PublicAccount, request *AccessRequest) error {
	account, err := s.accounts.GetByEmail(ctx, request.Email)
	switch {
	case err == nil:
		if !account.Approved {
			if err := s.accounts.SetApproved(ctx, account.ID, true); err != nil {
				return s.storageFailure("provision", err)
			}
			s.recorder.Record(ctx, audit.AccountRef(actor.ID), audit.ActionAccountApprove, "account:"+account.ID,
				"access_request:"+request.ID)
		}
		if !account.Active {
			if err := s.accounts.SetActive(ctx, account.ID, true); err != nil {
				return s.storageFailure("provision", err)
			}
			s.recorder.Record(ctx, audit.AccountRef(actor.ID), audit.ActionAccountActivate, "account:"+account.ID,
				"access_request:"+request.ID)
		}
		return nil

	case errors.Is(err, accounts.ErrNotFound):
		role, _ := s.accountPolicy.Classify(request.Email)
		account = &accounts.Account{
			ID:          uuid.New().String(),
			Email:       request.Email,
			Username:    request.Email,
			DisplayName: request.Name,
			OrgUnit:     request.OrgUnit,
			Role:        role,
			Active:      true,
			Approved:    true,
			External:    true,
			CreatedAt:   s.nowTime().UTC(),
		}
		if err := s.accounts.Create(ctx, account); err != nil {
			return s.storageFailure("provision", err)
		}
		s.recorder.Record(ctx, audit.AccountRef(actor.ID), audit.ActionAccountRegister, "account:"+account.ID,
			fmt.Sprintf("channel=access_request role=%s request=%s", role, request.ID))
		return nil

	default:
		return s.storageFailure("provision", err)
	}
}

func (s *Service) requireAdministrator(ctx context.Context, actor *accounts.PublicAccount, resource string) error {
	if actor.IsAdministrator() {
		return nil
	}
	var actorID *string
	if actor != nil {
		actorID = audit.AccountRef(actor.ID)
	}
	s.recorder.Record(ctx, actorID, audit.ActionAuthzDenied, resource, "administrator role required")
	return errors.ErrForbidden
}

func (s *Service) storageFailure(op string, err error) error {
	s.logger.Err(err).Str("op", op).Msg("[accessrequests.Service] storage failure")
	return errors.ErrStorage
}
