package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/research-portal/accounts"
	"github.com/jrsteele09/research-portal/audit"
	"github.com/jrsteele09/research-portal/internal/errors"
	"github.com/jrsteele09/research-portal/passwords"
	"github.com/jrsteele09/research-portal/sessions"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const maxPageSize = 200

// ErrSelfModification is returned when an administrator tries to lock themselves out
var ErrSelfModification = errors.New("administrators cannot deactivate or demote their own account")

// Repos holds all repository dependencies for the admin Service
type Repos struct {
	Accounts accounts.Repo
	Sessions sessions.Repo
}

// Service exposes account management and the audit log to administrators. Every method takes the
// acting account and rejects anyone else before touching storage.
type Service struct {
	repos    Repos
	recorder *audit.Recorder
	hasher   *passwords.Hasher
	logger   zerolog.Logger
	nowTime  func() time.Time
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

func NewService(repos Repos, recorder *audit.Recorder, hasher *passwords.Hasher, options ...ServiceOption) (*Service, error) {
	if repos.Accounts == nil {
		return nil, errors.New("[admin.NewService] Accounts repo is required")
	}
	if repos.Sessions == nil {
		return nil, errors.New("[admin.NewService] Sessions repo is required")
	}
	if recorder == nil {
		return nil, errors.New("[admin.NewService] audit recorder is required")
	}
	if hasher == nil {
		return nil, errors.New("[admin.NewService] hasher is required")
	}

	s := &Service{
		repos:    repos,
		recorder: recorder,
		hasher:   hasher,
		logger:   log.Logger,
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

func (s *Service) ListAccounts(ctx context.Context, actor *accounts.PublicAccount, offset, limit int) (accounts.ListResponse, error) {
	if err := s.requireAdministrator(ctx, actor, "accounts"); err != nil {
		return accounts.ListResponse{}, err
	}
	offset, limit = page(offset, limit)
	resp, err := s.repos.Accounts.List(ctx, offset, limit)
	if err != nil {
		return accounts.ListResponse{}, s.storageFailure("ListAccounts", err)
	}
	return resp, nil
}

// SetActive activates or deactivates an account. Deactivation revokes all of its sessions.
func (s *Service) SetActive(ctx context.Context, actor *accounts.PublicAccount, id string, active bool) error {
	resource := "account:" + id
	if err := s.requireAdministrator(ctx, actor, resource); err != nil {
		return err
	}
	if !active && actor.ID == id {
		return ErrSelfModification
	}
	if err := s.exists(ctx, id); err != nil {
		return err
	}

	if err := s.repos.Accounts.SetActive(ctx, id, active); err != nil {
		return s.storageFailure("SetActive", err)
	}

	action := audit.ActionAccountActivate
	detail := ""
	if !active {
		action = audit.ActionAccountDeactivate
		revoked, err := s.repos.Sessions.DeleteForAccount(ctx, id)
		if err != nil {
			// Validation re-checks the account on every request, so the sessions are already unusable
			s.logger.Warn().Err(err).Str("account_id", id).Msg("[admin.SetActive] failed to revoke sessions")
		}
		detail = fmt.Sprintf("revoked_sessions=%d", revoked)
	}
	s.recorder.Record(ctx, audit.AccountRef(actor.ID), action, resource, detail)
	return nil
}

// SetApproved approves an account or withdraws approval, which revokes its sessions
func (s *Service) SetApproved(ctx context.Context, actor *accounts.PublicAccount, id string, approved bool) error {
	resource := "account:" + id
	if err := s.requireAdministrator(ctx, actor, resource); err != nil {
		return err
	}
	if !approved && actor.ID == id {
		return ErrSelfModification
	}
	if err := s.exists(ctx, id); err != nil {
		return err
	}

	if err := s.repos.Accounts.SetApproved(ctx, id, approved); err != nil {
		return s.storageFailure("SetApproved", err)
	}
	if !approved {
		if _, err := s.repos.Sessions.DeleteForAccount(ctx, id); err != nil {
			s.logger.Warn().Err(err).Str("account_id", id).Msg("[admin.SetApproved] failed to revoke sessions")
		}
	}
	s.recorder.Record(ctx, audit.AccountRef(actor.ID), audit.ActionAccountApprove, resource, fmt.Sprintf("approved=%t", approved))
	return nil
}

func (s *Service) SetRole(ctx context.Context, actor *accounts.PublicAccount, id string, role accounts.Role) error {
	resource := "account:" + id
	if err := s.requireAdministrator(ctx, actor, resource); err != nil {
		return err
	}
	if !role.Valid() {
		return fmt.Errorf("%w: %v", errors.ErrInvalidInput, accounts.ErrInvalidRole)
	}
	if actor.ID == id && role != accounts.RoleAdministrator {
		return ErrSelfModification
	}
	if err := s.exists(ctx, id); err != nil {
		return err
	}

	if err := s.repos.Accounts.SetRole(ctx, id, role); err != nil {
		return s.storageFailure("SetRole", err)
	}
	s.recorder.Record(ctx, audit.AccountRef(actor.ID), audit.ActionAccountRoleChange, resource, "role="+string(role))
	return nil
}

func (s *Service) ListAudit(ctx context.Context, actor *accounts.PublicAccount, offset, limit int) (audit.ListResponse, error) {
	if err := s.requireAdministrator(ctx, actor, "audit"); err != nil {
		return audit.ListResponse{}, err
	}
	offset, limit = page(offset, limit)
	resp, err := s.recorder.List(ctx, offset, limit)
	if err != nil {
		return audit.ListResponse{}, s.storageFailure("ListAudit", err)
	}
	return resp, nil
}

// AdminRequest describes a bootstrap administrator account
type AdminRequest struct {
	Email       string
	Username    string
	Password    string
	DisplayName string
}

// CreateAdministrator provisions an active, approved administrator. It is the bootstrap path used
// by the admin CLI and is not exposed over HTTP.
func (s *Service) CreateAdministrator(ctx context.Context, req AdminRequest) (*accounts.PublicAccount, error) {
	email := accounts.NormaliseEmail(req.Email)
	username := accounts.NormaliseUsername(req.Username)
	if err := accounts.ValidateEmail(email); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}
	if err := accounts.ValidateUsername(username); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}
	if err := accounts.ValidatePasswordStrength(req.Password); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("[admin.CreateAdministrator] failed to hash password: %w", err)
	}
	displayName := req.DisplayName
	if displayName == "" {
		displayName = username
	}

	account := &accounts.Account{
		ID:           uuid.New().String(),
		Email:        email,
		Username:     username,
		DisplayName:  displayName,
		Role:         accounts.RoleAdministrator,
		PasswordHash: hash,
		Active:       true,
		Approved:     true,
		CreatedAt:    s.nowTime().UTC(),
	}
	err = s.repos.Accounts.Create(ctx, account)
	if errors.Is(err, accounts.ErrDuplicate) {
		return nil, accounts.ErrDuplicate
	}
	if err != nil {
		return nil, s.storageFailure("CreateAdministrator", err)
	}

	s.recorder.Record(ctx, nil, audit.ActionAccountRegister, "account:"+account.ID, "channel=cli role=administrator")
	return account.Public(), nil
}

func (s *Service) exists(ctx context.Context, id string) error {
	_, err := s.repos.Accounts.GetByID(ctx, id)
	if errors.Is(err, accounts.ErrNotFound) {
		return accounts.ErrNotFound
	}
	if err != nil {
		return s.storageFailure("exists", err)
	}
	return nil
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
	s.logger.Err(err).Str("op", op).Msg("[admin.Service] storage failure")
	return errors.ErrStorage
}

func page(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	return offset, limit
}
