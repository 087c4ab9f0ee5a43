package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/research-portal/accounts"
	"github.com/jrsteele09/research-portal/audit"
	"github.com/jrsteele09/research-portal/identity"
	"github.com/jrsteele09/research-portal/internal/errors"
	"github.com/jrsteele09/research-portal/internal/metrics"
	"github.com/jrsteele09/research-portal/passwords"
	"github.com/jrsteele09/research-portal/sessions"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Repos holds all repository dependencies for the SessionManager
type Repos struct {
	Accounts accounts.Repo // Repository for account data
	Sessions sessions.Repo // Repository for session data
}

// SessionManager orchestrates local and external login, session validation, logout, password
// change and self-registration. Every validation re-reads the store; nothing is cached.
type SessionManager struct {
	repos         Repos
	hasher        *passwords.Hasher
	recorder      *audit.Recorder
	accountPolicy accounts.Policy
	sessionPolicy sessions.Policy
	verifier      identity.Verifier
	logger        zerolog.Logger
	nowTime       func() time.Time
}

// NewSessionManager initializes a new SessionManager with required dependencies.
// Optional configuration can be provided via options (e.g., WithNowTime for testing).
func NewSessionManager(
	repos Repos,
	hasher *passwords.Hasher,
	recorder *audit.Recorder,
	accountPolicy accounts.Policy,
	options ...SessionManagerOption,
) (*SessionManager, error) {
	if repos.Accounts == nil {
		return nil, errors.New("[NewSessionManager] Accounts repo is required")
	}
	if repos.Sessions == nil {
		return nil, errors.New("[NewSessionManager] Sessions repo is required")
	}
	if hasher == nil {
		return nil, errors.New("[NewSessionManager] hasher is required")
	}
	if recorder == nil {
		return nil, errors.New("[NewSessionManager] audit recorder is required")
	}

	sm := &SessionManager{
		repos:         repos,
		hasher:        hasher,
		recorder:      recorder,
		accountPolicy: accountPolicy,
		sessionPolicy: sessions.DefaultPolicy(),
		logger:        log.Logger,
		nowTime:       time.Now,
	}

	for _, opt := range options {
		opt(sm)
	}

	return sm, nil
}

// LoginLocal authenticates with a username or e-mail and a password. An unknown identifier and a
// wrong password produce the same result.
func (sm *SessionManager) LoginLocal(ctx context.Context, identifier, password string, opts ...LoginOption) LoginResult {
	o := applyLoginOptions(opts)
	channel := sessions.ChannelLocal
	if o.rememberMe {
		channel = sessions.ChannelLocalRemember
	}

	result, account := sm.loginLocal(ctx, accounts.NormaliseUsername(identifier), password, channel)
	sm.recordLogin(ctx, channel, result, account, identifier)
	return result
}

func (sm *SessionManager) loginLocal(ctx context.Context, identifier, password string, channel sessions.Channel) (LoginResult, *accounts.Account) {
	if identifier == "" || password == "" {
		return loginRejected(ReasonInvalidCredentials), nil
	}

	account, err := sm.repos.Accounts.GetByUsernameOrEmail(ctx, identifier)
	if errors.Is(err, accounts.ErrNotFound) {
		sm.hasher.CompareDecoy(password)
		return loginRejected(ReasonInvalidCredentials), nil
	}
	if err != nil {
		sm.storageFailure("LoginLocal", err)
		return loginRejected(ReasonStorageError), nil
	}

	if !account.HasPassword() {
		sm.hasher.CompareDecoy(password)
		return loginRejected(ReasonInvalidCredentials), account
	}
	if !sm.hasher.Verify(password, account.PasswordHash) {
		return loginRejected(ReasonInvalidCredentials), account
	}

	if reason, ok := statusGate(account); !ok {
		return loginRejected(reason), account
	}

	if sm.hasher.NeedsRehash(account.PasswordHash) {
		sm.upgradeHash(ctx, account, password)
	}

	return sm.issue(ctx, account, channel), account
}

// LoginExternal authenticates with an ID token from the external identity provider. A first
// sign-in creates the account; addresses outside the organisation's domain start unapproved and
// receive no session.
func (sm *SessionManager) LoginExternal(ctx context.Context, rawIDToken string, opts ...LoginOption) LoginResult {
	o := applyLoginOptions(opts)
	result, account, email := sm.loginExternal(ctx, rawIDToken, o.expectedNonce)
	sm.recordLogin(ctx, sessions.ChannelExternal, result, account, email)
	return result
}

func (sm *SessionManager) loginExternal(ctx context.Context, rawIDToken, expectedNonce string) (LoginResult, *accounts.Account, string) {
	if sm.verifier == nil {
		sm.logger.Warn().Msg("[SessionManager.LoginExternal] no identity verifier configured")
		return loginRejected(ReasonInvalidExternalToken), nil, ""
	}

	id, err := sm.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		sm.logger.Info().Err(err).Msg("[SessionManager.LoginExternal] token rejected")
		return loginRejected(ReasonInvalidExternalToken), nil, ""
	}
	if expectedNonce != "" && id.Nonce != expectedNonce {
		sm.logger.Info().Str("email", id.Email).Msg("[SessionManager.LoginExternal] nonce mismatch")
		return loginRejected(ReasonInvalidExternalToken), nil, id.Email
	}

	email := accounts.NormaliseEmail(id.Email)
	account, err := sm.repos.Accounts.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, accounts.ErrNotFound):
		account, err = sm.createExternalAccount(ctx, id, email)
		if err != nil {
			sm.storageFailure("LoginExternal", err)
			return loginRejected(ReasonStorageError), nil, email
		}
	case err != nil:
		sm.storageFailure("LoginExternal", err)
		return loginRejected(ReasonStorageError), nil, email
	default:
		profile := accounts.Profile{
			DisplayName: account.DisplayName,
			External:    true,
			AvatarURL:   account.AvatarURL,
		}
		if id.DisplayName != "" {
			profile.DisplayName = id.DisplayName
		}
		if id.Picture != "" {
			profile.AvatarURL = id.Picture
		}
		if err := sm.repos.Accounts.UpdateProfile(ctx, account.ID, profile); err != nil {
			sm.storageFailure("LoginExternal", err)
			return loginRejected(ReasonStorageError), account, email
		}
		account.DisplayName = profile.DisplayName
		account.External = true
		account.AvatarURL = profile.AvatarURL
	}

	if reason, ok := statusGate(account); !ok {
		return loginRejected(reason), account, email
	}

	return sm.issue(ctx, account, sessions.ChannelExternal), account, email
}

func (sm *SessionManager) createExternalAccount(ctx context.Context, id *identity.Identity, email string) (*accounts.Account, error) {
	role, approved := sm.accountPolicy.Classify(email)
	displayName := id.DisplayName
	if displayName == "" {
		displayName = email
	}

	account := &accounts.Account{
		ID:          uuid.New().String(),
		Email:       email,
		Username:    email,
		DisplayName: displayName,
		Role:        role,
		Active:      true,
		Approved:    approved,
		External:    true,
		AvatarURL:   id.Picture,
		CreatedAt:   sm.nowTime().UTC(),
	}

	err := sm.repos.Accounts.Create(ctx, account)
	if errors.Is(err, accounts.ErrDuplicate) {
		// A concurrent first sign-in created it
		return sm.repos.Accounts.GetByEmail(ctx, email)
	}
	if err != nil {
		return nil, err
	}

	sm.recorder.Record(ctx, audit.AccountRef(account.ID), audit.ActionAccountRegister, "account:"+account.ID,
		fmt.Sprintf("channel=external role=%s approved=%t", role, approved))
	return account, nil
}

// issue mints a token and persists the session. The session insert re-checks the account's
// status so a concurrent deactivation cannot leave a usable session behind.
func (sm *SessionManager) issue(ctx context.Context, account *accounts.Account, channel sessions.Channel) LoginResult {
	now := sm.nowTime().UTC()

	token, err := sessions.NewToken()
	if err != nil {
		sm.storageFailure("issue", err)
		return loginRejected(ReasonStorageError)
	}

	if err := sm.repos.Accounts.TouchLastLogin(ctx, account.ID, now); err != nil {
		sm.storageFailure("issue", err)
		return loginRejected(ReasonStorageError)
	}

	session := &sessions.Session{
		TokenHash: sessions.HashToken(token),
		AccountID: account.ID,
		Channel:   channel,
		CreatedAt: now,
		ExpiresAt: now.Add(sm.sessionPolicy.Duration(channel)),
		Origin:    audit.OriginFromContext(ctx),
	}

	err = sm.repos.Sessions.Create(ctx, session)
	if errors.Is(err, sessions.ErrAccountUnavailable) {
		return loginRejected(sm.unavailableReason(ctx, account.ID))
	}
	if err != nil {
		sm.storageFailure("issue", err)
		return loginRejected(ReasonStorageError)
	}

	return LoginResult{
		Success:      true,
		SessionToken: token,
		ExpiresAt:    session.ExpiresAt,
		Account:      account.Public(),
		ReasonCode:   ReasonOK,
	}
}

// unavailableReason re-reads an account whose status changed between the gate and the insert
func (sm *SessionManager) unavailableReason(ctx context.Context, accountID string) ReasonCode {
	account, err := sm.repos.Accounts.GetByID(ctx, accountID)
	if err != nil {
		return ReasonAccountInactive
	}
	if reason, ok := statusGate(account); !ok {
		return reason
	}
	return ReasonAccountInactive
}

// Validate resolves a session token to its account. It returns nil, nil when the token does not
// resolve to a usable session and an error only when storage fails.
func (sm *SessionManager) Validate(ctx context.Context, token string) (*accounts.PublicAccount, error) {
	if token == "" {
		metrics.ObserveValidation("missing")
		return nil, nil
	}

	tokenHash := sessions.HashToken(token)
	session, err := sm.repos.Sessions.Get(ctx, tokenHash)
	if errors.Is(err, sessions.ErrNotFound) {
		metrics.ObserveValidation("missing")
		return nil, nil
	}
	if err != nil {
		sm.storageFailure("Validate", err)
		metrics.ObserveValidation("error")
		return nil, errors.ErrStorage
	}

	if session.Expired(sm.nowTime()) {
		sm.discard(ctx, tokenHash)
		sm.recorder.Record(ctx, audit.AccountRef(session.AccountID), audit.ActionSessionExpired, "session", string(session.Channel))
		metrics.ObserveValidation("expired")
		return nil, nil
	}

	account, err := sm.repos.Accounts.GetByID(ctx, session.AccountID)
	if errors.Is(err, accounts.ErrNotFound) {
		sm.discard(ctx, tokenHash)
		metrics.ObserveValidation("revoked")
		return nil, nil
	}
	if err != nil {
		sm.storageFailure("Validate", err)
		metrics.ObserveValidation("error")
		return nil, errors.ErrStorage
	}

	if !account.CanHoldSession() {
		sm.discard(ctx, tokenHash)
		metrics.ObserveValidation("revoked")
		return nil, nil
	}

	metrics.ObserveValidation("valid")
	return account.Public(), nil
}

// discard lazily removes a session that no longer validates. Failure only delays the cleanup.
func (sm *SessionManager) discard(ctx context.Context, tokenHash string) {
	if err := sm.repos.Sessions.Delete(ctx, tokenHash); err != nil {
		sm.logger.Warn().Err(err).Msg("[SessionManager.Validate] failed to delete stale session")
	}
}

// Logout deletes the session. Unknown tokens are not an error.
func (sm *SessionManager) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	tokenHash := sessions.HashToken(token)
	var accountID *string
	if session, err := sm.repos.Sessions.Get(ctx, tokenHash); err == nil {
		accountID = audit.AccountRef(session.AccountID)
	} else if !errors.Is(err, sessions.ErrNotFound) {
		sm.storageFailure("Logout", err)
		return errors.ErrStorage
	}

	if err := sm.repos.Sessions.Delete(ctx, tokenHash); err != nil {
		sm.storageFailure("Logout", err)
		return errors.ErrStorage
	}

	if accountID != nil {
		sm.recorder.Record(ctx, accountID, audit.ActionLogout, "session", "")
	}
	return nil
}

// ChangePassword replaces the password of an authenticated account after re-verifying the current
// one. Other sessions of the account stay valid.
func (sm *SessionManager) ChangePassword(ctx context.Context, accountID, current, newPassword string) Result {
	account, err := sm.repos.Accounts.GetByID(ctx, accountID)
	if errors.Is(err, accounts.ErrNotFound) {
		return Failed(ReasonNotFound)
	}
	if err != nil {
		sm.storageFailure("ChangePassword", err)
		return Failed(ReasonStorageError)
	}

	if !account.HasPassword() {
		return InvalidInput("this account signs in with Google and has no password")
	}
	if !sm.hasher.Verify(current, account.PasswordHash) {
		return Failed(ReasonCurrentPasswordIncorrect)
	}
	if err := accounts.ValidatePasswordStrength(newPassword); err != nil {
		return InvalidInput(err.Error())
	}

	hash, err := sm.hasher.Hash(newPassword)
	if err != nil {
		sm.logger.Err(err).Msg("[SessionManager.ChangePassword] failed to hash password")
		return Failed(ReasonStorageError)
	}
	if err := sm.repos.Accounts.SetPasswordHash(ctx, account.ID, hash); err != nil {
		sm.storageFailure("ChangePassword", err)
		return Failed(ReasonStorageError)
	}

	sm.recorder.Record(ctx, audit.AccountRef(account.ID), audit.ActionPasswordChange, "account:"+account.ID, "")
	return Succeeded()
}

// RegisterLocal creates a password account. Role and approval come from the account policy, so
// registrations outside the organisation's domain wait for an administrator.
func (sm *SessionManager) RegisterLocal(ctx context.Context, req RegisterRequest) RegisterResult {
	email := accounts.NormaliseEmail(req.Email)
	username := accounts.NormaliseUsername(req.Username)

	if err := accounts.ValidateEmail(email); err != nil {
		return RegisterResult{Result: InvalidInput(err.Error())}
	}
	if err := accounts.ValidateUsername(username); err != nil {
		return RegisterResult{Result: InvalidInput(err.Error())}
	}
	if err := accounts.ValidateDisplayName(req.DisplayName); err != nil {
		return RegisterResult{Result: InvalidInput(err.Error())}
	}
	if err := accounts.ValidatePasswordStrength(req.Password); err != nil {
		return RegisterResult{Result: InvalidInput(err.Error())}
	}

	hash, err := sm.hasher.Hash(req.Password)
	if err != nil {
		sm.logger.Err(err).Msg("[SessionManager.RegisterLocal] failed to hash password")
		return RegisterResult{Result: Failed(ReasonStorageError)}
	}

	role, approved := sm.accountPolicy.Classify(email)
	displayName := req.DisplayName
	if displayName == "" {
		displayName = username
	}

	account := &accounts.Account{
		ID:           uuid.New().String(),
		Email:        email,
		Username:     username,
		DisplayName:  displayName,
		OrgUnit:      req.OrgUnit,
		Role:         role,
		PasswordHash: hash,
		Active:       true,
		Approved:     approved,
		CreatedAt:    sm.nowTime().UTC(),
	}

	err = sm.repos.Accounts.Create(ctx, account)
	if errors.Is(err, accounts.ErrDuplicate) {
		return RegisterResult{Result: Failed(ReasonDuplicateAccount)}
	}
	if err != nil {
		sm.storageFailure("RegisterLocal", err)
		return RegisterResult{Result: Failed(ReasonStorageError)}
	}

	sm.recorder.Record(ctx, audit.AccountRef(account.ID), audit.ActionAccountRegister, "account:"+account.ID,
		fmt.Sprintf("channel=local role=%s approved=%t", role, approved))

	return RegisterResult{
		Result:          Succeeded(),
		Account:         account.Public(),
		PendingApproval: !approved,
	}
}

// PurgeExpiredSessions deletes every session past its expiry
func (sm *SessionManager) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	n, err := sm.repos.Sessions.DeleteExpired(ctx, sm.nowTime().UTC())
	if err != nil {
		sm.storageFailure("PurgeExpiredSessions", err)
		return 0, errors.ErrStorage
	}
	return n, nil
}

func (sm *SessionManager) upgradeHash(ctx context.Context, account *accounts.Account, password string) {
	hash, err := sm.hasher.Hash(password)
	if err != nil {
		sm.logger.Err(err).Msg("[SessionManager.upgradeHash] failed to hash password")
		return
	}
	if err := sm.repos.Accounts.SetPasswordHash(ctx, account.ID, hash); err != nil {
		sm.logger.Err(err).Str("account_id", account.ID).Msg("[SessionManager.upgradeHash] failed to store upgraded hash")
		return
	}
	account.PasswordHash = hash
}

func (sm *SessionManager) recordLogin(ctx context.Context, channel sessions.Channel, result LoginResult, account *accounts.Account, identifier string) {
	metrics.ObserveLogin(string(channel), string(result.ReasonCode))

	var accountID *string
	if account != nil {
		accountID = audit.AccountRef(account.ID)
	}
	if result.Success {
		sm.recorder.Record(ctx, accountID, audit.ActionLoginSuccess, "session", "channel="+string(channel))
		return
	}
	sm.recorder.Record(ctx, accountID, audit.ActionLoginFailure, "session",
		fmt.Sprintf("channel=%s reason=%s identifier=%s", channel, result.ReasonCode, identifier))
}

func (sm *SessionManager) storageFailure(op string, err error) {
	sm.logger.Err(err).Str("op", op).Msg("[SessionManager] storage failure")
}

// statusGate applies the active gate before the approval gate
func statusGate(account *accounts.Account) (ReasonCode, bool) {
	if !account.Active {
		return ReasonAccountInactive, false
	}
	if !account.Approved {
		return ReasonPendingApproval, false
	}
	return ReasonOK, true
}
