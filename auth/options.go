package auth

import (
	"time"

	"github.com/jrsteele09/research-portal/identity"
	"github.com/jrsteele09/research-portal/sessions"
	"github.com/rs/zerolog"
)

// SessionManagerOption defines a function type to modify the SessionManager instance.
type SessionManagerOption func(*SessionManager)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) SessionManagerOption {
	return func(sm *SessionManager) {
		sm.nowTime = nowFunc
	}
}

func WithLogger(logger zerolog.Logger) SessionManagerOption {
	return func(sm *SessionManager) {
		sm.logger = logger
	}
}

// WithSessionPolicy overrides the default lifetime per login channel
func WithSessionPolicy(policy sessions.Policy) SessionManagerOption {
	return func(sm *SessionManager) {
		sm.sessionPolicy = policy
	}
}

// WithIdentityVerifier enables external (Google) login
func WithIdentityVerifier(verifier identity.Verifier) SessionManagerOption {
	return func(sm *SessionManager) {
		sm.verifier = verifier
	}
}

type loginOptions struct {
	rememberMe    bool
	expectedNonce string
}

// LoginOption tunes a single login attempt
type LoginOption func(*loginOptions)

// WithRememberMe issues a long-lived session for a local login
func WithRememberMe() LoginOption {
	return func(o *loginOptions) {
		o.rememberMe = true
	}
}

// WithExpectedNonce rejects an external token whose nonce claim differs
func WithExpectedNonce(nonce string) LoginOption {
	return func(o *loginOptions) {
		o.expectedNonce = nonce
	}
}

func applyLoginOptions(opts []LoginOption) loginOptions {
	var o loginOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
