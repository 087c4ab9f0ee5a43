package server

import (
	"context"
	"net/http"

	"github.com/jrsteele09/research-portal/accounts"
	"github.com/jrsteele09/research-portal/audit"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeyAccount stores the account resolved from the session cookie
const ContextKeyAccount ContextKey = "account"

func withAccount(ctx context.Context, account *accounts.PublicAccount) context.Context {
	return context.WithValue(ctx, ContextKeyAccount, account)
}

// AccountFromContext returns the authenticated account, or nil outside RequireSession
func AccountFromContext(ctx context.Context) *accounts.PublicAccount {
	account, _ := ctx.Value(ContextKeyAccount).(*accounts.PublicAccount)
	return account
}

// RequireSession validates the session cookie on every request. A storage failure answers 503
// rather than treating the caller as signed out.
func (s *Server) RequireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "sign in required")
			return
		}

		account, err := s.services.Sessions.Validate(r.Context(), token)
		if err != nil {
			writeStorageError(w)
			return
		}
		if account == nil {
			s.clearSessionCookie(w, r)
			writeError(w, http.StatusUnauthorized, "unauthenticated", "sign in required")
			return
		}

		next(w, r.WithContext(withAccount(r.Context(), account)))
	}
}

// RequireAdmin must run after RequireSession. Refusals are audited against the request path.
func (s *Server) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account := AccountFromContext(r.Context())
		if !account.IsAdministrator() {
			var actorID *string
			if account != nil {
				actorID = audit.AccountRef(account.ID)
			}
			s.services.Recorder.Record(r.Context(), actorID, audit.ActionAuthzDenied, r.URL.Path, "administrator role required")
			writeError(w, http.StatusForbidden, "forbidden", "forbidden")
			return
		}
		next(w, r)
	}
}

func (s *Server) LoginRateLimitMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.loginLimiter.Allow(clientIP(r)) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts, please wait and try again")
			return
		}
		next(w, r)
	}
}
