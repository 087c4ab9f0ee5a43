package server

import (
	"net/http"

	"github.com/jrsteele09/research-portal/accessrequests"
	"github.com/jrsteele09/research-portal/accounts"
	"github.com/jrsteele09/research-portal/admin"
	"github.com/jrsteele09/research-portal/auth"
	"github.com/jrsteele09/research-portal/internal/errors"
)

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

var reasonStatus = map[auth.ReasonCode]int{
	auth.ReasonOK:                       http.StatusOK,
	auth.ReasonInvalidCredentials:       http.StatusUnauthorized,
	auth.ReasonInvalidExternalToken:     http.StatusUnauthorized,
	auth.ReasonAccountInactive:          http.StatusForbidden,
	auth.ReasonPendingApproval:          http.StatusForbidden,
	auth.ReasonForbidden:                http.StatusForbidden,
	auth.ReasonStorageError:             http.StatusServiceUnavailable,
	auth.ReasonInvalidInput:             http.StatusBadRequest,
	auth.ReasonCurrentPasswordIncorrect: http.StatusBadRequest,
	auth.ReasonDuplicateAccount:         http.StatusConflict,
	auth.ReasonInvalidTransition:        http.StatusConflict,
	auth.ReasonNotFound:                 http.StatusNotFound,
}

func statusForReason(code auth.ReasonCode) int {
	if status, ok := reasonStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// LoginHandler authenticates a username or e-mail and password and sets the session cookie
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if !readJSON(w, r, &req) {
			return
		}

		var opts []auth.LoginOption
		if req.RememberMe {
			opts = append(opts, auth.WithRememberMe())
		}
		result := s.services.Sessions.LoginLocal(r.Context(), req.Identifier, req.Password, opts...)
		s.writeLoginResult(w, r, result)
	}
}

func (s *Server) writeLoginResult(w http.ResponseWriter, r *http.Request, result auth.LoginResult) {
	if result.Success {
		s.setSessionCookie(w, r, result.SessionToken, result.ExpiresAt)
	}
	writeJSON(w, statusForReason(result.ReasonCode), result)
}

// LogoutHandler deletes the current session. Signing out without a session succeeds.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.services.Sessions.Logout(r.Context(), sessionToken(r)); err != nil {
			writeStorageError(w)
			return
		}
		s.clearSessionCookie(w, r)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req auth.RegisterRequest
		if !readJSON(w, r, &req) {
			return
		}
		result := s.services.Sessions.RegisterLocal(r.Context(), req)
		status := statusForReason(result.ReasonCode)
		if result.Success {
			status = http.StatusCreated
		}
		writeJSON(w, status, result)
	}
}

func (s *Server) ChangePasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req changePasswordRequest
		if !readJSON(w, r, &req) {
			return
		}
		account := AccountFromContext(r.Context())
		result := s.services.Sessions.ChangePassword(r.Context(), account.ID, req.CurrentPassword, req.NewPassword)
		writeJSON(w, statusForReason(result.ReasonCode), result)
	}
}

func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, AccountFromContext(r.Context()))
	}
}

// SubmitAccessRequestHandler accepts the public access request form
func (s *Server) SubmitAccessRequestHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req accessrequests.SubmitRequest
		if !readJSON(w, r, &req) {
			return
		}
		request, err := s.services.AccessRequests.Submit(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, request)
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.health(r.Context()); err != nil {
			s.logger.Warn().Err(err).Msg("[Server.HealthHandler] health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// writeServiceError maps service sentinels onto status codes. Only validation messages, which are
// built for the user, are passed through.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errors.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, accounts.ErrInvalidRole):
		writeError(w, http.StatusBadRequest, "invalid_input", "unknown role")
	case errors.Is(err, errors.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", "forbidden")
	case errors.Is(err, accounts.ErrNotFound), errors.Is(err, accessrequests.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, accessrequests.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", "request has already been decided")
	case errors.Is(err, admin.ErrSelfModification):
		writeError(w, http.StatusConflict, "self_modification", "administrators cannot demote or deactivate themselves")
	case errors.Is(err, accounts.ErrDuplicate):
		writeError(w, http.StatusConflict, "duplicate_account", "an account with these details already exists")
	case errors.Is(err, errors.ErrStorage):
		writeStorageError(w)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "something went wrong, please try again")
	}
}
