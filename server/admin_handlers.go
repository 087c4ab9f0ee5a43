package server

import (
	"net/http"

	"github.com/jrsteele09/research-portal/accessrequests"
	"github.com/jrsteele09/research-portal/accounts"
)

type setActiveRequest struct {
	Active *bool `json:"active"`
}

type setApprovedRequest struct {
	Approved *bool `json:"approved"`
}

type setRoleRequest struct {
	Role accounts.Role `json:"role"`
}

type decisionRequest struct {
	Note string `json:"note"`
}

// decisionResponse reports a stored decision. Provisioned is false when the approval was stored
// but the account could not be created; reprovision retries it.
type decisionResponse struct {
	Request     *accessrequests.AccessRequest `json:"request"`
	Provisioned bool                          `json:"provisioned"`
}

func (s *Server) AdminListAccountsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset, limit := pagination(r)
		resp, err := s.services.Admin.ListAccounts(r.Context(), AccountFromContext(r.Context()), offset, limit)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) AdminSetActiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req setActiveRequest
		if !readJSON(w, r, &req) {
			return
		}
		if req.Active == nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "active is required")
			return
		}
		err := s.services.Admin.SetActive(r.Context(), AccountFromContext(r.Context()), r.PathValue("id"), *req.Active)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) AdminSetApprovedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req setApprovedRequest
		if !readJSON(w, r, &req) {
			return
		}
		if req.Approved == nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "approved is required")
			return
		}
		err := s.services.Admin.SetApproved(r.Context(), AccountFromContext(r.Context()), r.PathValue("id"), *req.Approved)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) AdminSetRoleHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req setRoleRequest
		if !readJSON(w, r, &req) {
			return
		}
		err := s.services.Admin.SetRole(r.Context(), AccountFromContext(r.Context()), r.PathValue("id"), req.Role)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) AdminListAccessRequestsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset, limit := pagination(r)
		status := accessrequests.Status(r.URL.Query().Get("status"))
		resp, err := s.services.AccessRequests.List(r.Context(), AccountFromContext(r.Context()), status, offset, limit)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) AdminGetAccessRequestHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		request, err := s.services.AccessRequests.Get(r.Context(), AccountFromContext(r.Context()), r.PathValue("id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, request)
	}
}

func (s *Server) AdminApproveAccessRequestHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req decisionRequest
		if !readJSON(w, r, &req) {
			return
		}
		request, err := s.services.AccessRequests.Approve(r.Context(), AccountFromContext(r.Context()), r.PathValue("id"), req.Note)
		if err != nil && request == nil {
			writeServiceError(w, err)
			return
		}
		if err != nil {
			// The decision stands; only provisioning needs a retry
			s.logger.Warn().Err(err).Str("access_request_id", request.ID).Msg("[Server.AdminApproveAccessRequestHandler] provisioning failed")
			writeJSON(w, http.StatusAccepted, decisionResponse{Request: request})
			return
		}
		writeJSON(w, http.StatusOK, decisionResponse{Request: request, Provisioned: true})
	}
}

func (s *Server) AdminDenyAccessRequestHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req decisionRequest
		if !readJSON(w, r, &req) {
			return
		}
		request, err := s.services.AccessRequests.Deny(r.Context(), AccountFromContext(r.Context()), r.PathValue("id"), req.Note)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, request)
	}
}

func (s *Server) AdminReprovisionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.services.AccessRequests.Reprovision(r.Context(), AccountFromContext(r.Context()), r.PathValue("id")); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) AdminAuditHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset, limit := pagination(r)
		resp, err := s.services.Admin.ListAudit(r.Context(), AccountFromContext(r.Context()), offset, limit)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
