package server

import (
	"net/http"
	"net/url"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/research-portal/auth"
	"golang.org/x/oauth2"
)

type googleTokenRequest struct {
	IDToken string `json:"id_token"`
}

// GoogleStartHandler redirects the browser to Google with a fresh state, nonce and PKCE verifier
func (s *Server) GoogleStartHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.google == nil {
			notFound(w, r)
			return
		}

		state, signed, err := s.google.newState(r.URL.Query().Get("return_to"))
		if err != nil {
			s.logger.Err(err).Msg("[Server.GoogleStartHandler] failed to create state")
			writeError(w, http.StatusInternalServerError, "internal_error", "something went wrong, please try again")
			return
		}
		setStateCookie(w, r, signed)

		authURL := s.google.oauth2.AuthCodeURL(state.State,
			oidc.Nonce(state.Nonce),
			oauth2.S256ChallengeOption(state.CodeVerifier),
			oauth2.SetAuthURLParam("prompt", "select_account"),
		)
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// GoogleCallbackHandler completes the redirect flow: it checks the state cookie, exchanges the code
// and signs in with the returned ID token
func (s *Server) GoogleCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.google == nil {
			notFound(w, r)
			return
		}

		query := r.URL.Query()
		cookie, err := r.Cookie(oauthStateCookieName)
		clearStateCookie(w, r)
		if err != nil {
			s.redirectLoginFailure(w, r, auth.ReasonInvalidExternalToken)
			return
		}
		state, err := s.google.parseState(cookie.Value, query.Get("state"))
		if err != nil {
			s.logger.Warn().Err(err).Msg("[Server.GoogleCallbackHandler] rejected state")
			s.redirectLoginFailure(w, r, auth.ReasonInvalidExternalToken)
			return
		}

		if query.Get("error") != "" || query.Get("code") == "" {
			s.redirectLoginFailure(w, r, auth.ReasonInvalidExternalToken)
			return
		}

		token, err := s.google.oauth2.Exchange(r.Context(), query.Get("code"), oauth2.VerifierOption(state.CodeVerifier))
		if err != nil {
			s.logger.Warn().Err(err).Msg("[Server.GoogleCallbackHandler] code exchange failed")
			s.redirectLoginFailure(w, r, auth.ReasonInvalidExternalToken)
			return
		}
		rawIDToken, ok := token.Extra("id_token").(string)
		if !ok || rawIDToken == "" {
			s.redirectLoginFailure(w, r, auth.ReasonInvalidExternalToken)
			return
		}

		result := s.services.Sessions.LoginExternal(r.Context(), rawIDToken, auth.WithExpectedNonce(state.Nonce))
		if !result.Success {
			s.redirectLoginFailure(w, r, result.ReasonCode)
			return
		}
		s.setSessionCookie(w, r, result.SessionToken, result.ExpiresAt)
		http.Redirect(w, r, state.ReturnTo, http.StatusSeeOther)
	}
}

// GoogleTokenHandler signs in with an ID token obtained by the browser (Google Identity Services button)
func (s *Server) GoogleTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req googleTokenRequest
		if !readJSON(w, r, &req) {
			return
		}
		result := s.services.Sessions.LoginExternal(r.Context(), req.IDToken)
		s.writeLoginResult(w, r, result)
	}
}

func (s *Server) redirectLoginFailure(w http.ResponseWriter, r *http.Request, code auth.ReasonCode) {
	http.Redirect(w, r, RouteLoginPage+"?error="+url.QueryEscape(string(code)), http.StatusSeeOther)
}
