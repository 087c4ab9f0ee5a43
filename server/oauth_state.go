package server

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

const (
	// oauthStateCookieName holds the signed state between the redirect to Google and the callback
	oauthStateCookieName = "portal_oauth_state"
	oauthStateTTL        = 10 * time.Minute
)

type googleFlow struct {
	oauth2      *oauth2.Config
	stateSecret []byte
	nowTime     func() time.Time
}

// oauthState is the signed content of the state cookie
type oauthState struct {
	State        string `json:"st"`
	Nonce        string `json:"nonce"`
	CodeVerifier string `json:"cv"`
	ReturnTo     string `json:"ret,omitempty"`
	jwt.RegisteredClaims
}

func randomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("[server.randomString] %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (g *googleFlow) newState(returnTo string) (*oauthState, string, error) {
	state, err := randomString(24)
	if err != nil {
		return nil, "", err
	}
	nonce, err := randomString(24)
	if err != nil {
		return nil, "", err
	}

	now := g.nowTime()
	claims := &oauthState{
		State:        state,
		Nonce:        nonce,
		CodeVerifier: oauth2.GenerateVerifier(),
		ReturnTo:     safeReturnPath(returnTo),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(oauthStateTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.stateSecret)
	if err != nil {
		return nil, "", fmt.Errorf("[googleFlow.newState] sign: %w", err)
	}
	return claims, signed, nil
}

// parseState verifies the cookie signature and expiry and that it belongs to the returned state
func (g *googleFlow) parseState(signed, returnedState string) (*oauthState, error) {
	claims := &oauthState{}
	_, err := jwt.ParseWithClaims(signed, claims, func(t *jwt.Token) (any, error) {
		return g.stateSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(g.nowTime),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("[googleFlow.parseState] %w", err)
	}
	if returnedState == "" || subtle.ConstantTimeCompare([]byte(claims.State), []byte(returnedState)) != 1 {
		return nil, fmt.Errorf("[googleFlow.parseState] state mismatch")
	}
	return claims, nil
}

// safeReturnPath keeps the post-login redirect on this site
func safeReturnPath(p string) string {
	if p == "" || !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return "/"
	}
	return p
}

func setStateCookie(w http.ResponseWriter, r *http.Request, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    value,
		Path:     "/auth/google",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(oauthStateTTL.Seconds()),
	})
}

func clearStateCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    "",
		Path:     "/auth/google",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
