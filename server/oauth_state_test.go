package server

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTestFlow(now *time.Time) *googleFlow {
	return &googleFlow{
		oauth2:      &oauth2.Config{ClientID: "portal-client"},
		stateSecret: []byte("state-signing-secret"),
		nowTime:     func() time.Time { return *now },
	}
}

func TestSafeReturnPath(t *testing.T) {
	tests := map[string]string{
		"":                     "/",
		"/reports":             "/reports",
		"/reports?year=2024":   "/reports?year=2024",
		"https://evil.example": "/",
		"//evil.example":       "/",
		"/\\evil.example":      "/",
		"reports":              "/",
	}
	for input, want := range tests {
		require.Equal(t, want, safeReturnPath(input), input)
	}
}

func TestOAuthStateRoundTrip(t *testing.T) {
	now := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	flow := newTestFlow(&now)

	state, signed, err := flow.newState("/dashboard")
	require.NoError(t, err)
	require.NotEmpty(t, state.Nonce)
	require.NotEmpty(t, state.CodeVerifier)

	parsed, err := flow.parseState(signed, state.State)
	require.NoError(t, err)
	require.Equal(t, state.Nonce, parsed.Nonce)
	require.Equal(t, state.CodeVerifier, parsed.CodeVerifier)
	require.Equal(t, "/dashboard", parsed.ReturnTo)

	_, err = flow.parseState(signed, "other-state")
	require.Error(t, err)
	_, err = flow.parseState(signed, "")
	require.Error(t, err)

	now = now.Add(oauthStateTTL + time.Second)
	_, err = flow.parseState(signed, state.State)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestOAuthStateRejectsForeignSignatures(t *testing.T) {
	now := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	flow := newTestFlow(&now)
	state, _, err := flow.newState("/")
	require.NoError(t, err)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, state).SignedString([]byte("another-secret"))
	require.NoError(t, err)
	_, err = flow.parseState(forged, state.State)
	require.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, state).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = flow.parseState(unsigned, state.State)
	require.Error(t, err)
}
