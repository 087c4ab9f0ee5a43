package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
)

// ErrInvalidToken wraps every verification failure
var ErrInvalidToken = errors.New("invalid identity token")

// GoogleIssuers are both spellings Google puts in the iss claim
var GoogleIssuers = []string{"https://accounts.google.com", "accounts.google.com"}

// Identity is what a verified ID token asserts about its subject
type Identity struct {
	Subject       string
	Email         string
	DisplayName   string
	EmailVerified bool
	Picture       string
	Issuer        string
	Nonce         string
}

type Verifier interface {
	Verify(ctx context.Context, rawIDToken string) (*Identity, error)
}

type Config struct {
	ClientID string
	Issuers  []string
	Now      func() time.Time
}

var _ Verifier = (*OIDCVerifier)(nil)

// OIDCVerifier checks ID tokens against the issuer's signing keys, the client ID and an
// allow-list of issuer strings.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
	issuers  map[string]bool
}

// NewOIDCVerifier verifies against the provider's published JWKS. go-oidc caches the keys and
// refreshes them when it sees an unknown key ID.
func NewOIDCVerifier(provider *oidc.Provider, cfg Config) *OIDCVerifier {
	return &OIDCVerifier{
		verifier: provider.Verifier(oidcConfig(cfg)),
		issuers:  issuerSet(cfg.Issuers),
	}
}

// NewKeySetVerifier verifies against an explicit key set
func NewKeySetVerifier(keySet oidc.KeySet, cfg Config) *OIDCVerifier {
	issuers := cfg.Issuers
	if len(issuers) == 0 {
		issuers = GoogleIssuers
	}
	return &OIDCVerifier{
		verifier: oidc.NewVerifier(issuers[0], keySet, oidcConfig(cfg)),
		issuers:  issuerSet(issuers),
	}
}

func oidcConfig(cfg Config) *oidc.Config {
	// go-oidc compares against a single issuer string; the allow-list is checked in Verify
	return &oidc.Config{
		ClientID:        cfg.ClientID,
		SkipIssuerCheck: true,
		Now:             cfg.Now,
	}
}

func issuerSet(issuers []string) map[string]bool {
	if len(issuers) == 0 {
		issuers = GoogleIssuers
	}
	set := make(map[string]bool, len(issuers))
	for _, iss := range issuers {
		set[strings.TrimSpace(iss)] = true
	}
	return set
}

type claims struct {
	Subject       string   `json:"sub"`
	Email         string   `json:"email"`
	EmailVerified flexBool `json:"email_verified"`
	Name          string   `json:"name"`
	Picture       string   `json:"picture"`
	Nonce         string   `json:"nonce"`
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawIDToken string) (*Identity, error) {
	if rawIDToken == "" {
		return nil, fmt.Errorf("[OIDCVerifier.Verify] empty token: %w", ErrInvalidToken)
	}

	idToken, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("[OIDCVerifier.Verify] %v: %w", err, ErrInvalidToken)
	}

	if !v.issuers[idToken.Issuer] {
		return nil, fmt.Errorf("[OIDCVerifier.Verify] untrusted issuer %q: %w", idToken.Issuer, ErrInvalidToken)
	}

	var c claims
	if err := idToken.Claims(&c); err != nil {
		return nil, fmt.Errorf("[OIDCVerifier.Verify] failed to extract claims: %v: %w", err, ErrInvalidToken)
	}
	if c.Email == "" {
		return nil, fmt.Errorf("[OIDCVerifier.Verify] token has no email: %w", ErrInvalidToken)
	}
	if !c.EmailVerified {
		return nil, fmt.Errorf("[OIDCVerifier.Verify] email not verified by issuer: %w", ErrInvalidToken)
	}

	return &Identity{
		Subject:       idToken.Subject,
		Email:         strings.ToLower(c.Email),
		DisplayName:   c.Name,
		EmailVerified: bool(c.EmailVerified),
		Picture:       c.Picture,
		Issuer:        idToken.Issuer,
		Nonce:         c.Nonce,
	}, nil
}

// flexBool accepts true, "true" and their false counterparts; some issuers send the string form
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var v bool
	if err := json.Unmarshal(data, &v); err == nil {
		*b = flexBool(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*b = flexBool(strings.EqualFold(s, "true"))
	return nil
}
