package sessions

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"
)

// Channel is the login route a session was issued through. It selects the session lifetime.
type Channel string

const (
	ChannelLocal         Channel = "local"          // Username or e-mail and password
	ChannelLocalRemember Channel = "local_remember" // Local login with "remember me" ticked
	ChannelExternal      Channel = "external"       // Google sign-in
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelLocal, ChannelLocalRemember, ChannelExternal:
		return true
	}
	return false
}

const tokenBytes = 32 // 256 bits

// Session is a persisted, revocable proof of a prior successful login.
// The raw token is handed to the browser; only its SHA-256 digest is stored.
type Session struct {
	TokenHash string    // hex SHA-256 of the raw token
	AccountID string    // Owning account
	Channel   Channel   // Login route used
	CreatedAt time.Time // Issue time
	ExpiresAt time.Time // CreatedAt + Policy.Duration(Channel)
	Origin    string    // Client address at issue time
}

// Expired reports whether the session is past its expiry at now
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Policy maps each channel to the lifetime of sessions issued through it
type Policy struct {
	Local         time.Duration
	LocalRemember time.Duration
	External      time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		Local:         8 * time.Hour,
		LocalRemember: 30 * 24 * time.Hour,
		External:      8 * time.Hour,
	}
}

func (p Policy) Duration(c Channel) time.Duration {
	switch c {
	case ChannelLocalRemember:
		return p.LocalRemember
	case ChannelExternal:
		return p.External
	default:
		return p.Local
	}
}

// NewToken returns a URL-safe token carrying 256 bits of entropy
func NewToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("[sessions.NewToken] failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashToken is the lookup key stored for a raw token
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
