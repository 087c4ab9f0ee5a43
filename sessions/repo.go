package sessions

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound           = errors.New("session not found")
	ErrAccountUnavailable = errors.New("account is not active and approved")
)

// Repo defines the interface for session storage operations
type Repo interface {
	// Create persists the session only if the owning account is active and approved at the
	// moment of the write, otherwise it returns ErrAccountUnavailable
	Create(ctx context.Context, session *Session) error

	// Get retrieves a session by token hash, ErrNotFound when absent
	Get(ctx context.Context, tokenHash string) (*Session, error)

	// Delete removes a session. Deleting an unknown session is not an error.
	Delete(ctx context.Context, tokenHash string) error

	// DeleteForAccount revokes every session owned by the account
	DeleteForAccount(ctx context.Context, accountID string) (int64, error)

	// DeleteExpired removes sessions whose expiry is at or before now
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	CountForAccount(ctx context.Context, accountID string) (int, error)
}
