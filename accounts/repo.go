package accounts

import (
	"context"
	"time"
)

// Repo persists accounts. Lookups by e-mail and username are case-insensitive; implementations
// return ErrNotFound for missing rows and ErrDuplicate for e-mail or username collisions.
type Repo interface {
	Create(ctx context.Context, account *Account) error
	GetByID(ctx context.Context, id string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByUsernameOrEmail(ctx context.Context, identifier string) (*Account, error)
	UpdateProfile(ctx context.Context, id string, profile Profile) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	SetPasswordHash(ctx context.Context, id, hash string) error
	SetActive(ctx context.Context, id string, active bool) error
	SetApproved(ctx context.Context, id string, approved bool) error
	SetRole(ctx context.Context, id string, role Role) error
	List(ctx context.Context, offset, limit int) (ListResponse, error)
}
