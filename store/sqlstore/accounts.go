package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/research-portal/accounts"
)

var _ accounts.Repo = (*AccountStore)(nil)

const accountColumns = `id, email, username, display_name, org_unit, role, password_hash,
	active, approved, external, avatar_url, created_at, last_login_at`

type AccountStore struct {
	db *DB
}

func (s *AccountStore) Create(ctx context.Context, a *accounts.Account) error {
	a.Email = accounts.NormaliseEmail(a.Email)
	a.Username = accounts.NormaliseUsername(a.Username)

	_, err := s.db.exec(ctx, s.db.db, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Email, a.Username, a.DisplayName, a.OrgUnit, string(a.Role), a.PasswordHash,
		a.Active, a.Approved, a.External, a.AvatarURL, s.db.ts(a.CreatedAt), s.db.nullTS(a.LastLoginAt),
	)
	if isUniqueViolation(err) {
		return accounts.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("[AccountStore.Create] %w", err)
	}
	return nil
}

func (s *AccountStore) GetByID(ctx context.Context, id string) (*accounts.Account, error) {
	return s.getOne(ctx, "GetByID", `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
}

func (s *AccountStore) GetByEmail(ctx context.Context, email string) (*accounts.Account, error) {
	return s.getOne(ctx, "GetByEmail", `SELECT `+accountColumns+` FROM accounts WHERE email = ?`,
		accounts.NormaliseEmail(email))
}

// GetByUsernameOrEmail matches either column. Local usernames cannot contain '@', so at most one
// account matches.
func (s *AccountStore) GetByUsernameOrEmail(ctx context.Context, identifier string) (*accounts.Account, error) {
	key := accounts.NormaliseEmail(identifier)
	return s.getOne(ctx, "GetByUsernameOrEmail",
		`SELECT `+accountColumns+` FROM accounts WHERE username = ? OR email = ? LIMIT 1`, key, key)
}

func (s *AccountStore) UpdateProfile(ctx context.Context, id string, p accounts.Profile) error {
	return s.update(ctx, "UpdateProfile",
		`UPDATE accounts SET display_name = ?, external = ?, avatar_url = ? WHERE id = ?`,
		p.DisplayName, p.External, p.AvatarURL, id)
}

func (s *AccountStore) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return s.update(ctx, "TouchLastLogin", `UPDATE accounts SET last_login_at = ? WHERE id = ?`, s.db.ts(at), id)
}

func (s *AccountStore) SetPasswordHash(ctx context.Context, id, hash string) error {
	return s.update(ctx, "SetPasswordHash", `UPDATE accounts SET password_hash = ? WHERE id = ?`, hash, id)
}

func (s *AccountStore) SetActive(ctx context.Context, id string, active bool) error {
	return s.update(ctx, "SetActive", `UPDATE accounts SET active = ? WHERE id = ?`, active, id)
}

func (s *AccountStore) SetApproved(ctx context.Context, id string, approved bool) error {
	return s.update(ctx, "SetApproved", `UPDATE accounts SET approved = ? WHERE id = ?`, approved, id)
}

func (s *AccountStore) SetRole(ctx context.Context, id string, role accounts.Role) error {
	if !role.Valid() {
		return accounts.ErrInvalidRole
	}
	return s.update(ctx, "SetRole", `UPDATE accounts SET role = ? WHERE id = ?`, string(role), id)
}

func (s *AccountStore) List(ctx context.Context, offset, limit int) (accounts.ListResponse, error) {
	resp := accounts.ListResponse{Offset: offset, Limit: limit, Accounts: []*accounts.Account{}}

	if err := s.db.queryRow(ctx, s.db.db, `SELECT COUNT(*) FROM accounts`).Scan(&resp.Total); err != nil {
		return accounts.ListResponse{}, fmt.Errorf("[AccountStore.List] count: %w", err)
	}

	rows, err := s.db.query(ctx, s.db.db,
		`SELECT `+accountColumns+` FROM accounts ORDER BY created_at, email LIMIT ? OFFSET ?`,
		pageLimit(limit), offset)
	if err != nil {
		return accounts.ListResponse{}, fmt.Errorf("[AccountStore.List] %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return accounts.ListResponse{}, fmt.Errorf("[AccountStore.List] scan: %w", err)
		}
		resp.Accounts = append(resp.Accounts, a)
	}
	if err := rows.Err(); err != nil {
		return accounts.ListResponse{}, fmt.Errorf("[AccountStore.List] %w", err)
	}
	return resp, nil
}

func (s *AccountStore) getOne(ctx context.Context, op, query string, args ...any) (*accounts.Account, error) {
	a, err := scanAccount(s.db.queryRow(ctx, s.db.db, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, accounts.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[AccountStore.%s] %w", op, err)
	}
	return a, nil
}

func (s *AccountStore) update(ctx context.Context, op, query string, args ...any) error {
	res, err := s.db.exec(ctx, s.db.db, query, args...)
	if err != nil {
		return fmt.Errorf("[AccountStore.%s] %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("[AccountStore.%s] rows affected: %w", op, err)
	}
	if n == 0 {
		return accounts.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*accounts.Account, error) {
	var (
		a         accounts.Account
		role      string
		lastLogin time.Time
		hasLogin  bool
	)
	err := row.Scan(
		&a.ID, &a.Email, &a.Username, &a.DisplayName, &a.OrgUnit, &role, &a.PasswordHash,
		&a.Active, &a.Approved, &a.External, &a.AvatarURL,
		scanTime(&a.CreatedAt), scanNullTime(&lastLogin, &hasLogin),
	)
	if err != nil {
		return nil, err
	}
	a.Role = accounts.Role(role)
	if hasLogin {
		a.LastLoginAt = &lastLogin
	}
	return &a, nil
}
