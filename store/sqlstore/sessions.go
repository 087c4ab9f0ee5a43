package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/research-portal/sessions"
)

var _ sessions.Repo = (*SessionStore)(nil)

type SessionStore struct {
	db *DB
}

// Create locks the owning account row, re-checks its status and inserts the session in the same
// transaction. A concurrent deactivation either commits first (and the insert is refused) or waits
// for this transaction and then revokes the session it created.
func (s *SessionStore) Create(ctx context.Context, session *sessions.Session) error {
	err := s.db.withTx(ctx, func(tx *sql.Tx) error {
		var active, approved bool
		err := s.db.queryRow(ctx, tx,
			`SELECT active, approved FROM accounts WHERE id = ?`+s.db.forUpdate(), session.AccountID,
		).Scan(&active, &approved)
		if errors.Is(err, sql.ErrNoRows) {
			return sessions.ErrAccountUnavailable
		}
		if err != nil {
			return err
		}
		if !active || !approved {
			return sessions.ErrAccountUnavailable
		}

		_, err = s.db.exec(ctx, tx, `
			INSERT INTO sessions (token_hash, account_id, channel, created_at, expires_at, origin)
			VALUES (?, ?, ?, ?, ?, ?)`,
			session.TokenHash, session.AccountID, string(session.Channel),
			s.db.ts(session.CreatedAt), s.db.ts(session.ExpiresAt), session.Origin,
		)
		return err
	})
	if errors.Is(err, sessions.ErrAccountUnavailable) {
		return sessions.ErrAccountUnavailable
	}
	if err != nil {
		return fmt.Errorf("[SessionStore.Create] %w", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, tokenHash string) (*sessions.Session, error) {
	var (
		session sessions.Session
		channel string
	)
	err := s.db.queryRow(ctx, s.db.db, `
		SELECT token_hash, account_id, channel, created_at, expires_at, origin
		FROM sessions WHERE token_hash = ?`, tokenHash,
	).Scan(&session.TokenHash, &session.AccountID, &channel,
		scanTime(&session.CreatedAt), scanTime(&session.ExpiresAt), &session.Origin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sessions.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[SessionStore.Get] %w", err)
	}
	session.Channel = sessions.Channel(channel)
	return &session, nil
}

func (s *SessionStore) Delete(ctx context.Context, tokenHash string) error {
	if _, err := s.db.exec(ctx, s.db.db, `DELETE FROM sessions WHERE token_hash = ?`, tokenHash); err != nil {
		return fmt.Errorf("[SessionStore.Delete] %w", err)
	}
	return nil
}

func (s *SessionStore) DeleteForAccount(ctx context.Context, accountID string) (int64, error) {
	res, err := s.db.exec(ctx, s.db.db, `DELETE FROM sessions WHERE account_id = ?`, accountID)
	if err != nil {
		return 0, fmt.Errorf("[SessionStore.DeleteForAccount] %w", err)
	}
	return res.RowsAffected()
}

func (s *SessionStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.exec(ctx, s.db.db, `DELETE FROM sessions WHERE expires_at <= ?`, s.db.ts(now))
	if err != nil {
		return 0, fmt.Errorf("[SessionStore.DeleteExpired] %w", err)
	}
	return res.RowsAffected()
}

func (s *SessionStore) CountForAccount(ctx context.Context, accountID string) (int, error) {
	var n int
	if err := s.db.queryRow(ctx, s.db.db, `SELECT COUNT(*) FROM sessions WHERE account_id = ?`, accountID).Scan(&n); err != nil {
		return 0, fmt.Errorf("[SessionStore.CountForAccount] %w", err)
	}
	return n, nil
}
