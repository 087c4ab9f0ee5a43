package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jrsteele09/research-portal/audit"
)

var _ audit.Repo = (*AuditStore)(nil)

type AuditStore struct {
	db *DB
}

func (s *AuditStore) Append(ctx context.Context, e *audit.Entry) error {
	var accountID any
	if e.AccountID != nil {
		accountID = *e.AccountID
	}
	_, err := s.db.exec(ctx, s.db.db, `
		INSERT INTO audit_log (id, occurred_at, account_id, action, resource, detail, origin)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, s.db.ts(e.Timestamp), accountID, e.Action, e.Resource, e.Detail, e.Origin,
	)
	if err != nil {
		return fmt.Errorf("[AuditStore.Append] %w", err)
	}
	return nil
}

// List pages newest first. IDs are ULIDs, so ID order is time order.
func (s *AuditStore) List(ctx context.Context, offset, limit int) (audit.ListResponse, error) {
	resp := audit.ListResponse{Offset: offset, Limit: limit, Entries: []audit.ListedEntry{}}

	if err := s.db.queryRow(ctx, s.db.db, `SELECT COUNT(*) FROM audit_log`).Scan(&resp.Total); err != nil {
		return audit.ListResponse{}, fmt.Errorf("[AuditStore.List] count: %w", err)
	}

	rows, err := s.db.query(ctx, s.db.db, `
		SELECT l.id, l.occurred_at, l.account_id, l.action, l.resource, l.detail, l.origin,
		       COALESCE(a.display_name, '')
		FROM audit_log l
		LEFT JOIN accounts a ON a.id = l.account_id
		ORDER BY l.id DESC
		LIMIT ? OFFSET ?`, pageLimit(limit), offset)
	if err != nil {
		return audit.ListResponse{}, fmt.Errorf("[AuditStore.List] %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e         audit.ListedEntry
			accountID sql.NullString
		)
		if err := rows.Scan(&e.ID, scanTime(&e.Timestamp), &accountID, &e.Action, &e.Resource,
			&e.Detail, &e.Origin, &e.AccountName); err != nil {
			return audit.ListResponse{}, fmt.Errorf("[AuditStore.List] scan: %w", err)
		}
		if accountID.Valid {
			id := accountID.String
			e.AccountID = &id
		}
		resp.Entries = append(resp.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return audit.ListResponse{}, fmt.Errorf("[AuditStore.List] %w", err)
	}
	return resp, nil
}
