package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jrsteele09/research-portal/accessrequests"
)

var _ accessrequests.Repo = (*AccessRequestStore)(nil)

const accessRequestColumns = `id, name, email, org_unit, position_title, external_employee, capabilities,
	justification, duration, status, submitted_at, decided_at, decided_by, decision_note`

type AccessRequestStore struct {
	db *DB
}

func (s *AccessRequestStore) Create(ctx context.Context, r *accessrequests.AccessRequest) error {
	_, err := s.db.exec(ctx, s.db.db, `
		INSERT INTO access_requests (`+accessRequestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.Email, r.OrgUnit, r.Position, r.ExternalEmployee, joinCapabilities(r.Capabilities),
		r.Justification, string(r.Duration), string(r.Status), s.db.ts(r.SubmittedAt),
		s.db.nullTS(r.DecidedAt), nullString(r.DecidedBy), r.DecisionNote,
	)
	if err != nil {
		return fmt.Errorf("[AccessRequestStore.Create] %w", err)
	}
	return nil
}

func (s *AccessRequestStore) Get(ctx context.Context, id string) (*accessrequests.AccessRequest, error) {
	r, err := scanAccessRequest(s.db.queryRow(ctx, s.db.db,
		`SELECT `+accessRequestColumns+` FROM access_requests WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, accessrequests.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[AccessRequestStore.Get] %w", err)
	}
	return r, nil
}

func (s *AccessRequestStore) List(ctx context.Context, status accessrequests.Status, offset, limit int) (accessrequests.ListResponse, error) {
	resp := accessrequests.ListResponse{Offset: offset, Limit: limit, Requests: []*accessrequests.AccessRequest{}}

	where := ""
	var args []any
	if status != "" {
		where = ` WHERE status = ?`
		args = append(args, string(status))
	}

	if err := s.db.queryRow(ctx, s.db.db, `SELECT COUNT(*) FROM access_requests`+where, args...).Scan(&resp.Total); err != nil {
		return accessrequests.ListResponse{}, fmt.Errorf("[AccessRequestStore.List] count: %w", err)
	}

	rows, err := s.db.query(ctx, s.db.db,
		`SELECT `+accessRequestColumns+` FROM access_requests`+where+` ORDER BY submitted_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, pageLimit(limit), offset)...)
	if err != nil {
		return accessrequests.ListResponse{}, fmt.Errorf("[AccessRequestStore.List] %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanAccessRequest(rows)
		if err != nil {
			return accessrequests.ListResponse{}, fmt.Errorf("[AccessRequestStore.List] scan: %w", err)
		}
		resp.Requests = append(resp.Requests, r)
	}
	if err := rows.Err(); err != nil {
		return accessrequests.ListResponse{}, fmt.Errorf("[AccessRequestStore.List] %w", err)
	}
	return resp, nil
}

// Decide is a conditional update on status = 'pending', so two concurrent decisions cannot both win
func (s *AccessRequestStore) Decide(ctx context.Context, id string, d accessrequests.Decision) error {
	return s.db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := s.db.exec(ctx, tx, `
			UPDATE access_requests
			SET status = ?, decided_at = ?, decided_by = ?, decision_note = ?
			WHERE id = ? AND status = ?`,
			string(d.To), s.db.ts(d.At), d.DecidedBy, d.Note, id, string(accessrequests.StatusPending),
		)
		if err != nil {
			return fmt.Errorf("[AccessRequestStore.Decide] %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("[AccessRequestStore.Decide] rows affected: %w", err)
		}
		if n == 1 {
			return nil
		}

		var exists int
		err = s.db.queryRow(ctx, tx, `SELECT 1 FROM access_requests WHERE id = ?`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return accessrequests.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("[AccessRequestStore.Decide] %w", err)
		}
		return accessrequests.ErrInvalidTransition
	})
}

func scanAccessRequest(row rowScanner) (*accessrequests.AccessRequest, error) {
	var (
		r          accessrequests.AccessRequest
		caps       string
		duration   string
		status     string
		decidedAt  time.Time
		hasDecided bool
		decidedBy  sql.NullString
	)
	err := row.Scan(&r.ID, &r.Name, &r.Email, &r.OrgUnit, &r.Position, &r.ExternalEmployee, &caps,
		&r.Justification, &duration, &status, scanTime(&r.SubmittedAt),
		scanNullTime(&decidedAt, &hasDecided), &decidedBy, &r.DecisionNote)
	if err != nil {
		return nil, err
	}
	r.Capabilities = splitCapabilities(caps)
	r.Duration = accessrequests.Duration(duration)
	r.Status = accessrequests.Status(status)
	if hasDecided {
		r.DecidedAt = &decidedAt
	}
	if decidedBy.Valid {
		by := decidedBy.String
		r.DecidedBy = &by
	}
	return &r, nil
}

func joinCapabilities(caps []accessrequests.Capability) string {
	parts := make([]string, len(caps))
	for i, c := range caps {
		parts[i] = string(c)
	}
	return strings.Join(parts, ",")
}

func splitCapabilities(s string) []accessrequests.Capability {
	caps := []accessrequests.Capability{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			caps = append(caps, accessrequests.Capability(part))
		}
	}
	return caps
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
