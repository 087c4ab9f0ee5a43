package audit

import (
	"context"
	"strings"
	"time"
)

// Action labels written to the audit log
const (
	ActionLoginSuccess         = "login.success"
	ActionLoginFailure         = "login.failure"
	ActionLogout               = "logout"
	ActionSessionExpired       = "session.expired"
	ActionAccountRegister      = "account.register"
	ActionPasswordChange       = "account.password_change"
	ActionAccountActivate      = "account.activate"
	ActionAccountDeactivate    = "account.deactivate"
	ActionAccountApprove       = "account.approve"
	ActionAccountRoleChange    = "account.role_change"
	ActionAccessRequestSubmit  = "access_request.submit"
	ActionAccessRequestApprove = "access_request.approve"
	ActionAccessRequestDeny    = "access_request.deny"
	ActionAuthzDenied          = "authz.denied"
)

// Entry is one append-only audit row. AccountID is nil for anonymous or system actions.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	AccountID *string   `json:"account_id,omitempty"`
	Action    string    `json:"action"`
	Resource  string    `json:"resource"`
	Detail    string    `json:"detail,omitempty"`
	Origin    string    `json:"origin,omitempty"`
}

// ListedEntry is an entry joined to the acting account's display name
type ListedEntry struct {
	Entry
	AccountName string `json:"account_name,omitempty"`
}

type ListResponse struct {
	Entries []ListedEntry `json:"entries"`
	Total   int           `json:"total"`
	Offset  int           `json:"offset"`
	Limit   int           `json:"limit"`
}

type Repo interface {
	Append(ctx context.Context, entry *Entry) error
	// List returns entries newest first
	List(ctx context.Context, offset, limit int) (ListResponse, error)
}

type originKey struct{}

// WithOrigin attaches the client address to the context for audit logging
func WithOrigin(ctx context.Context, origin string) context.Context {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return ctx
	}
	return context.WithValue(ctx, originKey{}, origin)
}

// OriginFromContext extracts the client address if present
func OriginFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(originKey{}).(string); ok {
		return v
	}
	return ""
}
