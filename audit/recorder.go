package audit

import (
	"context"
	"time"

	"github.com/jrsteele09/research-portal/internal/ids"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Recorder writes audit entries on behalf of the services. Recording is best effort: a failed
// write is logged and never reaches the caller.
type Recorder struct {
	repo    Repo
	logger  zerolog.Logger
	nowTime func() time.Time
}

type RecorderOption func(r *Recorder)

func WithRecorderClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		r.nowTime = now
	}
}

func WithRecorderLogger(logger zerolog.Logger) RecorderOption {
	return func(r *Recorder) {
		r.logger = logger
	}
}

func NewRecorder(repo Repo, options ...RecorderOption) *Recorder {
	r := &Recorder{
		repo:    repo,
		logger:  log.Logger,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Record appends one entry. The origin is taken from the context (see WithOrigin).
func (r *Recorder) Record(ctx context.Context, accountID *string, action, resource, detail string) {
	now := r.nowTime().UTC()
	entry := &Entry{
		ID:        ids.NewSortable(now),
		Timestamp: now,
		AccountID: accountID,
		Action:    action,
		Resource:  resource,
		Detail:    detail,
		Origin:    OriginFromContext(ctx),
	}

	if err := r.repo.Append(ctx, entry); err != nil {
		r.logger.Err(err).
			Str("action", action).
			Str("resource", resource).
			Msg("[Recorder.Record] failed to write audit entry")
	}
}

func (r *Recorder) List(ctx context.Context, offset, limit int) (ListResponse, error) {
	return r.repo.List(ctx, offset, limit)
}

// AccountRef is a convenience for the *string account column
func AccountRef(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}
