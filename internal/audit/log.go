package audit

import (
	"context"
	"log/slog"

	id "primegate/pkg/domain"
	dErrors "primegate/pkg/domain-errors"
	"primegate/pkg/requestcontext"
)

// Mirror fans an entry out to a secondary sink (e.g. a broker topic) after the
// store write succeeded. Mirrors are fail-open: the store is the source of
// truth and mirror failures never fail the business operation.
type Mirror interface {
	Emit(ctx context.Context, entry Entry)
}

// Log is the append-only audit service. Persistence is fail-closed: callers
// must not report a privilege change as done unless Append returned nil.
type Log struct {
	store  Store
	logger *slog.Logger
	mirror Mirror
}

// Option configures the Log.
type Option func(*Log)

// WithMirror attaches a secondary sink.
func WithMirror(m Mirror) Option {
	return func(l *Log) { l.mirror = m }
}

func NewLog(store Store, logger *slog.Logger, opts ...Option) *Log {
	l := &Log{store: store, logger: logger}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append stamps and persists one entry. The entry must describe an effective
// transition; idempotent no-ops are filtered out by the caller.
func (l *Log) Append(ctx context.Context, entry Entry) error {
	if entry.ID.IsNil() {
		entry.ID = id.NewEntryID()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = requestcontext.Now(ctx)
	}
	if entry.RequestID == "" {
		entry.RequestID = requestcontext.RequestID(ctx)
	}

	if err := l.store.Append(ctx, entry); err != nil {
		l.logger.ErrorContext(ctx, "audit append failed",
			"target", entry.TargetPrincipalID,
			"actor", entry.ActorPrincipalID,
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist audit entry")
	}

	if l.mirror != nil {
		l.mirror.Emit(ctx, entry)
	}
	return nil
}

// Query returns matching entries ordered by timestamp ascending. Authorization
// (owner-only) is enforced by the engine before this is called.
func (l *Log) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	entries, err := l.store.Query(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to query audit entries")
	}
	return entries, nil
}
