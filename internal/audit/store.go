package audit

import "context"

// Store persists audit entries. Append-only by construction: the interface
// exposes no update or delete.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	// Query returns matching entries ordered by timestamp ascending.
	Query(ctx context.Context, filter Filter) ([]Entry, error)
}
