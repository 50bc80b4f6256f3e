// Package audit records privilege changes. Entries are append-only facts:
// nothing in this package can update or delete one once written.
package audit

import (
	"time"

	id "primegate/pkg/domain"
	"primegate/internal/records"
)

// Entry captures one role/approval transition. Before/after values are stored
// so the trail is readable without replaying history.
type Entry struct {
	ID                    id.EntryID
	ActorPrincipalID      id.PrincipalID
	TargetPrincipalID     id.PrincipalID
	PreviousRole          records.Role
	NewRole               records.Role
	PreviousApprovalState records.ApprovalState
	NewApprovalState      records.ApprovalState
	Timestamp             time.Time
	RequestID             string
}

// Filter narrows a query. Zero-valued fields match everything.
type Filter struct {
	TargetPrincipalID id.PrincipalID
	ActorPrincipalID  id.PrincipalID
	Since             time.Time
	Until             time.Time
}

// Matches reports whether the entry satisfies the filter.
func (f Filter) Matches(e Entry) bool {
	if !f.TargetPrincipalID.IsZero() && e.TargetPrincipalID != f.TargetPrincipalID {
		return false
	}
	if !f.ActorPrincipalID.IsZero() && e.ActorPrincipalID != f.ActorPrincipalID {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && e.Timestamp.After(f.Until) {
		return false
	}
	return true
}
