package records

import (
	"context"

	id "primegate/pkg/domain"
)

// Store is the versioned user record store. Implementations return sentinel
// errors (pkg/platform/sentinel) for infrastructure facts; services translate
// them into domain errors.
//
// The version is a per-record monotonic counter. PutIfVersion is the only
// mutation path after creation, which is what lets AssignRole do optimistic
// read-modify-write without multi-document transactions.
type Store interface {
	// Get returns the record and its current version, or ErrNotFound.
	Get(ctx context.Context, principalID id.PrincipalID) (UserRecord, int64, error)

	// FindByEmail returns the record registered under the email, or ErrNotFound.
	FindByEmail(ctx context.Context, email string) (UserRecord, int64, error)

	// Create inserts a new record at version 1. Fails with ErrAlreadyExists
	// when the principal already has a record, closing the duplicate
	// registration race.
	Create(ctx context.Context, record UserRecord) error

	// PutIfVersion writes the record only if its stored version still equals
	// expectedVersion, returning the new version. Fails with
	// ErrVersionConflict when a concurrent writer got there first, or
	// ErrNotFound when the record vanished.
	PutIfVersion(ctx context.Context, record UserRecord, expectedVersion int64) (int64, error)

	// CountApprovedManagers reports how many approved Manager records exist.
	// Used by the last-administrator guard.
	CountApprovedManagers(ctx context.Context) (int, error)

	// List enumerates all records ordered by creation time, oldest first.
	// Serves the owner's administration view.
	List(ctx context.Context) ([]UserRecord, error)
}
