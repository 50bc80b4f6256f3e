package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "primegate/pkg/domain-errors"
)

// PrincipalID is the stable identifier the identity provider assigns to a
// verified account. It is opaque to this service: we validate shape at trust
// boundaries but never derive meaning from it.
type PrincipalID string

// SystemActor attributes audit entries produced by the service itself, such
// as the owner bootstrap on first registration.
const SystemActor PrincipalID = "system"

// ParsePrincipalID validates an identifier received at an API boundary.
func ParsePrincipalID(raw string) (PrincipalID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "principal id is required")
	}
	if trimmed != raw {
		return "", dErrors.New(dErrors.CodeInvalidInput, "principal id must not contain surrounding whitespace")
	}
	if len(raw) > 128 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "principal id exceeds maximum length")
	}
	return PrincipalID(raw), nil
}

func (p PrincipalID) String() string { return string(p) }

// IsZero reports whether the ID is unset.
func (p PrincipalID) IsZero() bool { return p == "" }

// EntryID identifies a single audit entry.
type EntryID uuid.UUID

// NewEntryID returns a fresh audit entry identifier.
func NewEntryID() EntryID { return EntryID(uuid.New()) }

// ParseEntryID validates an audit entry identifier received at a boundary.
func ParseEntryID(raw string) (EntryID, error) {
	if raw == "" {
		return EntryID{}, dErrors.New(dErrors.CodeInvalidInput, "entry id is required")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return EntryID{}, dErrors.New(dErrors.CodeInvalidInput, "entry id must be a valid UUID")
	}
	if parsed == uuid.Nil {
		return EntryID{}, dErrors.New(dErrors.CodeInvalidInput, "entry id must not be the nil UUID")
	}
	return EntryID(parsed), nil
}

func (e EntryID) String() string { return uuid.UUID(e).String() }

// IsNil reports whether the ID is the zero UUID.
func (e EntryID) IsNil() bool { return uuid.UUID(e) == uuid.Nil }
