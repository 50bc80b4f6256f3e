// Package records owns the user lifecycle record: who is registered, what
// role they hold, and whether they have been approved to use the system.
package records

import (
	"time"

	id "primegate/pkg/domain"
	dErrors "primegate/pkg/domain-errors"
)

// Role is the closed set of roles a user can hold. Values read from storage
// that are not in this set are corrupt, never defaulted.
type Role string

const (
	RoleDoctor     Role = "Doctor"
	RoleSupervisor Role = "Supervisor"
	RoleManager    Role = "Manager"
)

// ParseRole validates a role received at an API boundary.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleDoctor, RoleSupervisor, RoleManager:
		return Role(raw), nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "unrecognized role")
}

func (r Role) valid() bool {
	switch r {
	case RoleDoctor, RoleSupervisor, RoleManager:
		return true
	}
	return false
}

// ApprovalState is the explicit lifecycle state of a registered user.
type ApprovalState string

const (
	StatePendingApproval ApprovalState = "pending_approval"
	StateApproved        ApprovalState = "approved"
	StateRevoked         ApprovalState = "revoked"
)

// ParseApprovalState validates an approval state received at an API boundary.
func ParseApprovalState(raw string) (ApprovalState, error) {
	switch ApprovalState(raw) {
	case StatePendingApproval, StateApproved, StateRevoked:
		return ApprovalState(raw), nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "unrecognized approval state")
}

func (s ApprovalState) valid() bool {
	switch s {
	case StatePendingApproval, StateApproved, StateRevoked:
		return true
	}
	return false
}

// approvalTransitions is the validated transition table. Self-transitions are
// handled separately as idempotent no-ops.
var approvalTransitions = map[ApprovalState][]ApprovalState{
	StatePendingApproval: {StateApproved, StateRevoked},
	StateApproved:        {StateRevoked},
	StateRevoked:         {StateApproved},
}

// CanTransition reports whether the approval state may move from one state to
// another. Identical states are always permitted (idempotent re-application).
func CanTransition(from, to ApprovalState) bool {
	if from == to {
		return true
	}
	for _, allowed := range approvalTransitions[from] {
		if to == allowed {
			return true
		}
	}
	return false
}

// UserRecord is the durable per-principal record. IsOwner is deliberately
// absent: ownership is derived at decision time from configuration and never
// persisted.
type UserRecord struct {
	PrincipalID    id.PrincipalID
	Email          string
	Role           Role
	ApprovalState  ApprovalState
	CreatedAt      time.Time
	LastModifiedAt time.Time
}

// Validate rejects records whose enums fell outside the closed sets, e.g.
// after a bad manual edit of the backing store.
func (u UserRecord) Validate() error {
	if u.PrincipalID.IsZero() {
		return dErrors.New(dErrors.CodeCorruptRecord, "record has no principal id")
	}
	if !u.Role.valid() {
		return dErrors.New(dErrors.CodeCorruptRecord, "record holds an unrecognized role")
	}
	if !u.ApprovalState.valid() {
		return dErrors.New(dErrors.CodeCorruptRecord, "record holds an unrecognized approval state")
	}
	return nil
}

// NewRecord builds a fresh record at registration time.
func NewRecord(principalID id.PrincipalID, email string, role Role, state ApprovalState, now time.Time) UserRecord {
	return UserRecord{
		PrincipalID:    principalID,
		Email:          email,
		Role:           role,
		ApprovalState:  state,
		CreatedAt:      now,
		LastModifiedAt: now,
	}
}
