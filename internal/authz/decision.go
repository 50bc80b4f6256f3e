package authz

import (
	id "primegate/pkg/domain"
	"primegate/internal/records"
)

// Decision is what the engine hands back to callers: everything a transport
// or UI needs to gate access, nothing more.
type Decision struct {
	PrincipalID   id.PrincipalID
	Role          records.Role
	ApprovalState records.ApprovalState
	IsOwner       bool
}

// Approved reports whether the principal may use access-gated operations.
func (d Decision) Approved() bool {
	return d.ApprovalState == records.StateApproved
}

// DenyReason distinguishes denials internally. Transports outside the trust
// boundary must collapse these into one generic denial.
type DenyReason string

const (
	ReasonInvalidToken     DenyReason = "invalid_token"
	ReasonPendingApproval  DenyReason = "pending_approval"
	ReasonRevoked          DenyReason = "revoked"
	ReasonUnknownPrincipal DenyReason = "unknown_principal"
)
