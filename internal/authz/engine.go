package authz

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"primegate/internal/audit"
	"primegate/internal/platform/metrics"
	"primegate/internal/records"
	id "primegate/pkg/domain"
	dErrors "primegate/pkg/domain-errors"
	"primegate/pkg/platform/sentinel"
	"primegate/pkg/requestcontext"
)

// maxAssignAttempts bounds the optimistic retry loop in AssignRole. Policy
// errors are never retried; only lost version races are.
const maxAssignAttempts = 3

// Engine resolves principals into authorization decisions and owns the single
// mutation path for roles and approval states.
//
// Every call re-reads the store. There is deliberately no decision cache:
// a revoked user must be locked out by their very next request.
type Engine struct {
	records    records.Store
	audit      *audit.Log
	ownerEmail string
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

func NewEngine(store records.Store, auditLog *audit.Log, ownerEmail string, logger *slog.Logger, m *metrics.Metrics) *Engine {
	return &Engine{
		records:    store,
		audit:      auditLog,
		ownerEmail: ownerEmail,
		logger:     logger,
		metrics:    m,
	}
}

// Authorize resolves a verified principal into a decision. An absent record is
// UnknownPrincipal, never a default-role grant.
func (e *Engine) Authorize(ctx context.Context, principalID id.PrincipalID) (Decision, error) {
	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.AuthorizeDuration.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
		}
	}()

	record, _, err := e.records.Get(ctx, principalID)
	if err != nil {
		return Decision{}, e.mapStoreErr(err, "principal has no user record", dErrors.CodeUnknownPrincipal)
	}
	if err := record.Validate(); err != nil {
		return Decision{}, err
	}
	return e.decisionFor(ctx, record), nil
}

// AssignRole mutates the target's role and approval state. Only the owner may
// call it; ownership is re-verified against the store on every attempt, so a
// stale decision from an earlier request cannot authorize a mutation.
func (e *Engine) AssignRole(ctx context.Context, actor, target id.PrincipalID, newRole records.Role, newState records.ApprovalState) (Decision, error) {
	for attempt := 0; attempt < maxAssignAttempts; attempt++ {
		decision, err := e.tryAssignRole(ctx, actor, target, newRole, newState)
		if err != nil {
			if errors.Is(err, sentinel.ErrVersionConflict) {
				e.metrics.IncAssignConflict()
				continue
			}
			return Decision{}, err
		}
		return decision, nil
	}
	return Decision{}, dErrors.New(dErrors.CodeConcurrentModification, "role assignment lost the version race repeatedly")
}

func (e *Engine) tryAssignRole(ctx context.Context, actor, target id.PrincipalID, newRole records.Role, newState records.ApprovalState) (Decision, error) {
	if err := e.requireOwner(ctx, actor); err != nil {
		return Decision{}, err
	}

	targetRecord, version, err := e.records.Get(ctx, target)
	if err != nil {
		return Decision{}, e.mapStoreErr(err, "target principal has no user record", dErrors.CodeUnknownPrincipal)
	}
	if err := targetRecord.Validate(); err != nil {
		return Decision{}, err
	}

	// Idempotent re-application: succeed without a write or an audit entry.
	if targetRecord.Role == newRole && targetRecord.ApprovalState == newState {
		return e.decisionFor(ctx, targetRecord), nil
	}

	if !records.CanTransition(targetRecord.ApprovalState, newState) {
		return Decision{}, dErrors.New(dErrors.CodeInvalidInput, "approval state transition not permitted")
	}

	// Last-administrator guard: never leave the system with nobody able to
	// approve or assign.
	losesManager := targetRecord.Role == records.RoleManager && targetRecord.ApprovalState == records.StateApproved &&
		!(newRole == records.RoleManager && newState == records.StateApproved)
	if losesManager {
		managers, err := e.records.CountApprovedManagers(ctx)
		if err != nil {
			return Decision{}, e.mapStoreErr(err, "failed to count administrators", dErrors.CodeInternal)
		}
		if managers <= 1 {
			return Decision{}, dErrors.New(dErrors.CodeWouldOrphanAdmin, "change would leave no approved manager")
		}
	}

	updated := targetRecord
	updated.Role = newRole
	updated.ApprovalState = newState
	updated.LastModifiedAt = requestcontext.Now(ctx)

	if _, err := e.records.PutIfVersion(ctx, updated, version); err != nil {
		if errors.Is(err, sentinel.ErrVersionConflict) {
			return Decision{}, err
		}
		return Decision{}, e.mapStoreErr(err, "target record vanished during assignment", dErrors.CodeUnknownPrincipal)
	}

	// The record write is durably confirmed; only now may the trail say so.
	entry := audit.Entry{
		ActorPrincipalID:      actor,
		TargetPrincipalID:     target,
		PreviousRole:          targetRecord.Role,
		NewRole:               newRole,
		PreviousApprovalState: targetRecord.ApprovalState,
		NewApprovalState:      newState,
		Timestamp:             updated.LastModifiedAt,
	}
	if err := e.audit.Append(ctx, entry); err != nil {
		// The mutation stands; surfacing the append failure lets an operator
		// reconcile the trail instead of silently losing it.
		return Decision{}, err
	}

	e.metrics.IncRoleChange()
	e.logger.InfoContext(ctx, "role assigned",
		"actor", actor,
		"target", target,
		"role", string(newRole),
		"approval_state", string(newState),
	)
	return e.decisionFor(ctx, updated), nil
}

// AuditTrail returns audit entries matching the filter. Owner-only: the
// actor's ownership is re-read from the store, never trusted from a prior
// decision.
func (e *Engine) AuditTrail(ctx context.Context, actor id.PrincipalID, filter audit.Filter) ([]audit.Entry, error) {
	if err := e.requireOwner(ctx, actor); err != nil {
		return nil, err
	}
	return e.audit.Query(ctx, filter)
}

// ListRecords returns every user record for the owner's administration view.
func (e *Engine) ListRecords(ctx context.Context, actor id.PrincipalID) ([]records.UserRecord, error) {
	if err := e.requireOwner(ctx, actor); err != nil {
		return nil, err
	}
	userRecords, err := e.records.List(ctx)
	if err != nil {
		return nil, e.mapStoreErr(err, "failed to list user records", dErrors.CodeInternal)
	}
	return userRecords, nil
}

func (e *Engine) requireOwner(ctx context.Context, actor id.PrincipalID) error {
	actorRecord, _, err := e.records.Get(ctx, actor)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotAuthorized, "actor is not the owner")
		}
		return e.mapStoreErr(err, "failed to resolve actor", dErrors.CodeInternal)
	}
	if err := actorRecord.Validate(); err != nil {
		return err
	}
	if !e.isOwner(actorRecord) {
		return dErrors.New(dErrors.CodeNotAuthorized, "actor is not the owner")
	}
	return nil
}

func (e *Engine) isOwner(record records.UserRecord) bool {
	return record.Email == e.ownerEmail
}

// decisionFor derives the decision from a record. The owner invariant is
// enforced here, at read time: whatever the stored row says, the owner is an
// approved Manager.
func (e *Engine) decisionFor(ctx context.Context, record records.UserRecord) Decision {
	decision := Decision{
		PrincipalID:   record.PrincipalID,
		Role:          record.Role,
		ApprovalState: record.ApprovalState,
		IsOwner:       e.isOwner(record),
	}
	if decision.IsOwner {
		if record.Role != records.RoleManager || record.ApprovalState != records.StateApproved {
			e.logger.WarnContext(ctx, "owner record drifted from invariant, coercing at read",
				"principal", record.PrincipalID,
				"stored_role", string(record.Role),
				"stored_state", string(record.ApprovalState),
			)
		}
		decision.Role = records.RoleManager
		decision.ApprovalState = records.StateApproved
	}
	return decision
}

func (e *Engine) mapStoreErr(err error, message string, notFoundCode dErrors.Code) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(notFoundCode, message)
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeUpstreamTimeout, "record store timed out")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, message)
	}
}
