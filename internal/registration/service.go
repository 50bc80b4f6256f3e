// Package registration creates user records for newly verified credentials
// and applies the owner bootstrap rule.
package registration

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"primegate/internal/audit"
	"primegate/internal/identity"
	"primegate/internal/platform/metrics"
	"primegate/internal/records"
	id "primegate/pkg/domain"
	dErrors "primegate/pkg/domain-errors"
	"primegate/pkg/platform/sentinel"
	"primegate/pkg/requestcontext"
)

// Service orchestrates registration across the identity provider and the
// record store. The two writes are not transactional; the service compensates
// when the second one fails.
type Service struct {
	identity    identity.Verifier
	records     records.Store
	audit       *audit.Log
	ownerEmail  string
	defaultRole records.Role
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

func NewService(verifier identity.Verifier, store records.Store, auditLog *audit.Log, ownerEmail string, defaultRole records.Role, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		identity:    verifier,
		records:     store,
		audit:       auditLog,
		ownerEmail:  ownerEmail,
		defaultRole: defaultRole,
		logger:      logger,
		metrics:     m,
	}
}

// Register creates a credential with the identity provider and a user record
// in the store. Non-owner registrants start as the default role, pending
// approval; the configured owner email bootstraps directly as an approved
// Manager with a system-attributed audit entry.
func (s *Service) Register(ctx context.Context, email, secret string) (records.UserRecord, error) {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return records.UserRecord{}, dErrors.New(dErrors.CodeInvalidInput, "a valid email is required")
	}

	// Pre-check before the credential is created. The store's uniqueness
	// guarantee on Create still closes the race two concurrent registrations
	// would otherwise win together.
	if _, _, err := s.records.FindByEmail(ctx, email); err == nil {
		return records.UserRecord{}, dErrors.New(dErrors.CodeDuplicateUser, "email is already registered")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return records.UserRecord{}, s.mapStoreErr(err, "failed to check existing registration")
	}

	principalID, err := s.identity.CreateCredential(ctx, email, secret)
	if err != nil {
		// CredentialRejected and timeouts are already coded by the verifier.
		return records.UserRecord{}, err
	}

	isOwner := email == s.ownerEmail
	role, state := s.defaultRole, records.StatePendingApproval
	if isOwner {
		role, state = records.RoleManager, records.StateApproved
	}

	record := records.NewRecord(principalID, email, role, state, requestcontext.Now(ctx))
	if err := s.records.Create(ctx, record); err != nil {
		return records.UserRecord{}, s.compensate(ctx, principalID, email, err)
	}

	if isOwner {
		entry := audit.Entry{
			ActorPrincipalID:  id.SystemActor,
			TargetPrincipalID: principalID,
			NewRole:           records.RoleManager,
			NewApprovalState:  records.StateApproved,
			Timestamp:         record.CreatedAt,
		}
		if err := s.audit.Append(ctx, entry); err != nil {
			return records.UserRecord{}, err
		}
	}

	s.metrics.IncRegistration()
	s.logger.InfoContext(ctx, "user registered",
		"principal", principalID,
		"role", string(role),
		"approval_state", string(state),
		"owner_bootstrap", isOwner,
	)
	return record, nil
}

// ResetPassword starts the identity provider's reset flow. The gate stores no
// secrets, so there is nothing else to do here.
func (s *Service) ResetPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "email is required")
	}
	return s.identity.IssuePasswordReset(ctx, email)
}

// compensate undoes the credential after a failed record write, mirroring the
// provider-side cleanup the original flow performs. When the cleanup itself
// fails the principal exists without a record, and only an operator can
// reconcile: that is PartialRegistrationFailure, surfaced loudly.
func (s *Service) compensate(ctx context.Context, principalID id.PrincipalID, email string, cause error) error {
	if deleteErr := s.identity.DeleteCredential(ctx, principalID); deleteErr != nil {
		s.logger.ErrorContext(ctx, "registration compensation failed; credential is orphaned",
			"principal", principalID,
			"email", email,
			"create_error", cause,
			"delete_error", deleteErr,
		)
		return dErrors.Wrap(cause, dErrors.CodePartialRegistration,
			"credential created but user record write failed; manual reconciliation required for principal "+principalID.String())
	}

	if errors.Is(cause, sentinel.ErrAlreadyExists) {
		return dErrors.New(dErrors.CodeDuplicateUser, "a record for this principal already exists")
	}
	return s.mapStoreErr(cause, "failed to create user record")
}

func (s *Service) mapStoreErr(err error, message string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeUpstreamTimeout, "record store timed out")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, message)
}
