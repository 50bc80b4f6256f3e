// Package session ties token verification, revocation, and authorization into
// a single access decision for each request.
package session

import (
	"context"
	"log/slog"
	"time"

	"primegate/internal/authz"
	"primegate/internal/identity"
	"primegate/internal/platform/metrics"
	"primegate/internal/records"
	"primegate/internal/session/revocation"
	id "primegate/pkg/domain"
	dErrors "primegate/pkg/domain-errors"
)

// Result is the outcome of an access check. A denial is a value, not an
// error; errors are reserved for the gate being unable to decide at all.
type Result struct {
	Granted  bool
	Reason   authz.DenyReason
	Decision *authz.Decision
}

func granted(d authz.Decision) Result {
	return Result{Granted: true, Decision: &d}
}

func denied(reason authz.DenyReason) Result {
	return Result{Reason: reason}
}

// Gate answers "may the holder of this token act right now". Every check goes
// back to the stores; an approval revoked a second ago denies the very next
// request even though the token itself is still cryptographically valid.
type Gate struct {
	identity identity.Verifier
	engine   *authz.Engine
	revoked  revocation.List
	tokenTTL time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewGate(verifier identity.Verifier, engine *authz.Engine, revoked revocation.List, tokenTTL time.Duration, logger *slog.Logger, m *metrics.Metrics) *Gate {
	return &Gate{
		identity: verifier,
		engine:   engine,
		revoked:  revoked,
		tokenTTL: tokenTTL,
		logger:   logger,
		metrics:  m,
	}
}

// CheckAccess validates the token, consults the revocation list, and
// authorizes the principal against its current stored record.
func (g *Gate) CheckAccess(ctx context.Context, token string) (Result, error) {
	principalID, jti, err := g.identity.ValidateToken(ctx, token)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeUpstreamTimeout) {
			return Result{}, err
		}
		g.metrics.IncAccessCheck("invalid_token")
		return denied(authz.ReasonInvalidToken), nil
	}
	return g.CheckPrincipal(ctx, principalID, jti)
}

// CheckPrincipal is CheckAccess for callers whose middleware has already
// validated the token and extracted the principal and token ID.
func (g *Gate) CheckPrincipal(ctx context.Context, principalID id.PrincipalID, jti string) (Result, error) {
	isRevoked, err := g.revoked.IsRevoked(ctx, jti)
	if err != nil {
		// The revocation list being unreachable must not widen access.
		g.logger.ErrorContext(ctx, "revocation check failed", "error", err)
		return Result{}, dErrors.Wrap(err, dErrors.CodeUpstreamTimeout, "revocation list unavailable")
	}
	if isRevoked {
		g.metrics.IncAccessCheck("revoked_token")
		return denied(authz.ReasonInvalidToken), nil
	}

	return g.authorize(ctx, principalID)
}

// Login verifies the credential and authorizes the principal. Principals that
// are pending approval still receive a token so they can see their own status
// and log out; principals without a record receive nothing.
func (g *Gate) Login(ctx context.Context, email, secret string) (string, Result, error) {
	principalID, token, err := g.identity.VerifyCredential(ctx, email, secret)
	if err != nil {
		return "", Result{}, err
	}

	result, err := g.authorize(ctx, principalID)
	if err != nil {
		return "", Result{}, err
	}
	if result.Reason == authz.ReasonUnknownPrincipal {
		// Verified credential, no record. Never grant default access; the
		// caller gets the same generic rejection as a bad password.
		return "", Result{}, dErrors.New(dErrors.CodeInvalidCredentials, "invalid email or password")
	}
	return token, result, nil
}

// Logout revokes the token for the remainder of its lifetime. Tokens that no
// longer validate have nothing left to revoke.
func (g *Gate) Logout(ctx context.Context, token string) error {
	_, jti, err := g.identity.ValidateToken(ctx, token)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeUpstreamTimeout) {
			return err
		}
		return nil
	}
	if err := g.revoked.Revoke(ctx, jti, g.tokenTTL); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke token")
	}
	return nil
}

func (g *Gate) authorize(ctx context.Context, principalID id.PrincipalID) (Result, error) {
	decision, err := g.engine.Authorize(ctx, principalID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnknownPrincipal) {
			g.metrics.IncAccessCheck("unknown_principal")
			return denied(authz.ReasonUnknownPrincipal), nil
		}
		return Result{}, err
	}

	if decision.Approved() {
		g.metrics.IncAccessCheck("granted")
		return granted(decision), nil
	}

	result := denied(authz.ReasonRevoked)
	if decision.ApprovalState == records.StatePendingApproval {
		result = denied(authz.ReasonPendingApproval)
	}
	// Denied principals still learn their own standing.
	result.Decision = &decision
	g.metrics.IncAccessCheck(string(result.Reason))
	return result, nil
}
