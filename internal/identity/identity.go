// Package identity defines the port to the external identity provider.
//
// The gate never stores raw credentials; it delegates credential creation,
// verification, and token validation to a Verifier and works only with the
// stable principal identifier the provider hands back.
package identity

import (
	"context"

	id "primegate/pkg/domain"
)

// Verifier is the identity provider consumed by registration and the session
// gate. Implementations must honor ctx deadlines on every call.
type Verifier interface {
	// CreateCredential registers a credential and returns the new principal
	// identifier. Weak secrets and already-registered emails fail with
	// CodeCredentialRejected.
	CreateCredential(ctx context.Context, email, secret string) (id.PrincipalID, error)

	// VerifyCredential checks an email/secret pair and returns the principal
	// plus a freshness-bounded session token.
	VerifyCredential(ctx context.Context, email, secret string) (id.PrincipalID, string, error)

	// ValidateToken checks signature and freshness of a session token and
	// returns the principal it was issued to plus the token ID (jti).
	ValidateToken(ctx context.Context, token string) (id.PrincipalID, string, error)

	// IssuePasswordReset starts the provider's password-reset flow.
	IssuePasswordReset(ctx context.Context, email string) error

	// DeleteCredential removes a credential. Used to compensate when a user
	// record write fails after the credential was already created.
	DeleteCredential(ctx context.Context, principalID id.PrincipalID) error
}
