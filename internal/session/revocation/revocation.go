// Package revocation tracks session tokens invalidated before their natural
// expiry (logout). Entries only need to live as long as the token would have.
package revocation

import (
	"context"
	"time"
)

// List is a token revocation list keyed by token ID (jti).
type List interface {
	// Revoke marks the token revoked for ttl.
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	// IsRevoked reports whether the token has been revoked. Expired markers
	// count as not revoked; the token itself is already dead by then.
	IsRevoked(ctx context.Context, jti string) (bool, error)
}
