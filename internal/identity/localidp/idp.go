// Package localidp is an in-process identity provider. It stands in for a
// hosted provider in development and tests: bcrypt-hashed secrets, HS256
// session tokens, and uuid principal identifiers.
package localidp

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	id "primegate/pkg/domain"
	dErrors "primegate/pkg/domain-errors"
)

const minSecretLength = 6

// Claims carried by session tokens.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type credential struct {
	principalID id.PrincipalID
	secretHash  []byte
}

// Provider implements identity.Verifier with in-memory credentials.
type Provider struct {
	signingKey []byte
	issuer     string
	tokenTTL   time.Duration

	mu          sync.RWMutex
	byEmail     map[string]credential
	byPrincipal map[id.PrincipalID]string
	resets      map[string]string
}

func New(signingKey string, tokenTTL time.Duration) *Provider {
	return &Provider{
		signingKey:  []byte(signingKey),
		issuer:      "primegate",
		tokenTTL:    tokenTTL,
		byEmail:     make(map[string]credential),
		byPrincipal: make(map[id.PrincipalID]string),
		resets:      make(map[string]string),
	}
}

func (p *Provider) CreateCredential(ctx context.Context, email, secret string) (id.PrincipalID, error) {
	if err := ctx.Err(); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUpstreamTimeout, "identity provider unavailable")
	}
	if len(secret) < minSecretLength {
		return "", dErrors.New(dErrors.CodeCredentialRejected, "secret does not meet minimum length")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash secret")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.byEmail[email]; exists {
		return "", dErrors.New(dErrors.CodeCredentialRejected, "email already registered")
	}
	principalID := id.PrincipalID(uuid.NewString())
	p.byEmail[email] = credential{principalID: principalID, secretHash: hash}
	p.byPrincipal[principalID] = email
	return principalID, nil
}

func (p *Provider) VerifyCredential(ctx context.Context, email, secret string) (id.PrincipalID, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", dErrors.Wrap(err, dErrors.CodeUpstreamTimeout, "identity provider unavailable")
	}

	p.mu.RLock()
	cred, exists := p.byEmail[email]
	p.mu.RUnlock()
	if !exists {
		return "", "", dErrors.New(dErrors.CodeInvalidCredentials, "invalid email or secret")
	}
	if err := bcrypt.CompareHashAndPassword(cred.secretHash, []byte(secret)); err != nil {
		return "", "", dErrors.New(dErrors.CodeInvalidCredentials, "invalid email or secret")
	}

	token, err := p.mintToken(cred.principalID, email)
	if err != nil {
		return "", "", err
	}
	return cred.principalID, token, nil
}

func (p *Provider) ValidateToken(ctx context.Context, token string) (id.PrincipalID, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", dErrors.Wrap(err, dErrors.CodeUpstreamTimeout, "identity provider unavailable")
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return p.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", "", dErrors.New(dErrors.CodeInvalidToken, "token has expired")
		}
		return "", "", dErrors.New(dErrors.CodeInvalidToken, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return "", "", dErrors.New(dErrors.CodeInvalidToken, "invalid token claims")
	}

	principalID, err := id.ParsePrincipalID(claims.Subject)
	if err != nil {
		return "", "", dErrors.New(dErrors.CodeInvalidToken, "token subject is not a principal")
	}
	return principalID, claims.ID, nil
}

func (p *Provider) IssuePasswordReset(ctx context.Context, email string) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUpstreamTimeout, "identity provider unavailable")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.byEmail[email]; !exists {
		return dErrors.New(dErrors.CodeInvalidCredentials, "email not registered")
	}
	// Delivery is the hosted provider's concern; locally we just record the
	// outstanding reset code.
	p.resets[email] = uuid.NewString()
	return nil
}

func (p *Provider) DeleteCredential(ctx context.Context, principalID id.PrincipalID) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUpstreamTimeout, "identity provider unavailable")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	email, exists := p.byPrincipal[principalID]
	if !exists {
		return dErrors.New(dErrors.CodeInvalidCredentials, "unknown principal")
	}
	delete(p.byPrincipal, principalID)
	delete(p.byEmail, email)
	delete(p.resets, email)
	return nil
}

// HasPendingReset reports whether a reset was issued for the email. Exposed
// for tests; a hosted provider would deliver the code out of band.
func (p *Provider) HasPendingReset(email string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.resets[email]
	return ok
}

func (p *Provider) mintToken(principalID id.PrincipalID, email string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principalID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    p.issuer,
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(p.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}
	return signed, nil
}
