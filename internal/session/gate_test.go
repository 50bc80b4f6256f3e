package session

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"primegate/internal/audit"
	"primegate/internal/authz"
	"primegate/internal/identity/localidp"
	"primegate/internal/records"
	"primegate/internal/session/revocation"
	id "primegate/pkg/domain"
	dErrors "primegate/pkg/domain-errors"
)

const ownerEmail = "owner@primelabs.com"

type GateSuite struct {
	suite.Suite
	idp   *localidp.Provider
	store *records.InMemoryStore
	gate  *Gate
}

func (s *GateSuite) SetupTest() {
	logger := slog.New(slog.DiscardHandler)
	s.idp = localidp.New("test-key", time.Hour)
	s.store = records.NewInMemoryStore()
	engine := authz.NewEngine(s.store, audit.NewLog(audit.NewInMemoryStore(), logger), ownerEmail, logger, nil)
	s.gate = NewGate(s.idp, engine, revocation.NewInMemoryList(), time.Hour, logger, nil)
}

func TestGateSuite(t *testing.T) {
	suite.Run(t, new(GateSuite))
}

// register creates a credential and a record in the given state, returning the
// principal ID.
func (s *GateSuite) register(email string, role records.Role, state records.ApprovalState) id.PrincipalID {
	ctx := context.Background()
	principalID, err := s.idp.CreateCredential(ctx, email, "s3cret-pass")
	s.Require().NoError(err)
	record := records.NewRecord(principalID, email, role, state, time.Now())
	s.Require().NoError(s.store.Create(ctx, record))
	return principalID
}

func (s *GateSuite) login(email string) (string, Result) {
	token, result, err := s.gate.Login(context.Background(), email, "s3cret-pass")
	s.Require().NoError(err)
	return token, result
}

func (s *GateSuite) TestLogin() {
	ctx := context.Background()
	s.register("doc@example.com", records.RoleDoctor, records.StateApproved)

	s.Run("approved principal is granted and receives a token", func() {
		token, result := s.login("doc@example.com")
		s.NotEmpty(token)
		s.True(result.Granted)
		s.Equal(records.RoleDoctor, result.Decision.Role)
	})

	s.Run("pending principal receives a token but no grant", func() {
		s.register("new@example.com", records.RoleDoctor, records.StatePendingApproval)

		token, result := s.login("new@example.com")
		s.NotEmpty(token, "pending users need a token to see their own status")
		s.False(result.Granted)
		s.Equal(authz.ReasonPendingApproval, result.Reason)
	})

	s.Run("wrong password is rejected", func() {
		_, _, err := s.gate.Login(ctx, "doc@example.com", "wrong-pass")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidCredentials))
	})

	s.Run("credential without a record gets the same generic rejection", func() {
		_, err := s.idp.CreateCredential(ctx, "ghost@example.com", "s3cret-pass")
		s.Require().NoError(err)

		_, _, err = s.gate.Login(ctx, "ghost@example.com", "s3cret-pass")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidCredentials))
	})
}

func (s *GateSuite) TestCheckAccess() {
	ctx := context.Background()

	s.Run("garbage token is denied, not an error", func() {
		result, err := s.gate.CheckAccess(ctx, "not-a-token")
		s.Require().NoError(err)
		s.False(result.Granted)
		s.Equal(authz.ReasonInvalidToken, result.Reason)
	})

	s.Run("approved principal is granted", func() {
		s.register("doc@example.com", records.RoleDoctor, records.StateApproved)
		token, _ := s.login("doc@example.com")

		result, err := s.gate.CheckAccess(ctx, token)
		s.Require().NoError(err)
		s.True(result.Granted)
	})

	s.Run("revocation in the store takes effect on the next check", func() {
		principalID := s.register("rev@example.com", records.RoleSupervisor, records.StateApproved)
		token, _ := s.login("rev@example.com")

		record, version, err := s.store.Get(ctx, principalID)
		s.Require().NoError(err)
		record.ApprovalState = records.StateRevoked
		_, err = s.store.PutIfVersion(ctx, record, version)
		s.Require().NoError(err)

		result, err := s.gate.CheckAccess(ctx, token)
		s.Require().NoError(err)
		s.False(result.Granted, "a still-valid token must not outlive the approval")
		s.Equal(authz.ReasonRevoked, result.Reason)
	})

	s.Run("token whose record vanished is denied", func() {
		_, err := s.idp.CreateCredential(ctx, "ghost@example.com", "s3cret-pass")
		s.Require().NoError(err)
		_, token, err := s.idp.VerifyCredential(ctx, "ghost@example.com", "s3cret-pass")
		s.Require().NoError(err)

		result, err := s.gate.CheckAccess(ctx, token)
		s.Require().NoError(err)
		s.False(result.Granted)
		s.Equal(authz.ReasonUnknownPrincipal, result.Reason)
	})
}

func (s *GateSuite) TestLogout() {
	ctx := context.Background()
	s.register("doc@example.com", records.RoleDoctor, records.StateApproved)
	token, _ := s.login("doc@example.com")

	s.Run("logout revokes the presented token", func() {
		s.Require().NoError(s.gate.Logout(ctx, token))

		result, err := s.gate.CheckAccess(ctx, token)
		s.Require().NoError(err)
		s.False(result.Granted)
		s.Equal(authz.ReasonInvalidToken, result.Reason)
	})

	s.Run("other sessions keep working", func() {
		fresh, _ := s.login("doc@example.com")
		result, err := s.gate.CheckAccess(ctx, fresh)
		s.Require().NoError(err)
		s.True(result.Granted)
	})

	s.Run("logging out an invalid token is a no-op", func() {
		s.Require().NoError(s.gate.Logout(ctx, "not-a-token"))
	})
}
