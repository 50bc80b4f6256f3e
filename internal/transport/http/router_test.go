package httptransport_test

import (
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"primegate/internal/audit"
	"primegate/internal/authz"
	"primegate/internal/identity/localidp"
	"primegate/internal/records"
	"primegate/internal/registration"
	"primegate/internal/session"
	"primegate/internal/session/revocation"
	httptransport "primegate/internal/transport/http"
	"primegate/pkg/testutil"
)

const ownerEmail = "owner@primelabs.com"

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userBody struct {
	PrincipalID   string `json:"principal_id"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	ApprovalState string `json:"approval_state"`
}

type loginBody struct {
	Token         string `json:"token"`
	Granted       bool   `json:"granted"`
	Role          string `json:"role"`
	ApprovalState string `json:"approval_state"`
	IsOwner       bool   `json:"is_owner"`
}

type RouterSuite struct {
	suite.Suite
	router http.Handler
}

func (s *RouterSuite) SetupTest() {
	logger := slog.New(slog.DiscardHandler)
	idp := localidp.New("test-key", time.Hour)
	store := records.NewInMemoryStore()
	auditLog := audit.NewLog(audit.NewInMemoryStore(), logger)
	engine := authz.NewEngine(store, auditLog, ownerEmail, logger, nil)
	regService := registration.NewService(idp, store, auditLog, ownerEmail, records.RoleDoctor, logger, nil)
	gate := session.NewGate(idp, engine, revocation.NewInMemoryList(), time.Hour, logger, nil)

	s.router = httptransport.NewRouter(
		httptransport.NewAuthHandler(regService, gate, logger),
		httptransport.NewAdminHandler(engine, logger),
		gate,
		idp,
		logger,
	)
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) register(email string) *userBody {
	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/register", credentials{Email: email, Password: "s3cret-pass"}))
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	return testutil.UnmarshalResponse[userBody](s.T(), rr)
}

func (s *RouterSuite) login(email string) *loginBody {
	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/login", credentials{Email: email, Password: "s3cret-pass"}))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	return testutil.UnmarshalResponse[loginBody](s.T(), rr)
}

func (s *RouterSuite) TestRegistration() {
	s.Run("owner bootstraps as approved manager", func() {
		owner := s.register(ownerEmail)
		s.Equal("Manager", owner.Role)
		s.Equal("approved", owner.ApprovalState)
	})

	s.Run("other registrants start pending", func() {
		doc := s.register("doc@example.com")
		s.Equal("Doctor", doc.Role)
		s.Equal("pending_approval", doc.ApprovalState)
	})

	s.Run("duplicate email conflicts", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/register", credentials{Email: "doc@example.com", Password: "other-pass"}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "duplicate_user")
	})

	s.Run("malformed email is rejected", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/register", credentials{Email: "not-an-email", Password: "s3cret-pass"}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
	})
}

func (s *RouterSuite) TestLoginAndStanding() {
	s.register(ownerEmail)
	doc := s.register("doc@example.com")

	s.Run("pending doctor logs in without a grant", func() {
		login := s.login("doc@example.com")
		s.NotEmpty(login.Token)
		s.False(login.Granted)
		s.Equal("pending_approval", login.ApprovalState)
	})

	s.Run("me reports the caller's own standing", func() {
		login := s.login("doc@example.com")
		req := testutil.WithBearer(testutil.NewRequest(s.T(), http.MethodGet, "/auth/me"), login.Token)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusOK)

		standing := testutil.UnmarshalResponse[map[string]any](s.T(), rr)
		s.Equal(false, (*standing)["granted"])
		s.Equal("pending_approval", (*standing)["reason"])
		s.Equal(doc.PrincipalID, (*standing)["principal_id"])
	})

	s.Run("bad password is unauthorized", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/login", credentials{Email: "doc@example.com", Password: "wrong"}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "invalid_credentials")
	})
}

func (s *RouterSuite) TestAdminSurface() {
	s.register(ownerEmail)
	doc := s.register("doc@example.com")
	ownerLogin := s.login(ownerEmail)

	s.Run("owner approves the doctor", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/users/"+doc.PrincipalID+"/role",
			map[string]string{"role": "Doctor", "approval_state": "approved"})
		rr := testutil.DoRequest(s.router, testutil.WithBearer(req, ownerLogin.Token))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
	})

	s.Run("approved doctor is granted but still not an admin", func() {
		docLogin := s.login("doc@example.com")
		s.True(docLogin.Granted)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/users/"+doc.PrincipalID+"/role",
			map[string]string{"role": "Supervisor", "approval_state": "approved"})
		rr := testutil.DoRequest(s.router, testutil.WithBearer(req, docLogin.Token))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "access_denied")
	})

	s.Run("missing token is unauthorized", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/admin/users"))
		testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
	})

	s.Run("owner cannot orphan administration", func() {
		ownerRecord := s.me(ownerLogin.Token)
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/users/"+ownerRecord+"/role",
			map[string]string{"role": "Doctor", "approval_state": "approved"})
		rr := testutil.DoRequest(s.router, testutil.WithBearer(req, ownerLogin.Token))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "would_orphan_administration")
	})

	s.Run("owner lists users and reads the audit trail", func() {
		rr := testutil.DoRequest(s.router, testutil.WithBearer(testutil.NewRequest(s.T(), http.MethodGet, "/admin/users"), ownerLogin.Token))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		users := testutil.UnmarshalResponse[map[string][]userBody](s.T(), rr)
		s.Len((*users)["users"], 2)

		rr = testutil.DoRequest(s.router, testutil.WithBearer(testutil.NewRequest(s.T(), http.MethodGet, "/admin/audit"), ownerLogin.Token))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		trail := testutil.UnmarshalResponse[map[string][]map[string]any](s.T(), rr)
		// Owner bootstrap plus the doctor approval.
		s.Len((*trail)["entries"], 2)
	})

	s.Run("logout invalidates the admin session", func() {
		rr := testutil.DoRequest(s.router, testutil.WithBearer(testutil.NewRequest(s.T(), http.MethodPost, "/auth/logout"), ownerLogin.Token))
		testutil.AssertStatus(s.T(), rr, http.StatusNoContent)

		rr = testutil.DoRequest(s.router, testutil.WithBearer(testutil.NewRequest(s.T(), http.MethodGet, "/admin/users"), ownerLogin.Token))
		testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
	})
}

// me returns the caller's principal ID via /auth/me.
func (s *RouterSuite) me(token string) string {
	rr := testutil.DoRequest(s.router, testutil.WithBearer(testutil.NewRequest(s.T(), http.MethodGet, "/auth/me"), token))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	standing := testutil.UnmarshalResponse[map[string]any](s.T(), rr)
	principalID, _ := (*standing)["principal_id"].(string)
	return principalID
}
