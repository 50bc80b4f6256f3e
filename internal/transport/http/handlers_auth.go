package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/asaskevich/govalidator"

	"primegate/internal/registration"
	"primegate/internal/session"
	dErrors "primegate/pkg/domain-errors"
)

// AuthHandler serves the public authentication endpoints.
type AuthHandler struct {
	registration *registration.Service
	gate         *session.Gate
	logger       *slog.Logger
}

func NewAuthHandler(reg *registration.Service, gate *session.Gate, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{registration: reg, gate: gate, logger: logger}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	PrincipalID   string `json:"principal_id"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	ApprovalState string `json:"approval_state"`
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	if !govalidator.StringLength(req.Email, "3", "255") || !govalidator.IsEmail(req.Email) {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid email"))
		return
	}

	record, err := h.registration.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, userResponse{
		PrincipalID:   record.PrincipalID.String(),
		Email:         record.Email,
		Role:          string(record.Role),
		ApprovalState: string(record.ApprovalState),
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token         string `json:"token"`
	Granted       bool   `json:"granted"`
	Role          string `json:"role"`
	ApprovalState string `json:"approval_state"`
	IsOwner       bool   `json:"is_owner"`
}

// handleLogin verifies the credential and returns a token together with the
// principal's current standing. Principals pending approval still receive a
// token; every gated request will keep denying them until approval.
func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	token, result, err := h.gate.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Token:         token,
		Granted:       result.Granted,
		Role:          string(result.Decision.Role),
		ApprovalState: string(result.Decision.ApprovalState),
		IsOwner:       result.Decision.IsOwner,
	})
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeUnauthorized(w)
		return
	}
	if err := h.gate.Logout(r.Context(), token); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type resetRequest struct {
	Email string `json:"email"`
}

// handleResetPassword always answers 202 for well-formed requests, whether or
// not the email is registered.
func (h *AuthHandler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	if err := h.registration.ResetPassword(r.Context(), req.Email); err != nil {
		if !dErrors.HasCode(err, dErrors.CodeInvalidCredentials) {
			writeError(w, err)
			return
		}
		h.logger.InfoContext(r.Context(), "password reset requested for unregistered email")
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

type standingResponse struct {
	Granted       bool   `json:"granted"`
	Reason        string `json:"reason,omitempty"`
	PrincipalID   string `json:"principal_id,omitempty"`
	Role          string `json:"role,omitempty"`
	ApprovalState string `json:"approval_state,omitempty"`
	IsOwner       bool   `json:"is_owner,omitempty"`
}

// handleMe reports the caller's own standing. A pending or revoked principal
// sees their own state here even though every gated endpoint denies them.
func (h *AuthHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeUnauthorized(w)
		return
	}

	result, err := h.gate.CheckAccess(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}
	if result.Decision == nil {
		// Invalid token or no record behind it.
		writeUnauthorized(w)
		return
	}

	resp := standingResponse{
		Granted:       result.Granted,
		Reason:        string(result.Reason),
		PrincipalID:   result.Decision.PrincipalID.String(),
		Role:          string(result.Decision.Role),
		ApprovalState: string(result.Decision.ApprovalState),
		IsOwner:       result.Decision.IsOwner,
	}
	writeJSON(w, http.StatusOK, resp)
}

func bearerToken(r *http.Request) (string, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return token, ok && token != ""
}
