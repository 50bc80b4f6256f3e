package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"primegate/internal/audit"
	"primegate/internal/authz"
	"primegate/internal/records"
	id "primegate/pkg/domain"
	dErrors "primegate/pkg/domain-errors"
	"primegate/pkg/requestcontext"
)

// AdminHandler serves the owner-only administration endpoints. Authorization
// lives in the engine; the handler only decodes and delegates.
type AdminHandler struct {
	engine *authz.Engine
	logger *slog.Logger
}

func NewAdminHandler(engine *authz.Engine, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{engine: engine, logger: logger}
}

type assignRoleRequest struct {
	Role          string `json:"role"`
	ApprovalState string `json:"approval_state"`
}

type decisionResponse struct {
	PrincipalID   string `json:"principal_id"`
	Role          string `json:"role"`
	ApprovalState string `json:"approval_state"`
	IsOwner       bool   `json:"is_owner"`
}

func (h *AdminHandler) handleAssignRole(w http.ResponseWriter, r *http.Request) {
	target, err := id.ParsePrincipalID(chi.URLParam(r, "principalID"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req assignRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	role, err := records.ParseRole(req.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	state, err := records.ParseApprovalState(req.ApprovalState)
	if err != nil {
		writeError(w, err)
		return
	}

	actor := requestcontext.PrincipalID(r.Context())
	decision, err := h.engine.AssignRole(r.Context(), actor, target, role, state)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, decisionResponse{
		PrincipalID:   decision.PrincipalID.String(),
		Role:          string(decision.Role),
		ApprovalState: string(decision.ApprovalState),
		IsOwner:       decision.IsOwner,
	})
}

type listUsersResponse struct {
	Users []userResponse `json:"users"`
}

func (h *AdminHandler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	actor := requestcontext.PrincipalID(r.Context())
	userRecords, err := h.engine.ListRecords(r.Context(), actor)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := listUsersResponse{Users: make([]userResponse, 0, len(userRecords))}
	for _, record := range userRecords {
		resp.Users = append(resp.Users, userResponse{
			PrincipalID:   record.PrincipalID.String(),
			Email:         record.Email,
			Role:          string(record.Role),
			ApprovalState: string(record.ApprovalState),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type auditEntryResponse struct {
	ID                    string    `json:"id"`
	ActorPrincipalID      string    `json:"actor_principal_id"`
	TargetPrincipalID     string    `json:"target_principal_id"`
	PreviousRole          string    `json:"previous_role,omitempty"`
	NewRole               string    `json:"new_role"`
	PreviousApprovalState string    `json:"previous_approval_state,omitempty"`
	NewApprovalState      string    `json:"new_approval_state"`
	Timestamp             time.Time `json:"timestamp"`
	RequestID             string    `json:"request_id,omitempty"`
}

type auditTrailResponse struct {
	Entries []auditEntryResponse `json:"entries"`
}

func (h *AdminHandler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	filter, err := auditFilterFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	actor := requestcontext.PrincipalID(r.Context())
	entries, err := h.engine.AuditTrail(r.Context(), actor, filter)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := auditTrailResponse{Entries: make([]auditEntryResponse, 0, len(entries))}
	for _, entry := range entries {
		resp.Entries = append(resp.Entries, auditEntryResponse{
			ID:                    entry.ID.String(),
			ActorPrincipalID:      entry.ActorPrincipalID.String(),
			TargetPrincipalID:     entry.TargetPrincipalID.String(),
			PreviousRole:          string(entry.PreviousRole),
			NewRole:               string(entry.NewRole),
			PreviousApprovalState: string(entry.PreviousApprovalState),
			NewApprovalState:      string(entry.NewApprovalState),
			Timestamp:             entry.Timestamp,
			RequestID:             entry.RequestID,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func auditFilterFromQuery(r *http.Request) (audit.Filter, error) {
	var filter audit.Filter
	query := r.URL.Query()

	if target := query.Get("target"); target != "" {
		filter.TargetPrincipalID = id.PrincipalID(target)
	}
	if actor := query.Get("actor"); actor != "" {
		filter.ActorPrincipalID = id.PrincipalID(actor)
	}
	if since := query.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return audit.Filter{}, dErrors.New(dErrors.CodeInvalidInput, "since must be RFC 3339")
		}
		filter.Since = t
	}
	if until := query.Get("until"); until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			return audit.Filter{}, dErrors.New(dErrors.CodeInvalidInput, "until must be RFC 3339")
		}
		filter.Until = t
	}
	return filter, nil
}
