package httptransport

import (
	"encoding/json"
	"net/http"

	dErrors "primegate/pkg/domain-errors"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError translates a domain error into the JSON error envelope. Denial
// codes collapse into one opaque body so callers outside the trust boundary
// cannot tell an unknown account from a pending or revoked one.
func writeError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	switch code {
	case dErrors.CodeNotAuthorized, dErrors.CodeAccessDenied, dErrors.CodeUnknownPrincipal:
		code = dErrors.CodeAccessDenied
	}
	writeJSON(w, dErrors.ToHTTPStatus(code), map[string]string{
		"error": string(code),
	})
}

func writeUnauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, map[string]string{
		"error": "unauthorized",
	})
}

func writeForbidden(w http.ResponseWriter) {
	writeJSON(w, http.StatusForbidden, map[string]string{
		"error": string(dErrors.CodeAccessDenied),
	})
}
