// Package httptransport is the thin HTTP layer. Handlers decode, delegate to
// the services, and encode; no business rules live here.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"primegate/internal/authz"
	"primegate/internal/platform/middleware"
	"primegate/internal/session"
	"primegate/pkg/requestcontext"
)

// NewRouter wires the public authentication surface and the owner-only
// administration surface. Admin routes sit behind token validation plus a full
// gate check, so a revoked or logged-out owner token is rejected before the
// engine ever sees the request.
func NewRouter(auth *AuthHandler, admin *AdminHandler, gate *session.Gate, validator middleware.TokenValidator, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)

	r.Get("/healthz", handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Post("/auth/register", auth.handleRegister)
	r.Post("/auth/login", auth.handleLogin)
	r.Post("/auth/logout", auth.handleLogout)
	r.Post("/auth/reset-password", auth.handleResetPassword)
	r.Get("/auth/me", auth.handleMe)

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireToken(validator, logger))
		r.Use(requireAccess(gate, logger))
		r.Post("/users/{principalID}/role", admin.handleAssignRole)
		r.Get("/users", admin.handleListUsers)
		r.Get("/audit", admin.handleAuditTrail)
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requireAccess runs the session gate over the principal RequireToken already
// validated. The response for every denial is the same opaque 403.
func requireAccess(gate *session.Gate, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			result, err := gate.CheckPrincipal(ctx, requestcontext.PrincipalID(ctx), requestcontext.TokenID(ctx))
			if err != nil {
				writeError(w, err)
				return
			}
			if !result.Granted {
				logger.WarnContext(ctx, "gated request denied",
					"reason", string(result.Reason),
					"request_id", requestcontext.RequestID(ctx),
				)
				if result.Reason == authz.ReasonInvalidToken {
					writeUnauthorized(w)
					return
				}
				writeForbidden(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
