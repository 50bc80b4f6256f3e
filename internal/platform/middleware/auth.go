package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	id "primegate/pkg/domain"
	"primegate/pkg/requestcontext"
)

// TokenValidator is the slice of the identity verifier the middleware needs.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (id.PrincipalID, string, error)
}

// RequireToken validates the bearer token and stores the principal and token
// ID in the request context. It does NOT consult approval state; that is the
// session gate's job. Responses here are deliberately undifferentiated so
// unauthenticated callers cannot probe account state.
func RequireToken(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w)
				return
			}

			principalID, jti, err := validator.ValidateToken(ctx, token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w)
				return
			}

			ctx = requestcontext.WithPrincipalID(ctx, principalID)
			ctx = requestcontext.WithTokenID(ctx, jti)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}
