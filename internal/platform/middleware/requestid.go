package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"primegate/pkg/requestcontext"
)

const requestIDHeader = "X-Request-ID"

// RequestID accepts an inbound correlation ID or mints one, echoes it on the
// response, and stores it in the context for logging and audit enrichment.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, reqID)
		ctx := requestcontext.WithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
