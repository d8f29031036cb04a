// Package middleware holds the HTTP middleware chain: request correlation,
// request-scoped time, client metadata, and actor extraction. Everything
// lands in pkg/requestcontext so services stay free of net/http.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"civicflow/pkg/requestcontext"
)

const requestIDHeader = "X-Request-ID"

// RequestID assigns each request a correlation ID, honoring one supplied by
// the caller, and echoes it in the response header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
