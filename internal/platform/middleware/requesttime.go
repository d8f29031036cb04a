package middleware

import (
	"net/http"
	"time"

	"civicflow/pkg/requestcontext"
)

// RequestTime captures the current time at the start of the request so every
// operation within it observes one clock reading. Audit timestamps, decision
// times, and transition times all come from this value.
func RequestTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
