package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	id "civicflow/pkg/domain"
	dErrors "civicflow/pkg/domain-errors"
	"civicflow/pkg/platform/httputil"
	"civicflow/pkg/requestcontext"
)

// TokenValidator validates a bearer token and returns the actor it names.
type TokenValidator interface {
	ValidateToken(tokenString string) (id.UserID, error)
}

// ActorFromToken extracts the authenticated actor from the Authorization
// header into the request context. Requests without a valid bearer token pass
// through without an actor; handlers that require one reject them. This keeps
// the read-only and health endpoints usable without a token while every
// mutation demands one.
func ActorFromToken(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const bearerPrefix = "Bearer "
			tokenString, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			actor, err := validator.ValidateToken(tokenString)
			if err != nil {
				logger.WarnContext(ctx, "rejected bearer token",
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithActorID(ctx, actor)))
		})
	}
}
