package testutil

import (
	"net/http"
	"time"

	id "civicflow/pkg/domain"
	"civicflow/pkg/requestcontext"
)

// WithActorID adds an actor to the request context, simulating what the auth
// middleware does for authenticated requests.
func WithActorID(req *http.Request, actor id.UserID) *http.Request {
	return req.WithContext(requestcontext.WithActorID(req.Context(), actor))
}

// WithRequestTime pins the request-scoped clock, simulating the request-time
// middleware.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
