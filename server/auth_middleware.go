package server

import (
	"context"
	"net/http"

	"github.com/jrsteele09/spotifeye/session"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeySession stores the *session.Validated for the current request
const ContextKeySession ContextKey = "session"

// RequireSession is middleware that validates a Bearer session token.
// Handlers behind it read the provider access token from the request context.
func (s *Server) RequireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := session.BearerToken(r.Header.Get("Authorization"))
		if err != nil {
			writeAuthError(w, err)
			return
		}

		validated, err := s.validator.Validate(r.Context(), raw)
		if err != nil {
			writeAuthError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeySession, validated)
		next(w, r.WithContext(ctx))
	}
}

// sessionFromContext returns the session attached by RequireSession
func sessionFromContext(ctx context.Context) (*session.Validated, bool) {
	validated, ok := ctx.Value(ContextKeySession).(*session.Validated)
	return validated, ok && validated != nil
}
