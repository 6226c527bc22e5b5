package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/socialhub/backend/internal/logging"
)

type ctxKey struct{}

// WithSession stores the authenticated session on the context.
func WithSession(ctx context.Context, session Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, session)
}

// SessionFromContext returns the authenticated session, if any.
func SessionFromContext(ctx context.Context) (Session, bool) {
	session, ok := ctx.Value(ctxKey{}).(Session)
	return session, ok
}

// Resolver loads a session by identifier.
type Resolver interface {
	Resolve(ctx context.Context, id string) (Session, error)
}

// SessionFromRequest resolves the session referenced by the named cookie.
func SessionFromRequest(r *http.Request, resolver Resolver, cookieName string) (Session, error) {
	cookie, err := r.Cookie(cookieName)
	if err != nil {
		return Session{}, ErrSessionNotFound
	}
	return resolver.Resolve(r.Context(), cookie.Value)
}

// RequireSession rejects requests without a valid session cookie and exposes
// the session to downstream handlers.
func RequireSession(resolver Resolver, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := SessionFromRequest(r, resolver, cookieName)
			if err != nil {
				logger := logging.FromContext(r.Context())
				if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrSessionExpired) {
					logger.Warn("unauthenticated request", "error", err)
				} else {
					logger.Error("session lookup failed", "error", err)
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "authentication required"})
				return
			}

			ctx := WithSession(r.Context(), session)
			ctx = logging.With(ctx, "user_id", session.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
