package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"idwallet/internal/auth/models"
)

// SessionValidator checks a bearer token and returns the live session it
// proves. The session store stays the single source of truth; middleware
// never caches the result.
type SessionValidator interface {
	ValidateToken(ctx context.Context, token string) (*models.Session, error)
}

type contextKeySession struct{}

// ContextKeySession is exported for use in handlers.
var ContextKeySession = contextKeySession{}

// GetSession retrieves the authenticated session from the context. Returns
// nil when the request did not pass RequireSession.
func GetSession(ctx context.Context) *models.Session {
	session, ok := ctx.Value(ContextKeySession).(*models.Session)
	if !ok {
		return nil
	}
	return session
}

// writeJSONError writes a JSON error response with the given status code.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + errCode + `","error_description":"` + errDesc + `"}`))
}

// RequireSession gates a route on a valid, non-expired session presented as
// a bearer token. Handlers behind it can rely on GetSession returning a
// non-nil session.
func RequireSession(validator SessionValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			after, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok {
				// No Authorization header or invalid format
				ctx := r.Context()
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", GetRequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			ctx := r.Context()
			session, err := validator.ValidateToken(ctx, after)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", GetRequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			ctx = context.WithValue(ctx, ContextKeySession, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
