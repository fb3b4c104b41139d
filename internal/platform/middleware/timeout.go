package middleware

import (
	"context"
	"net/http"
	"time"
)

// Timeout bounds the lifetime of a request's context. Handlers pass the
// context down to stores, so a stuck persistence call is cancelled too.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
