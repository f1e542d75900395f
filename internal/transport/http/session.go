package http

import (
	"net/http"

	"salesdash/internal/infrastructure"
)

// SessionMiddleware puts the caller's session id on the request context,
// issuing a cookie on first contact.
func SessionMiddleware(sessions SessionIssuer) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := sessions.ID(w, r)
			ctx := infrastructure.WithSessionID(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
