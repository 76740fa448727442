package middleware

import (
	"net/http"
	"strings"
)

// Predicate selects requests
type Predicate func(*http.Request) bool

// Unless applies m to every request that skip does not match
func Unless(skip Predicate, m Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		wrapped := m(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip(r) {
				next.ServeHTTP(w, r)
				return
			}
			wrapped.ServeHTTP(w, r)
		})
	}
}

// IsWebSocketUpgrade matches websocket handshakes. Their connection is
// hijacked, so response writers wrapping it must stay out of the way.
func IsWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
