package middleware

import (
	"context"
	"net/http"
	"time"
)

// Deadline bounds the request context so database work started by a
// handler is cancelled after timeout. Handlers are not interrupted;
// they observe ctx.Done through the calls they make.
func Deadline(timeout time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
