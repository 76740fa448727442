package middleware

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	webcontext "github.com/portfolio-egg/egg/internal/web/context"
	"github.com/portfolio-egg/egg/internal/web/ratelimit"
	"github.com/portfolio-egg/egg/internal/web/response"
)

// RateLimitConfig holds configuration for rate limiting middleware
type RateLimitConfig struct {
	// Limiter is the rate limiter implementation to use
	Limiter ratelimit.RateLimiter
	// KeyFunc extracts the rate limit key from the request
	KeyFunc RateLimitKeyFunc
	// FailOpen determines behavior when rate limiter returns an error
	// If true, allows the request; if false, answers 503
	FailOpen bool
	// Logger records limiter failures
	Logger *zap.Logger
}

// RateLimitKeyFunc extracts a rate limit key from a request
type RateLimitKeyFunc func(*http.Request) string

// RateLimit creates a rate limiting middleware keyed by client IP that
// fails open.
func RateLimit(limiter ratelimit.RateLimiter, logger *zap.Logger) Middleware {
	return RateLimitWithConfig(RateLimitConfig{
		Limiter:  limiter,
		KeyFunc:  IPKeyFunc,
		FailOpen: true,
		Logger:   logger,
	})
}

// RateLimitWithConfig creates a rate limiting middleware with custom configuration
func RateLimitWithConfig(config RateLimitConfig) Middleware {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	keyFunc := config.KeyFunc
	if keyFunc == nil {
		keyFunc = IPKeyFunc
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			info, err := config.Limiter.Allow(r.Context(), key)
			if err != nil {
				logger.Warn("rate limit check failed", zap.String("key", key), zap.Error(err))
				if config.FailOpen {
					next.ServeHTTP(w, r)
				} else {
					response.RenderError(w, http.StatusServiceUnavailable, response.ErrServiceUnavailable)
				}
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetAt.Unix(), 10))

			if !info.Allowed {
				retryAfter := int(time.Until(info.ResetAt).Round(time.Second).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				response.RenderTooManyRequests(w, retryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// IPKeyFunc keys requests by the client address resolved by ClientIP, or
// by the peer address when ClientIP did not run
func IPKeyFunc(r *http.Request) string {
	if ip := webcontext.GetClientIP(r.Context()); ip != "" {
		return ip
	}
	return peerHost(r)
}

// UserOrIPKeyFunc keys signed-in callers by user id and others by IP
func UserOrIPKeyFunc(r *http.Request) string {
	if id := webcontext.GetCurrentUserID(r.Context()); id > 0 {
		return "user:" + strconv.FormatInt(id, 10)
	}
	return "ip:" + IPKeyFunc(r)
}
