// Package ratelimit limits request rates per key, in process or across
// instances through Redis.
package ratelimit

import (
	"context"
	"time"
)

// RateLimiter defines the interface for rate limiting implementations
type RateLimiter interface {
	// Allow checks if a request should be allowed for the given key
	// Returns RateLimitInfo with current state and error if any
	Allow(ctx context.Context, key string) (*RateLimitInfo, error)
}

// RateLimitInfo contains information about the current rate limit state
type RateLimitInfo struct {
	// Limit is the maximum number of requests allowed in the window
	Limit int
	// Remaining is the number of requests remaining in the current window
	Remaining int
	// ResetAt is when the rate limit window resets
	ResetAt time.Time
	// Allowed indicates whether the request should be allowed
	Allowed bool
}

// Config describes a limit of Limit requests per Window
type Config struct {
	Limit  int
	Window time.Duration
	// Prefix namespaces keys so several limiters can share a backend
	Prefix string
}

// PerMinute is shorthand for a Config allowing n requests per minute
func PerMinute(n int, prefix string) Config {
	return Config{Limit: n, Window: time.Minute, Prefix: prefix}
}
