package ratelimit

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MemoryRateLimiter is a per-key token bucket built on golang.org/x/time/rate.
// Buckets idle for longer than a window are dropped by a background sweeper.
type MemoryRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	limit    int
	window   time.Duration
	interval time.Duration
	prefix   string
	now      func() time.Time

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewMemoryRateLimiter creates an in-process limiter. Callers must Close it.
func NewMemoryRateLimiter(config Config) (*MemoryRateLimiter, error) {
	if config.Limit <= 0 {
		return nil, errors.New("limit must be greater than 0")
	}
	if config.Window <= 0 {
		return nil, errors.New("window must be greater than 0")
	}

	m := &MemoryRateLimiter{
		limiters: make(map[string]*limiterEntry),
		limit:    config.Limit,
		window:   config.Window,
		interval: config.Window / time.Duration(config.Limit),
		prefix:   config.Prefix,
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go m.sweepLoop()
	return m, nil
}

// Allow checks if a request should be allowed for the given key
func (m *MemoryRateLimiter) Allow(ctx context.Context, key string) (*RateLimitInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := m.now()
	lim := m.getLimiter(m.prefix+key, now)

	allowed := lim.AllowN(now, 1)
	tokens := lim.TokensAt(now)

	remaining := int(math.Floor(tokens))
	if remaining < 0 {
		remaining = 0
	}

	// time until the bucket is full again, or until one token is back
	missing := float64(m.limit) - tokens
	if !allowed {
		missing = 1 - tokens
	}
	resetIn := time.Duration(math.Ceil(missing * float64(m.interval)))

	return &RateLimitInfo{
		Limit:     m.limit,
		Remaining: remaining,
		ResetAt:   now.Add(resetIn),
		Allowed:   allowed,
	}, nil
}

func (m *MemoryRateLimiter) getLimiter(key string, now time.Time) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rate.Every(m.interval), m.limit)}
		m.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

// sweep drops buckets that have been idle for a full window; such a bucket
// would be full anyway.
func (m *MemoryRateLimiter) sweep() {
	cutoff := m.now().Add(-m.window)

	m.mu.Lock()
	defer m.mu.Unlock()
	for key, entry := range m.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(m.limiters, key)
		}
	}
}

func (m *MemoryRateLimiter) sweepLoop() {
	defer close(m.done)

	ticker := time.NewTicker(m.window)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

// Close stops the background sweeper
func (m *MemoryRateLimiter) Close() error {
	m.once.Do(func() {
		close(m.stop)
		<-m.done
	})
	return nil
}
