package server

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Hook releases a resource during graceful shutdown
type Hook func(ctx context.Context) error

type namedHook struct {
	name string
	fn   Hook
}

type hookList struct {
	mu    sync.Mutex
	hooks []namedHook
}

func (l *hookList) add(name string, fn Hook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, namedHook{name: name, fn: fn})
}

// run calls every hook, newest first. A failing hook does not stop the
// others.
func (l *hookList) run(ctx context.Context, logger *zap.Logger) []error {
	l.mu.Lock()
	hooks := make([]namedHook, len(l.hooks))
	copy(hooks, l.hooks)
	l.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		if err := h.fn(ctx); err != nil {
			logger.Error("shutdown hook failed", zap.String("hook", h.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("shutdown hook %s: %w", h.name, err))
			continue
		}
		logger.Debug("shutdown hook completed", zap.String("hook", h.name))
	}
	return errs
}
