package context

import (
	"context"
	"time"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey int

const (
	requestIDKey contextKey = iota
	sessionKey
	clientIPKey
)

// Session describes the authenticated caller of a request
type Session struct {
	UserID    int64
	TokenID   string
	Client    string
	ExpiresAt time.Time
}

// GetRequestID extracts the request ID from the context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// SetRequestID adds the request ID to the context
func SetRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetClientIP returns the resolved client address, or "" when none was stored
func GetClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey).(string); ok {
		return ip
	}
	return ""
}

// SetClientIP stores the resolved client address
func SetClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// GetSession extracts the authenticated session from the context
func GetSession(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey).(Session)
	return s, ok
}

// SetSession adds the authenticated session to the context
func SetSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// GetCurrentUserID returns the id of the signed-in user, or 0 for anonymous requests
func GetCurrentUserID(ctx context.Context) int64 {
	if s, ok := GetSession(ctx); ok {
		return s.UserID
	}
	return 0
}
