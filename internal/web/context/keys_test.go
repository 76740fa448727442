package context

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", GetRequestID(ctx))

	ctx = SetRequestID(ctx, "req-1")
	assert.Equal(t, "req-1", GetRequestID(ctx))
}

func TestClientIP(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", GetClientIP(ctx))
	assert.Equal(t, "203.0.113.9", GetClientIP(SetClientIP(ctx, "203.0.113.9")))
}

func TestSession(t *testing.T) {
	ctx := context.Background()
	_, ok := GetSession(ctx)
	assert.False(t, ok)
	assert.Equal(t, int64(0), GetCurrentUserID(ctx))

	s := Session{UserID: 7, TokenID: "jti", Client: "web", ExpiresAt: time.Now()}
	ctx = SetSession(ctx, s)

	got, ok := GetSession(ctx)
	assert.True(t, ok)
	assert.Equal(t, s, got)
	assert.Equal(t, int64(7), GetCurrentUserID(ctx))
}
