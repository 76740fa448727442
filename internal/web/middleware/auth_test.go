package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portfolio-egg/egg/internal/web/auth"
	"github.com/portfolio-egg/egg/internal/web/cache"
)

func newAuthService(t *testing.T) *auth.AuthService {
	t.Helper()
	c := cache.NewMemoryCache(cache.DefaultConfig())
	t.Cleanup(func() { _ = c.Close() })
	return auth.NewAuthService("middleware-test-secret", time.Hour, c)
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"none", nil, ""},
		{"bearer", map[string]string{"Authorization": "Bearer abc"}, "abc"},
		{"lowercase bearer", map[string]string{"Authorization": "bearer abc"}, "abc"},
		{"basic", map[string]string{"Authorization": "Basic abc"}, ""},
		{"access-token header", map[string]string{"access-token": "xyz"}, "xyz"},
		{"authorization wins", map[string]string{"Authorization": "Bearer abc", "access-token": "xyz"}, "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ExtractToken(req))
		})
	}
}

func TestRequireAuth(t *testing.T) {
	svc := newAuthService(t)
	tok, err := svc.GenerateToken(11, "dog@user.com", "")
	require.NoError(t, err)

	var userID int64
	handler := RequireAuth(svc, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID = auth.CurrentUserID(r.Context())
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUser   int64
	}{
		{"valid token", "Bearer " + tok.AccessToken, http.StatusOK, 11},
		{"missing token", "", http.StatusUnauthorized, 0},
		{"invalid token", "Bearer nope", http.StatusUnauthorized, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userID = 0
			req := httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantUser, userID)
		})
	}
}

func TestRequireAuth_RevokedToken(t *testing.T) {
	svc := newAuthService(t)
	tok, err := svc.GenerateToken(11, "dog@user.com", "")
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(context.Background(), tok.TokenID, tok.ExpiresAt))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("access-token", tok.AccessToken)
	rec := httptest.NewRecorder()
	RequireAuth(svc, nil)(okHandler("ok")).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOptionalAuth(t *testing.T) {
	svc := newAuthService(t)
	tok, err := svc.GenerateToken(7, "cat@user.com", "")
	require.NoError(t, err)

	var userID int64
	handler := OptionalAuth(svc, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID = auth.CurrentUserID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/apps/1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(0), userID)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/apps/1", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(0), userID)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/apps/1", nil)
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, int64(7), userID)
}

type failingValidator struct{}

func (failingValidator) ValidateToken(ctx context.Context, token string) (*auth.Claims, error) {
	return nil, errors.New("cache unreachable")
}

func TestRequireAuth_BackendFailure(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer x")
	rec := httptest.NewRecorder()

	RequireAuth(failingValidator{}, nil)(okHandler("ok")).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
