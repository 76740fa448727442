package auth

import (
	"context"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portfolio-egg/egg/internal/web/cache"
)

const testSecret = "test-secret-key-for-egg"

func newTestService(t *testing.T) *AuthService {
	t.Helper()
	c := cache.NewMemoryCache(cache.DefaultConfig())
	t.Cleanup(func() { _ = c.Close() })
	return NewAuthService(testSecret, time.Hour, c)
}

func TestGenerateAndValidateToken(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tok, err := svc.GenerateToken(42, "dog@user.com", "")
	require.NoError(t, err)
	assert.NotEmpty(t, tok.AccessToken)
	assert.NotEmpty(t, tok.Client)
	assert.NotEmpty(t, tok.TokenID)
	assert.Equal(t, "dog@user.com", tok.UID)

	claims, err := svc.ValidateToken(ctx, tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, tok.Client, claims.Client)
	assert.Equal(t, tok.TokenID, claims.ID)
	assert.Equal(t, "dog@user.com", claims.Subject)
}

func TestGenerateToken_KeepsClient(t *testing.T) {
	svc := newTestService(t)

	tok, err := svc.GenerateToken(1, "cat@user.com", "browser-1")
	require.NoError(t, err)
	assert.Equal(t, "browser-1", tok.Client)
}

func TestValidateToken_Rejects(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ValidateToken(ctx, "not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewAuthService("another-secret", time.Hour, nil)
		tok, err := other.GenerateToken(1, "a@b.c", "")
		require.NoError(t, err)

		_, err = svc.ValidateToken(ctx, tok.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		tok, err := svc.GenerateToken(1, "a@b.c", "")
		require.NoError(t, err)

		svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		defer func() { svc.now = time.Now }()

		_, err = svc.ValidateToken(ctx, tok.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("none algorithm", func(t *testing.T) {
		claims := Claims{UserID: 1, Purpose: tokenPurpose, RegisteredClaims: jwt.RegisteredClaims{
			ID: "x", Issuer: issuer, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = svc.ValidateToken(ctx, signed)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("other purpose", func(t *testing.T) {
		claims := Claims{UserID: 1, Purpose: "blob", RegisteredClaims: jwt.RegisteredClaims{
			ID: "x", Issuer: issuer, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = svc.ValidateToken(ctx, signed)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestRevoke(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tok, err := svc.GenerateToken(5, "fox@user.com", "")
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, tok.TokenID, tok.ExpiresAt))

	_, err = svc.ValidateToken(ctx, tok.AccessToken)
	assert.ErrorIs(t, err, ErrRevokedToken)

	// a fresh token for the same user is unaffected
	fresh, err := svc.GenerateToken(5, "fox@user.com", tok.Client)
	require.NoError(t, err)
	_, err = svc.ValidateToken(ctx, fresh.AccessToken)
	assert.NoError(t, err)
}

func TestRevoke_WithoutStore(t *testing.T) {
	svc := NewAuthService(testSecret, time.Hour, nil)
	assert.Error(t, svc.Revoke(context.Background(), "id", time.Now().Add(time.Hour)))
}

func TestTokenWriteHeaders(t *testing.T) {
	expires := time.Unix(1700000000, 0)
	tok := Token{AccessToken: "jwt", Client: "c1", UID: "dog@user.com", ExpiresAt: expires}

	h := http.Header{}
	tok.WriteHeaders(h)

	assert.Equal(t, "jwt", h.Get("access-token"))
	assert.Equal(t, "Bearer", h.Get("token-type"))
	assert.Equal(t, "c1", h.Get("client"))
	assert.Equal(t, strconv.FormatInt(expires.Unix(), 10), h.Get("expiry"))
	assert.Equal(t, "dog@user.com", h.Get("uid"))
}

func TestWithClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	claims := &Claims{UserID: 9, Client: "c", RegisteredClaims: jwt.RegisteredClaims{
		ID: "jti", ExpiresAt: jwt.NewNumericDate(exp),
	}}

	ctx := WithClaims(context.Background(), claims)

	assert.Equal(t, int64(9), CurrentUserID(ctx))
	s, ok := CurrentSession(ctx)
	require.True(t, ok)
	assert.Equal(t, "jti", s.TokenID)
	assert.Equal(t, "c", s.Client)
	assert.True(t, exp.Equal(s.ExpiresAt))
}
