package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/portfolio-egg/egg/internal/web/cache"
)

const (
	// tokenPurpose marks access tokens so other HS256 tokens signed with the
	// same secret (signed blob ids) are never accepted as credentials.
	tokenPurpose = "access"
	issuer       = "egg"
)

var (
	// ErrInvalidToken is returned for malformed, expired or foreign tokens
	ErrInvalidToken = errors.New("invalid token")
	// ErrRevokedToken is returned for tokens that were signed out
	ErrRevokedToken = errors.New("token has been revoked")
)

// Claims are the JWT claims of an access token
type Claims struct {
	UserID  int64  `json:"user_id"`
	Client  string `json:"client"`
	Purpose string `json:"pur"`
	jwt.RegisteredClaims
}

// Token is an issued access token together with the values sent back to
// clients as response headers.
type Token struct {
	AccessToken string
	Client      string
	UID         string
	TokenID     string
	ExpiresAt   time.Time
}

// WriteHeaders sets the access-token, token-type, client, expiry and uid headers
func (t Token) WriteHeaders(h http.Header) {
	h.Set("access-token", t.AccessToken)
	h.Set("token-type", "Bearer")
	h.Set("client", t.Client)
	h.Set("expiry", strconv.FormatInt(t.ExpiresAt.Unix(), 10))
	h.Set("uid", t.UID)
}

// AuthService provides JWT token generation, validation and revocation
type AuthService struct {
	secretKey []byte
	tokenTTL  time.Duration
	revoked   cache.Cache
	now       func() time.Time
}

// NewAuthService creates a new AuthService. Revoked token ids are kept in
// revoked until the token would have expired anyway.
func NewAuthService(secretKey string, tokenTTL time.Duration, revoked cache.Cache) *AuthService {
	return &AuthService{
		secretKey: []byte(secretKey),
		tokenTTL:  tokenTTL,
		revoked:   revoked,
		now:       time.Now,
	}
}

// GenerateToken issues an access token for a user. uid is the user's public
// identifier (their email). An empty client starts a new client session.
func (s *AuthService) GenerateToken(userID int64, uid, client string) (Token, error) {
	if client == "" {
		client = uuid.NewString()
	}

	now := s.now()
	expiresAt := now.Add(s.tokenTTL)
	tokenID := uuid.NewString()

	claims := Claims{
		UserID:  userID,
		Client:  client,
		Purpose: tokenPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Issuer:    issuer,
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secretKey)
	if err != nil {
		return Token{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return Token{
		AccessToken: signed,
		Client:      client,
		UID:         uid,
		TokenID:     tokenID,
		ExpiresAt:   time.Unix(expiresAt.Unix(), 0),
	}, nil
}

// ValidateToken validates a JWT token, checks it has not been revoked and
// returns its claims.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Verify exact signing method to prevent algorithm confusion attacks
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Purpose != tokenPurpose || claims.UserID <= 0 || claims.ID == "" {
		return nil, ErrInvalidToken
	}

	if s.revoked != nil {
		revoked, err := s.revoked.Exists(ctx, revokedKey(claims.ID))
		if err != nil {
			return nil, fmt.Errorf("failed to check token revocation: %w", err)
		}
		if revoked {
			return nil, ErrRevokedToken
		}
	}

	return claims, nil
}

// Revoke invalidates a token until its natural expiry
func (s *AuthService) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if s.revoked == nil {
		return errors.New("token revocation is not configured")
	}
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	return s.revoked.Set(ctx, revokedKey(tokenID), []byte("1"), ttl)
}

func revokedKey(tokenID string) string {
	return "revoked:" + tokenID
}
