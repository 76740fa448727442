package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/portfolio-egg/egg/internal/web/auth"
	"github.com/portfolio-egg/egg/internal/web/response"
)

// TokenValidator validates access tokens. *auth.AuthService implements it.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*auth.Claims, error)
}

// AuthConfig holds configuration for authentication middleware
type AuthConfig struct {
	// Validator is used to validate tokens
	Validator TokenValidator
	// Optional lets anonymous requests through; a valid token still
	// identifies the caller.
	Optional bool
	// Logger records validation failures other than bad tokens
	Logger *zap.Logger
}

// RequireAuth rejects requests without a valid access token with 401
func RequireAuth(validator TokenValidator, logger *zap.Logger) Middleware {
	return AuthWithConfig(AuthConfig{Validator: validator, Logger: logger})
}

// OptionalAuth identifies the caller when a valid token is sent
func OptionalAuth(validator TokenValidator, logger *zap.Logger) Middleware {
	return AuthWithConfig(AuthConfig{Validator: validator, Optional: true, Logger: logger})
}

// AuthWithConfig creates an authentication middleware with custom configuration
func AuthWithConfig(config AuthConfig) Middleware {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r)
			if token == "" {
				if config.Optional {
					next.ServeHTTP(w, r)
					return
				}
				response.RenderUnauthorized(w, "")
				return
			}

			claims, err := config.Validator.ValidateToken(r.Context(), token)
			if err != nil {
				if !errors.Is(err, auth.ErrInvalidToken) && !errors.Is(err, auth.ErrRevokedToken) {
					logger.Error("token validation failed", zap.Error(err))
				}
				if config.Optional {
					next.ServeHTTP(w, r)
					return
				}
				response.RenderUnauthorized(w, "")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
		})
	}
}

// ExtractToken reads the access token from "Authorization: Bearer <jwt>" or
// the access-token header.
func ExtractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, found := strings.Cut(header, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return strings.TrimSpace(r.Header.Get("access-token"))
}
