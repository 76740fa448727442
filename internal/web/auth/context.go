package auth

import (
	"context"

	webcontext "github.com/portfolio-egg/egg/internal/web/context"
)

// CurrentUserID returns the signed-in user's id, or 0 when anonymous
func CurrentUserID(ctx context.Context) int64 {
	return webcontext.GetCurrentUserID(ctx)
}

// CurrentSession returns the session of the signed-in user
func CurrentSession(ctx context.Context) (webcontext.Session, bool) {
	return webcontext.GetSession(ctx)
}

// WithClaims stores the session described by claims in ctx
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	s := webcontext.Session{
		UserID:  claims.UserID,
		TokenID: claims.ID,
		Client:  claims.Client,
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return webcontext.SetSession(ctx, s)
}
