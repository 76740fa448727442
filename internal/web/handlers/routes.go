package handlers

import (
	"net/http"

	"github.com/portfolio-egg/egg/internal/web/cache"
	"github.com/portfolio-egg/egg/internal/web/middleware"
	"github.com/portfolio-egg/egg/internal/web/router"
)

// Register mounts every endpoint on r
func (h *Handlers) Register(r *router.Router) {
	requireAuth := middleware.RequireAuth(h.auth, h.logger)
	optionalAuth := middleware.OptionalAuth(h.auth, h.logger)

	r.Get("/", h.Root).Named("root")
	r.Get("/ping", h.Ping).Named("ping")
	if h.metrics != nil {
		r.Handle(http.MethodGet, "/metrics", h.metrics.Handler()).Named("metrics")
	}
	r.Get("/blobs/redirect/{signed_id}/*", h.BlobRedirect).Named("blobs.redirect")
	r.Get("/blobs/files/{key}/*", h.BlobFile).Named("blobs.file")

	r.Route("/api/v1", func(api *router.Router) {
		public := api.With("auth_optional", optionalAuth)
		cached := public.With("etag", cache.ETag)
		cached.Get("/apps", h.ListApps).Named("apps.index")
		cached.Get("/apps/{id}", h.ShowApp).Named("apps.show")
		cached.Get("/app_versions/{id}", h.ShowVersion).Named("app_versions.show")
		cached.Get("/app_versions/{id}/feedbacks", h.ListFeedbacks).Named("feedbacks.index")
		public.Get("/apps/{id}/feedback_stream", h.FeedbackStream).Named("apps.feedback_stream")

		authed := api.With("auth_required", requireAuth)
		authed.Get("/my-apps", h.MyApps).Named("apps.mine")
		authed.Resources("/apps", "apps", "id", router.ResourceHandlers{
			Create: h.CreateApp,
			Update: h.UpdateApp,
			Delete: h.DeleteApp,
		})
		authed.Get("/apps/{id}/app_versions", h.ListVersions).Named("app_versions.index")
		authed.Post("/apps/{id}/app_versions", h.CreateVersion).Named("app_versions.create")
		authed.Post("/app_versions/{id}/feedbacks", h.SaveFeedback).Named("feedbacks.create")
		authed.Get("/app_versions/{id}/feedbacks/my_feedback", h.MyFeedback).Named("feedbacks.mine")
		authed.Get("/profile", h.ShowProfile).Named("profile.show")
		authed.Patch("/profile", h.UpdateProfile).Named("profile.update")
		authed.Put("/profile", h.UpdateProfile)

		api.Route("/auth", func(a *router.Router) {
			credentials := a
			if h.authLimiter != nil {
				credentials = a.With("auth_rate_limit", middleware.RateLimit(h.authLimiter, h.logger))
			}
			credentials.Post("/", h.SignUp).Named("auth.sign_up")
			credentials.Post("/sign_in", h.SignIn).Named("auth.sign_in")

			session := a.With("auth_optional", optionalAuth)
			session.Delete("/sign_out", h.SignOut).Named("auth.sign_out")
			session.Get("/validate_token", h.ValidateToken).Named("auth.validate_token")

			a.Get("/github", h.GitHubSignIn).Named("auth.github")
			a.Get("/github/callback", h.GitHubCallback).Named("auth.github_callback")
		})
	})
}
