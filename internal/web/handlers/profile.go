package handlers

import (
	"net/http"

	"github.com/portfolio-egg/egg/internal/models"
	"github.com/portfolio-egg/egg/internal/web/auth"
	"github.com/portfolio-egg/egg/internal/web/response"
)

const profileImageField = "profile_image"

// ShowProfile handles GET /api/v1/profile
func (h *Handlers) ShowProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.store.Users.Find(r.Context(), auth.CurrentUserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.renderProfile(w, r, user)
}

// UpdateProfile handles PATCH and PUT /api/v1/profile
func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := h.store.Users.Find(ctx, auth.CurrentUserID(ctx))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	body, ok := h.parse(w, r)
	if !ok {
		return
	}
	params, err := body.Require("user")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	models.ProfileInput{
		Username:   optString(params, "username"),
		Bio:        optString(params, "bio"),
		GithubURL:  optString(params, "github_url"),
		TwitterURL: optString(params, "twitter_url"),
	}.Apply(user)
	errs := user.Validate()
	image := h.openUpload(params, profileImageField, errs)
	if image != nil {
		defer image.Close()
	}
	if errs.HasErrors() {
		response.RenderValidationError(w, errs)
		return
	}

	if image != nil {
		blob, err := h.saveUpload(ctx, image, profileImageField)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		user.ProfileImageBlobID = &blob.ID
	}

	if err := h.store.Users.Update(ctx, user); err != nil {
		h.fail(w, r, err)
		return
	}
	h.renderProfile(w, r, user)
}

func (h *Handlers) renderProfile(w http.ResponseWriter, r *http.Request, user *models.User) {
	p, err := h.present(r.Context(), nil, user.ProfileImageBlobID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, p.profile(user))
}
