package handlers

import (
	"net/http"

	"github.com/portfolio-egg/egg/internal/models"
	"github.com/portfolio-egg/egg/internal/orm/validation"
	"github.com/portfolio-egg/egg/internal/store"
	"github.com/portfolio-egg/egg/internal/web/request"
	"github.com/portfolio-egg/egg/internal/web/response"
)

// ListVersions handles GET /api/v1/apps/{id}/app_versions
func (h *Handlers) ListVersions(w http.ResponseWriter, r *http.Request) {
	app, ok := h.ownedApp(w, r)
	if !ok {
		return
	}
	versions, err := h.store.Versions.ListByApp(r.Context(), app.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if versions == nil {
		versions = []models.AppVersion{}
	}
	response.OK(w, versions)
}

// CreateVersion handles POST /api/v1/apps/{id}/app_versions. App changes
// sent along are saved with the version or not at all.
func (h *Handlers) CreateVersion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	app, ok := h.ownedApp(w, r)
	if !ok {
		return
	}
	body, ok := h.parse(w, r)
	if !ok {
		return
	}
	params, err := body.Require("app_version")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	version := &models.AppVersion{
		AppID:         app.ID,
		VersionNumber: params.String("version_number"),
		ReleaseDate:   h.today(),
		Changelog:     optString(params, "changelog"),
	}

	var changed *models.App
	errs := validation.NewErrors()
	var thumbnail *request.UploadedFile
	if appParams := body.Optional("app"); !appParams.Empty() {
		appInput(appParams).Apply(app)
		errs.Merge(app.Validate())
		thumbnail = h.openUpload(appParams, thumbnailField, errs)
		if thumbnail != nil {
			defer thumbnail.Close()
		}
		changed = app
	}
	errs.Merge(version.Validate())
	if errs.HasErrors() {
		response.RenderValidationError(w, errs)
		return
	}
	if changed != nil {
		if err := h.attachThumbnail(ctx, thumbnail, changed); err != nil {
			h.fail(w, r, err)
			return
		}
	}

	err = h.store.ReleaseVersion(ctx, changed, version)
	if store.IsUniqueViolation(err) {
		taken := validation.NewErrors()
		taken.Add("version_number", validation.MsgTaken)
		err = taken
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Created(w, version)
}

// ShowVersion handles GET /api/v1/app_versions/{id}
func (h *Handlers) ShowVersion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	version, err := h.store.Versions.Find(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, users, err := h.versionFeedbacks(r, version.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, versionWithFeedbackJSON{AppVersion: version, Feedbacks: feedbacks(list, users)})
}
