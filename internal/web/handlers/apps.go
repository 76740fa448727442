package handlers

import (
	"context"
	"net/http"

	"github.com/portfolio-egg/egg/internal/models"
	"github.com/portfolio-egg/egg/internal/orm/validation"
	"github.com/portfolio-egg/egg/internal/store"
	"github.com/portfolio-egg/egg/internal/web/auth"
	"github.com/portfolio-egg/egg/internal/web/request"
	"github.com/portfolio-egg/egg/internal/web/response"
	"github.com/portfolio-egg/egg/internal/web/router"
)

const (
	initialChangelog = "Initial release"
	thumbnailField   = "thumbnail_image"
)

// ListApps handles GET /api/v1/apps
func (h *Handlers) ListApps(w http.ResponseWriter, r *http.Request) {
	p := router.NewParamExtractor(r)
	h.renderAppList(w, r, store.AppFilter{
		Category: p.QueryParam("category"),
		Query:    p.QueryParam("q"),
		Sort:     p.QueryParamWithDefault("sort", store.SortNewest),
	})
}

// MyApps handles GET /api/v1/my-apps
func (h *Handlers) MyApps(w http.ResponseWriter, r *http.Request) {
	h.renderAppList(w, r, store.AppFilter{OwnerID: auth.CurrentUserID(r.Context())})
}

func (h *Handlers) renderAppList(w http.ResponseWriter, r *http.Request, filter store.AppFilter) {
	ctx := r.Context()

	apps, err := h.store.Apps.List(ctx, filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ownerIDs := make([]int64, len(apps))
	thumbnails := make([]*int64, len(apps))
	for i := range apps {
		ownerIDs[i] = apps[i].UserID
		thumbnails[i] = apps[i].ThumbnailBlobID
	}
	p, err := h.present(ctx, ownerIDs, thumbnails...)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	items := make([]appListItemJSON, len(apps))
	for i := range apps {
		items[i] = appListItemJSON{
			appJSON:       p.app(&apps[i].App, true),
			Version:       apps[i].Version(),
			FeedbackCount: apps[i].FeedbackCount,
			OverallScore:  apps[i].OverallScore(),
		}
	}
	response.OK(w, items)
}

// ShowApp handles GET /api/v1/apps/{id}
func (h *Handlers) ShowApp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	app, err := h.store.Apps.Find(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	versions, err := h.store.Versions.ListByApp(ctx, app.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	versionIDs := make([]int64, len(versions))
	for i := range versions {
		versionIDs[i] = versions[i].ID
	}

	all, err := h.store.Feedbacks.ListByVersions(ctx, versionIDs)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	userIDs := []int64{app.UserID}
	byVersion := make(map[int64][]*models.Feedback, len(versions))
	for i := range all {
		fb := &all[i]
		byVersion[fb.AppVersionID] = append(byVersion[fb.AppVersionID], fb)
		userIDs = append(userIDs, fb.UserID)
	}

	p, err := h.present(ctx, userIDs, app.ThumbnailBlobID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	detail := appDetailJSON{
		appJSON:     p.app(app, true),
		AppVersions: make([]versionDetailJSON, len(versions)),
		IsOwner:     auth.CurrentUserID(ctx) == app.UserID,
	}
	for i := range versions {
		v := &versions[i]
		list := byVersion[v.ID]
		rendered := make([]reviewedFeedbackJSON, len(list))
		for j, fb := range list {
			rendered[j] = reviewedFeedbackJSON{Feedback: fb, User: p.reviewer(fb.UserID)}
		}
		detail.AppVersions[i] = versionDetailJSON{AppVersion: v, Feedbacks: rendered}
	}
	response.OK(w, detail)
}

// CreateApp handles POST /api/v1/apps. The app starts with version 1.0.0.
func (h *Handlers) CreateApp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, ok := h.parse(w, r)
	if !ok {
		return
	}
	params, err := body.Require("app")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	app := &models.App{UserID: auth.CurrentUserID(ctx)}
	appInput(params).Apply(app)
	errs := app.Validate()
	thumbnail := h.openUpload(params, thumbnailField, errs)
	if thumbnail != nil {
		defer thumbnail.Close()
	}
	if errs.HasErrors() {
		response.RenderValidationError(w, errs)
		return
	}

	if err := h.attachThumbnail(ctx, thumbnail, app); err != nil {
		h.fail(w, r, err)
		return
	}

	initial := &models.AppVersion{
		VersionNumber: models.DefaultVersionNumber,
		ReleaseDate:   h.today(),
		Changelog:     strPtr(initialChangelog),
	}
	if err := h.store.CreateApp(ctx, app, initial); err != nil {
		h.fail(w, r, err)
		return
	}

	h.renderApp(w, r, http.StatusCreated, app)
}

// UpdateApp handles PATCH and PUT /api/v1/apps/{id}
func (h *Handlers) UpdateApp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	app, ok := h.ownedApp(w, r)
	if !ok {
		return
	}
	body, ok := h.parse(w, r)
	if !ok {
		return
	}
	params, err := body.Require("app")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	appInput(params).Apply(app)
	errs := app.Validate()
	thumbnail := h.openUpload(params, thumbnailField, errs)
	if thumbnail != nil {
		defer thumbnail.Close()
	}
	if errs.HasErrors() {
		response.RenderValidationError(w, errs)
		return
	}
	if err := h.attachThumbnail(ctx, thumbnail, app); err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.store.Apps.Update(ctx, app); err != nil {
		h.fail(w, r, err)
		return
	}
	h.renderApp(w, r, http.StatusOK, app)
}

// DeleteApp handles DELETE /api/v1/apps/{id}
func (h *Handlers) DeleteApp(w http.ResponseWriter, r *http.Request) {
	app, ok := h.ownedApp(w, r)
	if !ok {
		return
	}
	if err := h.store.Apps.Delete(r.Context(), app.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	response.NoContent(w)
}

// ownedApp loads the {id} app of the caller. Other users' apps are
// reported as missing.
func (h *Handlers) ownedApp(w http.ResponseWriter, r *http.Request) (*models.App, bool) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return nil, false
	}
	app, err := h.store.Apps.FindOwned(r.Context(), id, auth.CurrentUserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return app, true
}

func (h *Handlers) renderApp(w http.ResponseWriter, r *http.Request, status int, app *models.App) {
	p, err := h.present(r.Context(), nil, app.ThumbnailBlobID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, status, p.app(app, false))
}

func (h *Handlers) attachThumbnail(ctx context.Context, file *request.UploadedFile, app *models.App) error {
	if file == nil {
		return nil
	}
	blob, err := h.saveUpload(ctx, file, thumbnailField)
	if err != nil {
		return err
	}
	app.ThumbnailBlobID = &blob.ID
	return nil
}

func appInput(p *request.Params) models.AppInput {
	return models.AppInput{
		Title:       optString(p, "title"),
		Description: optString(p, "description"),
		Category:    optString(p, "category"),
		GithubURL:   optString(p, "github_url"),
		DeployURL:   optString(p, "deploy_url"),
	}
}

// openUpload validates the image sent as field. It returns nil when no
// file was sent, and records rejected files on errs. Callers close the
// returned file.
func (h *Handlers) openUpload(params *request.Params, field string, errs *validation.Errors) *request.UploadedFile {
	header := params.File(field)
	if header == nil {
		return nil
	}
	file, err := h.uploader.Open(header)
	if err != nil {
		errs.Add(field, uploadMessage(err))
		return nil
	}
	return file
}

// saveUpload saves an opened upload and its blob row
func (h *Handlers) saveUpload(ctx context.Context, file *request.UploadedFile, field string) (*models.Blob, error) {
	blob, err := h.attachments.Attach(ctx, file)
	if err != nil {
		return nil, err
	}
	if h.metrics != nil {
		h.metrics.RecordUpload(field)
	}
	return blob, nil
}

func strPtr(s string) *string { return &s }
