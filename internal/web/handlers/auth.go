package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/portfolio-egg/egg/internal/models"
	"github.com/portfolio-egg/egg/internal/orm/validation"
	"github.com/portfolio-egg/egg/internal/store"
	"github.com/portfolio-egg/egg/internal/web/auth"
	"github.com/portfolio-egg/egg/internal/web/oauth"
	"github.com/portfolio-egg/egg/internal/web/response"
)

const (
	msgBadCredentials = "Invalid login credentials. Please try again."
	msgNotSignedIn    = "User was not found or was not logged in."
	msgInvalidToken   = "Invalid login credentials"
)

// SignUp handles POST /api/v1/auth
func (h *Handlers) SignUp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, ok := h.parse(w, r)
	if !ok {
		return
	}
	params := body.Root()

	in := models.SignUpInput{
		Email:                models.NormalizeEmail(params.String("email")),
		Password:             params.String("password"),
		PasswordConfirmation: optString(params, "password_confirmation"),
		Username:             strings.TrimSpace(params.String("username")),
	}
	errs := in.Validate()
	if errs.On("email") == nil {
		_, err := h.store.Users.FindByEmail(ctx, in.Email)
		switch {
		case err == nil:
			errs.Add("email", validation.MsgTaken)
		case !store.IsNotFound(err):
			h.fail(w, r, err)
			return
		}
	}
	if errs.HasErrors() {
		response.RenderValidationError(w, errs)
		return
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	user := &models.User{
		Email:        in.Email,
		PasswordHash: hash,
		Provider:     models.ProviderEmail,
		Username:     in.Username,
	}
	err = h.store.Users.Create(ctx, user)
	if store.IsUniqueViolation(err) {
		taken := validation.NewErrors()
		taken.Add("email", validation.MsgTaken)
		err = taken
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if !h.issueToken(w, r, user, "") {
		return
	}
	h.recordAuth(models.ProviderEmail, true)
	h.renderAccount(w, r, http.StatusOK, map[string]interface{}{"status": "success"}, user)
}

// SignIn handles POST /api/v1/auth/sign_in
func (h *Handlers) SignIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, ok := h.parse(w, r)
	if !ok {
		return
	}
	params := body.Root()

	user, err := h.store.Users.FindByEmail(ctx, models.NormalizeEmail(params.String("email")))
	if err != nil && !store.IsNotFound(err) {
		h.fail(w, r, err)
		return
	}
	if err != nil || !auth.CheckPassword(params.String("password"), user.PasswordHash) {
		h.recordAuth(models.ProviderEmail, false)
		response.Errors(w, http.StatusUnauthorized, msgBadCredentials)
		return
	}

	if !h.issueToken(w, r, user, "") {
		return
	}
	h.recordAuth(models.ProviderEmail, true)
	h.renderAccount(w, r, http.StatusOK, nil, user)
}

// SignOut handles DELETE /api/v1/auth/sign_out by revoking the presented token
func (h *Handlers) SignOut(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.CurrentSession(r.Context())
	if !ok {
		response.Errors(w, http.StatusNotFound, msgNotSignedIn)
		return
	}
	if err := h.auth.Revoke(r.Context(), session.TokenID, session.ExpiresAt); err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, map[string]interface{}{"success": true})
}

// ValidateToken handles GET /api/v1/auth/validate_token
func (h *Handlers) ValidateToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := auth.CurrentUserID(ctx)
	if id == 0 {
		response.Errors(w, http.StatusUnauthorized, msgInvalidToken)
		return
	}
	user, err := h.store.Users.Find(ctx, id)
	if store.IsNotFound(err) {
		response.Errors(w, http.StatusUnauthorized, msgInvalidToken)
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.renderAccount(w, r, http.StatusOK, map[string]interface{}{"success": true}, user)
}

// GitHubSignIn handles GET /api/v1/auth/github
func (h *Handlers) GitHubSignIn(w http.ResponseWriter, r *http.Request) {
	if h.github == nil || !h.github.Configured() {
		h.oauthFailure(w, r, oauth.ErrNotConfigured)
		return
	}
	target, err := h.github.AuthCodeURL(r.Context())
	if err != nil {
		h.oauthFailure(w, r, err)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// GitHubCallback handles GET /api/v1/auth/github/callback. Both outcomes
// redirect back to the frontend.
func (h *Handlers) GitHubCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.github == nil || !h.github.Configured() {
		h.oauthFailure(w, r, oauth.ErrNotConfigured)
		return
	}
	q := r.URL.Query()
	if reason := q.Get("error"); reason != "" {
		h.oauthFailure(w, r, errors.New(reason))
		return
	}

	profile, err := h.github.Authenticate(ctx, q.Get("state"), q.Get("code"))
	if err != nil {
		h.oauthFailure(w, r, err)
		return
	}

	password, err := auth.RandomPassword()
	if err != nil {
		h.oauthFailure(w, r, err)
		return
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		h.oauthFailure(w, r, err)
		return
	}
	candidate := &models.User{
		Email:        models.NormalizeEmail(profile.Email),
		PasswordHash: hash,
		Provider:     models.ProviderGitHub,
		UID:          profile.UID,
		Username:     profile.Username(),
		Name:         nonEmpty(profile.Name),
		GithubURL:    nonEmpty(profile.HTMLURL),
	}
	if candidate.Email == "" {
		candidate.Email = models.NormalizeEmail(profile.UID + "+" + profile.Login + "@users.noreply.github.com")
	}

	user, created, err := h.store.FindOrCreateUser(ctx, candidate)
	if err != nil {
		h.oauthFailure(w, r, err)
		return
	}
	token, err := h.auth.GenerateToken(user.ID, user.UID, "")
	if err != nil {
		h.oauthFailure(w, r, err)
		return
	}
	h.recordAuth(models.ProviderGitHub, true)
	h.logger.Info("github sign-in",
		zap.Int64("user_id", user.ID),
		zap.Bool("created", created))

	values := url.Values{}
	values.Set("token", token.AccessToken)
	values.Set("client", token.Client)
	values.Set("uid", token.UID)
	values.Set("provider", models.ProviderGitHub)
	http.Redirect(w, r, h.frontendURL+"/auth/callback?"+values.Encode(), http.StatusFound)
}

func (h *Handlers) oauthFailure(w http.ResponseWriter, r *http.Request, err error) {
	h.recordAuth(models.ProviderGitHub, false)
	h.logger.Warn("github sign-in failed", zap.Error(err))
	http.Redirect(w, r, h.frontendURL+"/auth/failure?provider="+models.ProviderGitHub, http.StatusFound)
}

// issueToken writes fresh token headers for user
func (h *Handlers) issueToken(w http.ResponseWriter, r *http.Request, user *models.User, client string) bool {
	token, err := h.auth.GenerateToken(user.ID, user.UID, client)
	if err != nil {
		h.fail(w, r, err)
		return false
	}
	token.WriteHeaders(w.Header())
	return true
}

// renderAccount writes {"data": user} merged with extra
func (h *Handlers) renderAccount(w http.ResponseWriter, r *http.Request, status int, extra map[string]interface{}, user *models.User) {
	p, err := h.present(r.Context(), nil, user.ProfileImageBlobID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := map[string]interface{}{"data": p.account(user)}
	for k, v := range extra {
		out[k] = v
	}
	response.JSON(w, status, out)
}

func (h *Handlers) recordAuth(provider string, ok bool) {
	if h.metrics != nil {
		h.metrics.RecordAuth(provider, ok)
	}
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
