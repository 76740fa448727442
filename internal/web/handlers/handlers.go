// Package handlers implements the Portfolio Egg REST API on top of the
// store, the attachment service and the token service.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/portfolio-egg/egg/internal/models"
	"github.com/portfolio-egg/egg/internal/orm/validation"
	"github.com/portfolio-egg/egg/internal/storage"
	"github.com/portfolio-egg/egg/internal/store"
	"github.com/portfolio-egg/egg/internal/web/auth"
	"github.com/portfolio-egg/egg/internal/web/metrics"
	"github.com/portfolio-egg/egg/internal/web/middleware"
	"github.com/portfolio-egg/egg/internal/web/oauth"
	"github.com/portfolio-egg/egg/internal/web/ratelimit"
	"github.com/portfolio-egg/egg/internal/web/request"
	"github.com/portfolio-egg/egg/internal/web/response"
	"github.com/portfolio-egg/egg/internal/web/router"
	"github.com/portfolio-egg/egg/internal/web/websocket"
)

// DefaultUploadLimit caps image uploads when no limit is configured
const DefaultUploadLimit = 5 << 20

// Deps are the services the handlers need
type Deps struct {
	Store       *store.Store
	Auth        *auth.AuthService
	Attachments *storage.Attachments
	GitHub      *oauth.GitHub
	Hub         *websocket.Hub
	Upgrader    *websocket.Upgrader
	Metrics     *metrics.Metrics
	Logger      *zap.Logger

	// AuthLimiter, when set, limits sign up and sign in per client IP
	AuthLimiter ratelimit.RateLimiter

	// FrontendURL is where OAuth callbacks and image fallbacks redirect
	FrontendURL string
	// UploadLimit caps image uploads in bytes
	UploadLimit int64
	// Location decides which calendar day "today" is for release dates
	Location *time.Location
}

// Handlers serves the API
type Handlers struct {
	store       *store.Store
	auth        *auth.AuthService
	attachments *storage.Attachments
	github      *oauth.GitHub
	hub         *websocket.Hub
	upgrader    *websocket.Upgrader
	metrics     *metrics.Metrics
	logger      *zap.Logger
	authLimiter ratelimit.RateLimiter

	frontendURL string
	location    *time.Location
	parser      *request.Parser
	uploader    *request.FileUploader
}

// New creates the handlers
func New(deps Deps) *Handlers {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := deps.UploadLimit
	if limit <= 0 {
		limit = DefaultUploadLimit
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}

	return &Handlers{
		store:       deps.Store,
		auth:        deps.Auth,
		attachments: deps.Attachments,
		github:      deps.GitHub,
		hub:         deps.Hub,
		upgrader:    deps.Upgrader,
		metrics:     deps.Metrics,
		logger:      logger,
		authLimiter: deps.AuthLimiter,
		frontendURL: deps.FrontendURL,
		location:    loc,
		// room for two images plus form fields
		parser:   request.NewParserWithMaxSize(2*limit + 1<<20),
		uploader: request.NewFileUploader(request.ImageUploadConfig(limit)),
	}
}

func (h *Handlers) today() models.Date {
	return models.Today(h.store.Now(), h.location)
}

// fail renders err with the status matching its kind. Unexpected errors
// are logged and hidden from the client.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *validation.Errors
	var tooLarge *http.MaxBytesError

	switch {
	case errors.As(err, &validationErr):
		response.RenderValidationError(w, validationErr)
	case store.IsNotFound(err):
		response.RenderNotFound(w, "")
	case request.IsParamMissing(err):
		response.RenderBadRequest(w, err.Error())
	case errors.As(err, &tooLarge):
		response.RenderError(w, http.StatusRequestEntityTooLarge, response.ErrRequestTooLarge)
	case errors.Is(err, context.Canceled):
		// client went away
	default:
		h.logger.Error("request failed",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		response.RenderInternalError(w)
	}
}

// parse reads the request body, answering 400 on malformed input
func (h *Handlers) parse(w http.ResponseWriter, r *http.Request) (*request.Body, bool) {
	body, err := h.parser.Parse(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(w, r, err)
			return nil, false
		}
		response.RenderBadRequest(w, err.Error())
		return nil, false
	}
	return body, true
}

// pathID reads a positive id path parameter, answering 404 when it is not one
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := router.PathID(r, name)
	if err != nil {
		response.RenderNotFound(w, "")
		return 0, false
	}
	return id, true
}

// optString returns the value of key when it was sent
func optString(p *request.Params, key string) *string {
	if !p.Has(key) {
		return nil
	}
	s := p.String(key)
	return &s
}
