package router

import (
	"net/http"

	"github.com/portfolio-egg/egg/internal/web/response"
)

// NotFoundHandler renders unknown routes as JSON
func NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.RenderNotFound(w, "No route matches "+r.Method+" "+r.URL.Path)
	}
}

// MethodNotAllowedHandler renders 405 responses as JSON
func MethodNotAllowedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.RenderError(w, http.StatusMethodNotAllowed, response.NewHTTPError(http.StatusMethodNotAllowed, "Method not allowed"))
	}
}

// SetupDefaultErrorHandlers installs the JSON 404 and 405 handlers
func SetupDefaultErrorHandlers(r *Router) {
	r.NotFound(NotFoundHandler())
	r.MethodNotAllowed(MethodNotAllowedHandler())
}
