package response

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/portfolio-egg/egg/internal/orm/validation"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ValidationErrorResponse represents validation errors. Errors holds full
// messages in the order they were found.
type ValidationErrorResponse struct {
	Error   string              `json:"error"`
	Message string              `json:"message"`
	Code    string              `json:"code"`
	Errors  []string            `json:"errors"`
	Fields  map[string][]string `json:"fields"`
}

// RenderError renders a standard error response
func RenderError(w http.ResponseWriter, statusCode int, err error) {
	var validationErr *validation.Errors
	if errors.As(err, &validationErr) {
		RenderValidationError(w, validationErr)
		return
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		httpErr.Render(w)
		return
	}

	renderError(w, statusCode, err.Error(), errorCodeFromStatus(statusCode))
}

func renderError(w http.ResponseWriter, statusCode int, message, code string) {
	JSON(w, statusCode, &ErrorResponse{
		Error:   "error",
		Message: message,
		Code:    code,
	})
}

// RenderValidationError renders validation errors
func RenderValidationError(w http.ResponseWriter, validationErr *validation.Errors) {
	fields := validationErr.Fields
	if fields == nil {
		fields = map[string][]string{}
	}
	JSON(w, http.StatusUnprocessableEntity, &ValidationErrorResponse{
		Error:   "validation_failed",
		Message: "The request contains invalid data",
		Code:    "validation_error",
		Errors:  validationErr.FullMessages(),
		Fields:  fields,
	})
}

// RenderBadRequest renders a 400 Bad Request error
func RenderBadRequest(w http.ResponseWriter, message string) {
	renderError(w, http.StatusBadRequest, message, errorCodeFromStatus(http.StatusBadRequest))
}

// RenderUnauthorized renders a 401 Unauthorized error
func RenderUnauthorized(w http.ResponseWriter, message string) {
	if message == "" {
		message = "You need to sign in or sign up before continuing."
	}
	renderError(w, http.StatusUnauthorized, message, errorCodeFromStatus(http.StatusUnauthorized))
}

// RenderNotFound renders a 404 Not Found error
func RenderNotFound(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Resource not found"
	}
	renderError(w, http.StatusNotFound, message, errorCodeFromStatus(http.StatusNotFound))
}

// RenderTooManyRequests renders a 429 Too Many Requests error
func RenderTooManyRequests(w http.ResponseWriter, retryAfter int) {
	w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
	renderError(w, http.StatusTooManyRequests, "rate limit exceeded", errorCodeFromStatus(http.StatusTooManyRequests))
}

// RenderInternalError renders a 500 Internal Server Error.
// Internal details are never sent to the client.
func RenderInternalError(w http.ResponseWriter) {
	renderError(w, http.StatusInternalServerError, "Internal server error", errorCodeFromStatus(http.StatusInternalServerError))
}

// errorCodeFromStatus maps HTTP status codes to error codes
func errorCodeFromStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusConflict:
		return "conflict"
	case http.StatusRequestEntityTooLarge:
		return "request_too_large"
	case http.StatusUnsupportedMediaType:
		return "unsupported_media_type"
	case http.StatusUnprocessableEntity:
		return "unprocessable_entity"
	case http.StatusTooManyRequests:
		return "too_many_requests"
	case http.StatusInternalServerError:
		return "internal_error"
	case http.StatusServiceUnavailable:
		return "service_unavailable"
	default:
		return "error"
	}
}

// HTTPError represents an HTTP error with status code
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error
func NewHTTPError(statusCode int, message string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       errorCodeFromStatus(statusCode),
	}
}

// Render renders the HTTP error as a response
func (e *HTTPError) Render(w http.ResponseWriter) {
	renderError(w, e.StatusCode, e.Message, e.Code)
}

// Common HTTP errors
var (
	ErrNotFound           = NewHTTPError(http.StatusNotFound, "Not found")
	ErrUnsupportedMedia   = NewHTTPError(http.StatusUnsupportedMediaType, "Unsupported media type")
	ErrRequestTooLarge    = NewHTTPError(http.StatusRequestEntityTooLarge, "Request entity too large")
	ErrServiceUnavailable = NewHTTPError(http.StatusServiceUnavailable, "Service unavailable")
)
