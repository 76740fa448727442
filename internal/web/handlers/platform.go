package handlers

import (
	"net/http"

	"github.com/portfolio-egg/egg/internal/web/response"
)

// Root handles GET /
func (h *Handlers) Root(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{"message": "Portfolio Egg API"})
}

// Ping handles GET /ping
func (h *Handlers) Ping(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}
