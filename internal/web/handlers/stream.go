package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/portfolio-egg/egg/internal/web/auth"
	"github.com/portfolio-egg/egg/internal/web/websocket"
)

// FeedbackStream handles GET /api/v1/apps/{id}/feedback_stream. The
// connection receives every feedback saved on the app's versions.
func (h *Handlers) FeedbackStream(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	app, err := h.store.Apps.Find(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	// Serve has already answered the client when it fails
	if err := h.upgrader.Serve(w, r, auth.CurrentUserID(r.Context()), websocket.AppRoom(app.ID)); err != nil {
		h.logger.Debug("feedback stream rejected", zap.Int64("app_id", app.ID), zap.Error(err))
	}
}
