package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/portfolio-egg/egg/internal/models"
	"github.com/portfolio-egg/egg/internal/store"
	"github.com/portfolio-egg/egg/internal/web/auth"
	"github.com/portfolio-egg/egg/internal/web/response"
	"github.com/portfolio-egg/egg/internal/web/websocket"
)

// ListFeedbacks handles GET /api/v1/app_versions/{id}/feedbacks
func (h *Handlers) ListFeedbacks(w http.ResponseWriter, r *http.Request) {
	version, ok := h.version(w, r)
	if !ok {
		return
	}
	list, users, err := h.versionFeedbacks(r, version.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, feedbacks(list, users))
}

// SaveFeedback handles POST /api/v1/app_versions/{id}/feedbacks. A second
// submission by the same user updates the first.
func (h *Handlers) SaveFeedback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	version, ok := h.version(w, r)
	if !ok {
		return
	}
	body, ok := h.parse(w, r)
	if !ok {
		return
	}
	params, err := body.Require("feedback")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	in := models.FeedbackInput{
		Comment:         optString(params, "comment"),
		DesignScore:     params.Int("design_score"),
		UsabilityScore:  params.Int("usability_score"),
		CreativityScore: params.Int("creativity_score"),
		UsefulnessScore: params.Int("usefulness_score"),
		OverallScore:    params.Int("overall_score"),
	}
	userID := auth.CurrentUserID(ctx)
	fb, created, err := h.store.SaveFeedback(ctx, version.ID, userID, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordFeedback(created)
	}

	author, err := h.store.Users.Find(ctx, userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := feedback(fb, author)
	h.broadcast(version.AppID, created, out)

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	response.JSON(w, status, out)
}

// MyFeedback handles GET /api/v1/app_versions/{id}/feedbacks/my_feedback
func (h *Handlers) MyFeedback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	version, ok := h.version(w, r)
	if !ok {
		return
	}
	fb, err := h.store.Feedbacks.FindByVersionAndUser(ctx, version.ID, auth.CurrentUserID(ctx))
	if store.IsNotFound(err) {
		response.OK(w, map[string]interface{}{"feedback": nil})
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	author, err := h.store.Users.Find(ctx, fb.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, feedback(fb, author))
}

func (h *Handlers) version(w http.ResponseWriter, r *http.Request) (*models.AppVersion, bool) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return nil, false
	}
	v, err := h.store.Versions.Find(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return v, true
}

// versionFeedbacks loads the feedback on a version and its authors
func (h *Handlers) versionFeedbacks(r *http.Request, versionID int64) ([]models.Feedback, map[int64]*models.User, error) {
	list, err := h.store.Feedbacks.ListByVersion(r.Context(), versionID)
	if err != nil {
		return nil, nil, err
	}
	ids := make([]int64, len(list))
	for i := range list {
		ids[i] = list[i].UserID
	}
	users, err := h.store.Users.FindMany(r.Context(), uniqueIDs(ids))
	if err != nil {
		return nil, nil, err
	}
	return list, users, nil
}

// broadcast pushes a saved feedback to the app's live stream. Delivery is
// best effort.
func (h *Handlers) broadcast(appID int64, created bool, payload feedbackJSON) {
	if h.hub == nil {
		return
	}
	kind := websocket.EventFeedbackUpdated
	if created {
		kind = websocket.EventFeedbackCreated
	}
	msg, err := websocket.NewMessage(kind, payload)
	if err == nil {
		err = h.hub.BroadcastToRoom(websocket.AppRoom(appID), msg)
	}
	if err != nil {
		h.logger.Warn("feedback broadcast failed", zap.Int64("app_id", appID), zap.Error(err))
	}
}
