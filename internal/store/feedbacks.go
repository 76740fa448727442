package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/portfolio-egg/egg/internal/models"
)

const feedbackColumns = `feedbacks.id, feedbacks.app_version_id, feedbacks.user_id, feedbacks.comment,
	feedbacks.design_score, feedbacks.usability_score, feedbacks.creativity_score,
	feedbacks.usefulness_score, feedbacks.overall_score, feedbacks.created_at, feedbacks.updated_at`

// FeedbackRepository reads and writes feedback
type FeedbackRepository struct {
	db  sqlx.ExtContext
	now func() time.Time
}

// ListByVersion returns the feedback on a version, newest first
func (r *FeedbackRepository) ListByVersion(ctx context.Context, versionID int64) ([]models.Feedback, error) {
	return r.ListByVersions(ctx, []int64{versionID})
}

// ListByVersions returns the feedback on any of the versions, newest first
func (r *FeedbackRepository) ListByVersions(ctx context.Context, versionIDs []int64) ([]models.Feedback, error) {
	if len(versionIDs) == 0 {
		return nil, nil
	}

	query, args, err := in(r.db, "SELECT "+feedbackColumns+` FROM feedbacks
		WHERE feedbacks.app_version_id IN (?)
		ORDER BY feedbacks.created_at DESC, feedbacks.id DESC`, versionIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build feedback query: %w", err)
	}

	var feedbacks []models.Feedback
	if err := sqlx.SelectContext(ctx, r.db, &feedbacks, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", ConvertError(err))
	}
	return feedbacks, nil
}

// FindByVersionAndUser returns userID's feedback on a version
func (r *FeedbackRepository) FindByVersionAndUser(ctx context.Context, versionID, userID int64) (*models.Feedback, error) {
	var f models.Feedback
	query := r.db.Rebind("SELECT " + feedbackColumns + ` FROM feedbacks
		WHERE feedbacks.app_version_id = ? AND feedbacks.user_id = ? LIMIT 1`)
	if err := sqlx.GetContext(ctx, r.db, &f, query, versionID, userID); err != nil {
		return nil, fmt.Errorf("failed to find feedback: %w", ConvertError(err))
	}
	return &f, nil
}

// Create inserts f and sets its id and timestamps
func (r *FeedbackRepository) Create(ctx context.Context, f *models.Feedback) error {
	now := r.now()
	f.CreatedAt = now
	f.UpdatedAt = now

	query := r.db.Rebind(`
		INSERT INTO feedbacks (app_version_id, user_id, comment, design_score, usability_score,
			creativity_score, usefulness_score, overall_score, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)
	err := sqlx.GetContext(ctx, r.db, &f.ID, query,
		f.AppVersionID, f.UserID, f.Comment, f.DesignScore, f.UsabilityScore,
		f.CreativityScore, f.UsefulnessScore, f.OverallScore, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create feedback: %w", ConvertError(err))
	}
	return nil
}

// Update saves the comment and scores of f
func (r *FeedbackRepository) Update(ctx context.Context, f *models.Feedback) error {
	f.UpdatedAt = r.now()

	query := r.db.Rebind(`
		UPDATE feedbacks
		SET comment = ?, design_score = ?, usability_score = ?, creativity_score = ?,
			usefulness_score = ?, overall_score = ?, updated_at = ?
		WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query,
		f.Comment, f.DesignScore, f.UsabilityScore, f.CreativityScore,
		f.UsefulnessScore, f.OverallScore, f.UpdatedAt, f.ID)
	if err != nil {
		return fmt.Errorf("failed to update feedback: %w", ConvertError(err))
	}
	return requireRow(res)
}
