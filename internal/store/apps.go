package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/portfolio-egg/egg/internal/models"
)

// Sort orders for app listings
const (
	SortNewest   = "newest"
	SortPopular  = "popular"
	SortFeedback = "feedback"
)

// CategoryAll disables the category filter
const CategoryAll = "all"

const appColumns = `apps.id, apps.user_id, apps.title, apps.description, apps.category,
	apps.github_url, apps.deploy_url, apps.thumbnail_blob_id, apps.created_at, apps.updated_at`

// AppFilter narrows and orders an app listing
type AppFilter struct {
	// Category matches exactly; empty or "all" matches everything
	Category string
	// Query is a case-insensitive substring of the title or description
	Query string
	// Sort is one of the Sort constants; anything else sorts newest first
	Sort string
	// OwnerID restricts the listing to one user's apps when non-zero
	OwnerID int64
}

// AppRepository reads and writes apps
type AppRepository struct {
	db      sqlx.ExtContext
	now     func() time.Time
	dialect string
}

// List returns apps with their feedback aggregates and latest version
func (r *AppRepository) List(ctx context.Context, filter AppFilter) ([]models.AppWithStats, error) {
	var (
		where []string
		args  []interface{}
	)

	if c := strings.TrimSpace(filter.Category); c != "" && c != CategoryAll {
		where = append(where, "apps.category = ?")
		args = append(args, c)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		op := r.likeOperator()
		where = append(where, fmt.Sprintf(`(apps.title %[1]s ? ESCAPE '\' OR apps.description %[1]s ? ESCAPE '\')`, op))
		pattern := "%" + escapeLike(q) + "%"
		args = append(args, pattern, pattern)
	}
	if filter.OwnerID != 0 {
		where = append(where, "apps.user_id = ?")
		args = append(args, filter.OwnerID)
	}

	var b strings.Builder
	b.WriteString("SELECT " + appColumns + `,
		COUNT(feedbacks.id) AS feedback_count,
		CAST(AVG(feedbacks.overall_score) AS DOUBLE PRECISION) AS average_score,
		(SELECT latest.version_number FROM app_versions latest
			WHERE latest.app_id = apps.id
			ORDER BY latest.created_at DESC, latest.id DESC LIMIT 1) AS latest_version
		FROM apps
		LEFT JOIN app_versions ON app_versions.app_id = apps.id
		LEFT JOIN feedbacks ON feedbacks.app_version_id = app_versions.id`)
	if len(where) > 0 {
		b.WriteString("\n\t\tWHERE " + strings.Join(where, " AND "))
	}
	b.WriteString("\n\t\tGROUP BY apps.id")
	b.WriteString("\n\t\tORDER BY " + orderClause(filter.Sort))

	var apps []models.AppWithStats
	if err := sqlx.SelectContext(ctx, r.db, &apps, r.db.Rebind(b.String()), args...); err != nil {
		return nil, fmt.Errorf("failed to list apps: %w", ConvertError(err))
	}
	return apps, nil
}

func orderClause(sort string) string {
	switch sort {
	case SortPopular:
		return "average_score DESC NULLS LAST, apps.created_at DESC, apps.id DESC"
	case SortFeedback:
		return "feedback_count DESC, apps.created_at DESC, apps.id DESC"
	default:
		return "apps.created_at DESC, apps.id DESC"
	}
}

func (r *AppRepository) likeOperator() string {
	if r.dialect == DialectPostgres {
		return "ILIKE"
	}
	// SQLite LIKE is case-insensitive for ASCII
	return "LIKE"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// Find returns the app with id
func (r *AppRepository) Find(ctx context.Context, id int64) (*models.App, error) {
	var a models.App
	query := r.db.Rebind("SELECT " + appColumns + " FROM apps WHERE apps.id = ?")
	if err := sqlx.GetContext(ctx, r.db, &a, query, id); err != nil {
		return nil, fmt.Errorf("failed to find app: %w", ConvertError(err))
	}
	return &a, nil
}

// FindOwned returns the app with id when it belongs to userID and
// ErrNotFound otherwise
func (r *AppRepository) FindOwned(ctx context.Context, id, userID int64) (*models.App, error) {
	var a models.App
	query := r.db.Rebind("SELECT " + appColumns + " FROM apps WHERE apps.id = ? AND apps.user_id = ?")
	if err := sqlx.GetContext(ctx, r.db, &a, query, id, userID); err != nil {
		return nil, fmt.Errorf("failed to find app: %w", ConvertError(err))
	}
	return &a, nil
}

// Create inserts a and sets its id and timestamps
func (r *AppRepository) Create(ctx context.Context, a *models.App) error {
	now := r.now()
	a.CreatedAt = now
	a.UpdatedAt = now

	query := r.db.Rebind(`
		INSERT INTO apps (user_id, title, description, category, github_url, deploy_url,
			thumbnail_blob_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)
	err := sqlx.GetContext(ctx, r.db, &a.ID, query,
		a.UserID, a.Title, a.Description, a.Category, a.GithubURL, a.DeployURL,
		a.ThumbnailBlobID, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", ConvertError(err))
	}
	return nil
}

// Update saves the attributes of a
func (r *AppRepository) Update(ctx context.Context, a *models.App) error {
	a.UpdatedAt = r.now()

	query := r.db.Rebind(`
		UPDATE apps
		SET title = ?, description = ?, category = ?, github_url = ?, deploy_url = ?,
			thumbnail_blob_id = ?, updated_at = ?
		WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query,
		a.Title, a.Description, a.Category, a.GithubURL, a.DeployURL,
		a.ThumbnailBlobID, a.UpdatedAt, a.ID)
	if err != nil {
		return fmt.Errorf("failed to update app: %w", ConvertError(err))
	}
	return requireRow(res)
}

// Delete removes the app with id together with its versions and feedback
func (r *AppRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM apps WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("failed to delete app: %w", ConvertError(err))
	}
	return requireRow(res)
}
