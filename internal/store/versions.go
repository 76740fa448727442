package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/portfolio-egg/egg/internal/models"
)

const versionColumns = `app_versions.id, app_versions.app_id, app_versions.version_number,
	app_versions.release_date, app_versions.changelog, app_versions.created_at, app_versions.updated_at`

// VersionRepository reads and writes app versions
type VersionRepository struct {
	db  sqlx.ExtContext
	now func() time.Time
}

// ListByApp returns the versions of an app, most recent release first
func (r *VersionRepository) ListByApp(ctx context.Context, appID int64) ([]models.AppVersion, error) {
	var versions []models.AppVersion
	query := r.db.Rebind("SELECT " + versionColumns + ` FROM app_versions
		WHERE app_versions.app_id = ?
		ORDER BY app_versions.release_date DESC, app_versions.id DESC`)
	if err := sqlx.SelectContext(ctx, r.db, &versions, query, appID); err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", ConvertError(err))
	}
	return versions, nil
}

// Find returns the version with id
func (r *VersionRepository) Find(ctx context.Context, id int64) (*models.AppVersion, error) {
	var v models.AppVersion
	query := r.db.Rebind("SELECT " + versionColumns + " FROM app_versions WHERE app_versions.id = ?")
	if err := sqlx.GetContext(ctx, r.db, &v, query, id); err != nil {
		return nil, fmt.Errorf("failed to find version: %w", ConvertError(err))
	}
	return &v, nil
}

// Latest returns the most recently created version of an app
func (r *VersionRepository) Latest(ctx context.Context, appID int64) (*models.AppVersion, error) {
	var v models.AppVersion
	query := r.db.Rebind("SELECT " + versionColumns + ` FROM app_versions
		WHERE app_versions.app_id = ?
		ORDER BY app_versions.created_at DESC, app_versions.id DESC LIMIT 1`)
	if err := sqlx.GetContext(ctx, r.db, &v, query, appID); err != nil {
		return nil, fmt.Errorf("failed to find latest version: %w", ConvertError(err))
	}
	return &v, nil
}

// Create inserts v and sets its id and timestamps. A duplicate version
// number for the same app fails with ErrUniqueViolation.
func (r *VersionRepository) Create(ctx context.Context, v *models.AppVersion) error {
	now := r.now()
	v.CreatedAt = now
	v.UpdatedAt = now

	query := r.db.Rebind(`
		INSERT INTO app_versions (app_id, version_number, release_date, changelog, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`)
	err := sqlx.GetContext(ctx, r.db, &v.ID, query,
		v.AppID, v.VersionNumber, v.ReleaseDate, v.Changelog, v.CreatedAt, v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create version: %w", ConvertError(err))
	}
	return nil
}
