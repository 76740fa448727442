package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/portfolio-egg/egg/internal/models"
)

const blobColumns = `blobs.id, blobs.key, blobs.filename, blobs.content_type, blobs.byte_size,
	blobs.checksum, blobs.created_at`

// BlobRepository reads and writes blob metadata
type BlobRepository struct {
	db  sqlx.ExtContext
	now func() time.Time
}

// Create inserts b and sets its id and creation time
func (r *BlobRepository) Create(ctx context.Context, b *models.Blob) error {
	b.CreatedAt = r.now()

	query := r.db.Rebind(`
		INSERT INTO blobs (key, filename, content_type, byte_size, checksum, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`)
	err := sqlx.GetContext(ctx, r.db, &b.ID, query,
		b.Key, b.Filename, b.ContentType, b.ByteSize, b.Checksum, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create blob: %w", ConvertError(err))
	}
	return nil
}

// Find returns the blob with id
func (r *BlobRepository) Find(ctx context.Context, id int64) (*models.Blob, error) {
	var b models.Blob
	query := r.db.Rebind("SELECT " + blobColumns + " FROM blobs WHERE blobs.id = ?")
	if err := sqlx.GetContext(ctx, r.db, &b, query, id); err != nil {
		return nil, fmt.Errorf("failed to find blob: %w", ConvertError(err))
	}
	return &b, nil
}

// FindByKey returns the blob stored under key
func (r *BlobRepository) FindByKey(ctx context.Context, key string) (*models.Blob, error) {
	var b models.Blob
	query := r.db.Rebind("SELECT " + blobColumns + " FROM blobs WHERE blobs.key = ?")
	if err := sqlx.GetContext(ctx, r.db, &b, query, key); err != nil {
		return nil, fmt.Errorf("failed to find blob: %w", ConvertError(err))
	}
	return &b, nil
}

// FindMany returns the blobs with the given ids keyed by id
func (r *BlobRepository) FindMany(ctx context.Context, ids []int64) (map[int64]*models.Blob, error) {
	result := make(map[int64]*models.Blob, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query, args, err := in(r.db, "SELECT "+blobColumns+" FROM blobs WHERE blobs.id IN (?)", ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build blob query: %w", err)
	}

	var blobs []models.Blob
	if err := sqlx.SelectContext(ctx, r.db, &blobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to load blobs: %w", ConvertError(err))
	}
	for i := range blobs {
		result[blobs[i].ID] = &blobs[i]
	}
	return result, nil
}

// Delete removes the blob row with id
func (r *BlobRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM blobs WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("failed to delete blob: %w", ConvertError(err))
	}
	return requireRow(res)
}

// ListOrphans returns up to limit blobs created before cutoff that no user
// or app references
func (r *BlobRepository) ListOrphans(ctx context.Context, cutoff time.Time, limit int) ([]models.Blob, error) {
	query := r.db.Rebind("SELECT " + blobColumns + ` FROM blobs
		WHERE blobs.created_at < ?
			AND NOT EXISTS (SELECT 1 FROM users WHERE users.profile_image_blob_id = blobs.id)
			AND NOT EXISTS (SELECT 1 FROM apps WHERE apps.thumbnail_blob_id = blobs.id)
		ORDER BY blobs.id
		LIMIT ?`)

	var blobs []models.Blob
	if err := sqlx.SelectContext(ctx, r.db, &blobs, query, cutoff, limit); err != nil {
		return nil, fmt.Errorf("failed to list orphan blobs: %w", ConvertError(err))
	}
	return blobs, nil
}
