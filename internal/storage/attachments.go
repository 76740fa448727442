package storage

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/portfolio-egg/egg/internal/models"
	"github.com/portfolio-egg/egg/internal/web/request"
)

// BlobRepository persists blob metadata
type BlobRepository interface {
	Create(ctx context.Context, b *models.Blob) error
	Find(ctx context.Context, id int64) (*models.Blob, error)
	FindMany(ctx context.Context, ids []int64) (map[int64]*models.Blob, error)
	Delete(ctx context.Context, id int64) error
	ListOrphans(ctx context.Context, cutoff time.Time, limit int) ([]models.Blob, error)
}

// Config locates the URLs attachments are served from
type Config struct {
	// PublicURL is the external base URL of the API, used in signed URLs
	PublicURL string
	// Bucket, when set, means files are served by an object store at
	// BucketBaseURL/Bucket/key instead of by the API
	Bucket        string
	BucketBaseURL string
}

// Attachments stores uploads and resolves their public URLs
type Attachments struct {
	files  Store
	blobs  BlobRepository
	signer *Signer
	config Config
	logger *zap.Logger
}

// NewAttachments creates the attachment service
func NewAttachments(files Store, blobs BlobRepository, signer *Signer, config Config, logger *zap.Logger) *Attachments {
	config.PublicURL = strings.TrimRight(config.PublicURL, "/")
	config.BucketBaseURL = strings.TrimRight(config.BucketBaseURL, "/")
	return &Attachments{
		files:  files,
		blobs:  blobs,
		signer: signer,
		config: config,
		logger: logger,
	}
}

// Attach stores an upload and records its blob
func (a *Attachments) Attach(ctx context.Context, file *request.UploadedFile) (*models.Blob, error) {
	key := NewKey()
	hash := md5.New()

	size, err := a.files.Put(ctx, key, io.TeeReader(file, hash))
	if err != nil {
		return nil, err
	}

	blob := &models.Blob{
		Key:         key,
		Filename:    file.Filename,
		ContentType: file.ContentType,
		ByteSize:    size,
		Checksum:    base64.StdEncoding.EncodeToString(hash.Sum(nil)),
	}
	if err := a.blobs.Create(ctx, blob); err != nil {
		if delErr := a.files.Delete(ctx, key); delErr != nil {
			a.logger.Warn("failed to remove file of unsaved blob", zap.String("key", key), zap.Error(delErr))
		}
		return nil, err
	}
	return blob, nil
}

// URL returns the public, signed URL of a blob
func (a *Attachments) URL(blob *models.Blob) (string, error) {
	signed, err := a.signer.Sign(blob.ID)
	if err != nil {
		return "", err
	}
	return a.config.PublicURL + "/blobs/redirect/" + signed + "/" + url.PathEscape(blob.Filename), nil
}

// URLs returns the public URLs of the given blob ids keyed by id. Nil and
// unknown ids are skipped.
func (a *Attachments) URLs(ctx context.Context, ids ...*int64) (map[int64]string, error) {
	wanted := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id != nil {
			wanted = append(wanted, *id)
		}
	}

	blobs, err := a.blobs.FindMany(ctx, wanted)
	if err != nil {
		return nil, err
	}

	urls := make(map[int64]string, len(blobs))
	for id, blob := range blobs {
		u, err := a.URL(blob)
		if err != nil {
			return nil, err
		}
		urls[id] = u
	}
	return urls, nil
}

// Resolve returns the blob behind a signed id
func (a *Attachments) Resolve(ctx context.Context, signed string) (*models.Blob, error) {
	id, err := a.signer.Verify(signed)
	if err != nil {
		return nil, err
	}
	return a.blobs.Find(ctx, id)
}

// Location is where a blob's contents are actually served
func (a *Attachments) Location(blob *models.Blob) string {
	if a.config.Bucket != "" {
		return a.config.BucketBaseURL + "/" + a.config.Bucket + "/" + blob.Key
	}
	return "/blobs/files/" + blob.Key + "/" + url.PathEscape(blob.Filename)
}

// Open returns the stored contents of key
func (a *Attachments) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return a.files.Open(ctx, key)
}

// PurgeOrphans deletes blobs older than cutoff that nothing references,
// in batches, and returns how many were removed
func (a *Attachments) PurgeOrphans(ctx context.Context, cutoff time.Time, batch int) (int, error) {
	purged := 0
	for {
		orphans, err := a.blobs.ListOrphans(ctx, cutoff, batch)
		if err != nil {
			return purged, err
		}
		if len(orphans) == 0 {
			return purged, nil
		}

		for _, blob := range orphans {
			if err := a.files.Delete(ctx, blob.Key); err != nil && !errors.Is(err, ErrInvalidKey) {
				return purged, fmt.Errorf("failed to delete file %s: %w", blob.Key, err)
			}
			if err := a.blobs.Delete(ctx, blob.ID); err != nil {
				return purged, fmt.Errorf("failed to delete blob %d: %w", blob.ID, err)
			}
			purged++
		}

		if len(orphans) < batch {
			return purged, nil
		}
	}
}
