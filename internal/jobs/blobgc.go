package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// BlobGCJobName is the name of the orphan blob collector
const BlobGCJobName = "blob_gc"

const blobGCBatch = 100

// OrphanPurger deletes unreferenced blobs created before cutoff.
// *storage.Attachments implements it.
type OrphanPurger interface {
	PurgeOrphans(ctx context.Context, cutoff time.Time, batch int) (int, error)
}

// BlobCollector removes uploads nothing points at any more, such as a
// replaced profile image. Blobs younger than Grace are kept so that an
// upload is never collected before its row references it.
type BlobCollector struct {
	Purger    OrphanPurger
	Grace     time.Duration
	Now       func() time.Time
	Logger    *zap.Logger
	OnCollect func(n int)
}

// Run implements the Job interface
func (c *BlobCollector) Run(ctx context.Context) error {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}

	n, err := c.Purger.PurgeOrphans(ctx, now().Add(-c.Grace), blobGCBatch)
	if n > 0 {
		if c.OnCollect != nil {
			c.OnCollect(n)
		}
		if c.Logger != nil {
			c.Logger.Info("orphan blobs collected", zap.Int("count", n))
		}
	}
	return err
}
