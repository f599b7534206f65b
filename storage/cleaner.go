package storage

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/hexfeed/models"
	"github.com/cppla/hexfeed/utils"
)

// ExistsFunc reports whether the post owning a blob was persisted.
type ExistsFunc func(ctx context.Context, postID string) (bool, error)

// OrphanCleaner deletes uploaded blobs whose post never got persisted, for
// example because the post write failed after the upload succeeded.
type OrphanCleaner struct {
	db     *gorm.DB
	exists ExistsFunc
	grace  time.Duration
	clock  utils.Clock
	logger *zap.Logger
}

func NewOrphanCleaner(db *gorm.DB, exists ExistsFunc, grace time.Duration, clock utils.Clock, logger *zap.Logger) *OrphanCleaner {
	if grace <= 0 {
		grace = time.Hour
	}
	if clock == nil {
		clock = utils.NewRealClock()
	}
	return &OrphanCleaner{db: db, exists: exists, grace: grace, clock: clock, logger: utils.OrNop(logger)}
}

// Start sweeps every interval until ctx is done.
func (c *OrphanCleaner) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := c.Sweep(ctx); err != nil {
					c.logger.Warn("upload cleaner sweep failed", zap.Error(err))
				} else if n > 0 {
					c.logger.Info("upload cleaner removed orphans", zap.Int("count", n))
				}
			}
		}
	}()
}

// Sweep inspects ledger rows older than the grace period. Rows whose post exists
// are settled and dropped from the ledger; rows whose post is missing have their
// file removed as well. It returns the number of removed files.
func (c *OrphanCleaner) Sweep(ctx context.Context) (int, error) {
	cutoff := c.clock.Now().Add(-c.grace)
	var items []models.UploadedFile
	if err := c.db.WithContext(ctx).Where("created_at <= ?", cutoff).Order("id").Limit(100).Find(&items).Error; err != nil {
		return 0, err
	}

	removed := 0
	for _, it := range items {
		ok, err := c.exists(ctx, it.OwnerID)
		if err != nil {
			c.logger.Warn("upload cleaner lookup failed", zap.String("owner_id", it.OwnerID), zap.Error(err))
			continue
		}
		if !ok {
			if err := os.Remove(it.FilePath); err != nil && !os.IsNotExist(err) {
				c.logger.Warn("upload cleaner remove file failed", zap.String("path", it.FilePath), zap.Error(err))
				continue
			}
			removed++
		}
		// Remove row regardless of whether the blob was kept or deleted
		if err := c.db.WithContext(ctx).Delete(&models.UploadedFile{}, it.ID).Error; err != nil {
			c.logger.Warn("upload cleaner delete row failed", zap.Uint("id", it.ID), zap.Error(err))
		}
	}
	return removed, nil
}
