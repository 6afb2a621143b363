package maintenance

import (
	"context"
	"time"

	"github.com/avelar/docindex/internal/logger"
	"github.com/avelar/docindex/internal/repository"
	"github.com/avelar/docindex/internal/storage"
)

// CacheCleanup removes cached pipeline artifacts (converted and OCR
// text) for jobs that reached a terminal state longer than TTL ago. The
// database records stay; only the blob cache is reclaimed.
type CacheCleanup struct {
	jobs        *repository.JobRepository
	store       storage.BlobStore
	cacheBucket string
	ttl         time.Duration
	batch       int
}

// NewCacheCleanup creates the cleanup task.
// Parameters:
//   - jobs: job store used to find expired terminal jobs.
//   - store: blob store holding the cache.
//   - cacheBucket: bucket with per-job cache prefixes.
//   - ttl: minimum age since the job finished.
//   - batch: max jobs cleaned per run; values < 1 fall back to 50.
// Returns:
//   - *CacheCleanup: configured task.
func NewCacheCleanup(jobs *repository.JobRepository, store storage.BlobStore, cacheBucket string, ttl time.Duration, batch int) *CacheCleanup {
	if batch < 1 {
		batch = 50
	}
	return &CacheCleanup{
		jobs:        jobs,
		store:       store,
		cacheBucket: cacheBucket,
		ttl:         ttl,
		batch:       batch,
	}
}

// Run deletes the cache prefix of every expired terminal job found in
// this batch. Per-job failures are logged and skipped so one bad prefix
// never blocks the rest.
func (c *CacheCleanup) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-c.ttl)
	jobs, err := c.jobs.ListTerminalBefore(ctx, cutoff, c.batch)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return nil
	}

	log := logger.FromContext(ctx)
	cleaned := 0
	for _, job := range jobs {
		prefix := storage.JoinURI(c.cacheBucket, job.ID+"/")
		uris, err := c.store.ListPrefix(ctx, prefix)
		if err != nil {
			log.WithError(err).WithField(logger.FieldJobID, job.ID).Warn("Cache cleanup: listing failed")
			continue
		}
		removed := 0
		for _, uri := range uris {
			if err := c.store.Delete(ctx, uri); err != nil {
				log.WithError(err).WithField("uri", uri).Warn("Cache cleanup: delete failed")
				continue
			}
			removed++
		}
		if removed > 0 {
			cleaned++
		}
	}

	log.WithFields(logger.Fields{
		"expired": len(jobs),
		"cleaned": cleaned,
	}).Debug("Cache cleanup finished")
	return nil
}
