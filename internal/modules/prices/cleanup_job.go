package prices

import (
	"github.com/rs/zerolog"
)

// CleanupJob removes expired price cache rows.
type CleanupJob struct {
	repo *CacheRepository
	log  zerolog.Logger
}

// NewCleanupJob creates a new price cache cleanup job.
func NewCleanupJob(repo *CacheRepository, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		repo: repo,
		log:  log.With().Str("job", "price_cache_cleanup").Logger(),
	}
}

// Run deletes expired entries.
func (j *CleanupJob) Run() error {
	deleted, err := j.repo.DeleteExpired()
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to delete expired price cache entries")
		return err
	}

	if deleted > 0 {
		j.log.Info().
			Int64("deleted", deleted).
			Msg("Cleaned up expired price cache entries")
	}
	return nil
}

// Name returns the job name for scheduling and logging.
func (j *CleanupJob) Name() string {
	return "price_cache_cleanup"
}
