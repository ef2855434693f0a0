package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/config"
	"github.com/aristath/frontier/internal/modules/prices"
	"github.com/aristath/frontier/internal/scheduler"
)

// RegisterJobs creates background jobs and registers them with the scheduler.
// The scheduler is not started here.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.Scheduler = scheduler.New(log)
	container.CacheCleanupJob = prices.NewCleanupJob(container.PriceCacheRepo, log)

	if err := container.Scheduler.AddJob(cfg.Schedule.CacheCleanup, container.CacheCleanupJob); err != nil {
		return fmt.Errorf("failed to register %s job: %w", container.CacheCleanupJob.Name(), err)
	}

	return nil
}
