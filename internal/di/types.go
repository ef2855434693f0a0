/**
 * Package di provides dependency injection type definitions.
 *
 * This package defines the Container type which holds all application dependencies.
 * The Container is the single source of truth for all service instances and is
 * passed to the HTTP server and the CLI.
 */
package di

import (
	"github.com/aristath/frontier/internal/database"
	"github.com/aristath/frontier/internal/modules/charts"
	"github.com/aristath/frontier/internal/modules/frontier"
	"github.com/aristath/frontier/internal/modules/prices"
	"github.com/aristath/frontier/internal/scheduler"
)

// Container holds all application dependencies
type Container struct {
	// Databases
	CacheDB *database.DB // cache.db - downloaded price sets

	// Repositories
	PriceCacheRepo *prices.CacheRepository

	// Price sources
	HistorySource  prices.HistorySource // yahoo or alpaca, per config
	PriceProvider  *prices.Provider
	CachedProvider *prices.CachedProvider

	// Simulation
	Sampler         *frontier.Sampler
	Registry        *frontier.Registry
	FrontierService *frontier.Service

	// Presentation
	ChartService *charts.Service

	// Background jobs
	Scheduler       *scheduler.Scheduler
	CacheCleanupJob *prices.CleanupJob
}

// Close releases resources held by the container
func (c *Container) Close() error {
	if c.CacheDB != nil {
		return c.CacheDB.Close()
	}
	return nil
}
