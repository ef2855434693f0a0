package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/clients/alpaca"
	"github.com/aristath/frontier/internal/clients/yahoo"
	"github.com/aristath/frontier/internal/config"
	"github.com/aristath/frontier/internal/modules/charts"
	"github.com/aristath/frontier/internal/modules/frontier"
	"github.com/aristath/frontier/internal/modules/prices"
)

// InitializeServices creates the price pipeline and simulation services
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil || container.CacheDB == nil {
		return fmt.Errorf("container databases must be initialized first")
	}

	container.PriceCacheRepo = prices.NewCacheRepository(container.CacheDB.Conn())

	source, err := newHistorySource(cfg, log)
	if err != nil {
		return err
	}
	container.HistorySource = source
	container.PriceProvider = prices.NewProvider(source, log)
	container.CachedProvider = prices.NewCachedProvider(
		container.PriceProvider,
		container.PriceCacheRepo,
		cfg.Prices.CacheTTL,
		log,
	)

	container.Sampler = frontier.NewSampler(frontier.SamplerConfig{
		MaxSamples: cfg.Sampler.MaxSamples,
		BatchSize:  cfg.Sampler.BatchSize,
		Workers:    cfg.Sampler.Workers,
	}, log)
	container.Registry = frontier.NewRegistry(cfg.Sampler.RecentRuns)
	container.FrontierService = frontier.NewService(
		container.CachedProvider,
		container.Sampler,
		container.Registry,
		log,
	)

	container.ChartService = charts.NewService(log)

	log.Info().
		Str("price_source", source.Name()).
		Int("max_samples", cfg.Sampler.MaxSamples).
		Msg("Services initialized")

	return nil
}

func newHistorySource(cfg *config.Config, log zerolog.Logger) (prices.HistorySource, error) {
	switch cfg.Prices.Provider {
	case "", "yahoo":
		return yahoo.NewClient(cfg.Prices.YahooURL, log), nil
	case "alpaca":
		return alpaca.NewClient(alpaca.Config{
			APIKey:    cfg.Alpaca.APIKey,
			APISecret: cfg.Alpaca.APISecret,
			DataURL:   cfg.Alpaca.DataURL,
			Feed:      cfg.Alpaca.Feed,
		}, log), nil
	default:
		return nil, fmt.Errorf("unknown price provider %q", cfg.Prices.Provider)
	}
}
