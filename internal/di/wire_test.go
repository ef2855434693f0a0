package di

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/frontier/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.DataDir = t.TempDir()
	return cfg
}

func TestWire(t *testing.T) {
	cfg := testConfig(t)

	container, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { container.Close() })

	assert.NotNil(t, container.CacheDB)
	assert.NotNil(t, container.PriceCacheRepo)
	assert.Equal(t, "yahoo", container.HistorySource.Name())
	assert.NotNil(t, container.CachedProvider)
	assert.Equal(t, cfg.Sampler.MaxSamples, container.FrontierService.MaxSamples())
	assert.NotNil(t, container.ChartService)
	assert.NotNil(t, container.Scheduler)
	assert.NotNil(t, container.CacheCleanupJob)

	// The cache schema is in place.
	stats, err := container.PriceCacheRepo.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.Entries)
	require.NoError(t, container.CacheCleanupJob.Run())
}

func TestWire_Alpaca(t *testing.T) {
	cfg := testConfig(t)
	cfg.Prices.Provider = "alpaca"
	cfg.Alpaca.APIKey = "key"
	cfg.Alpaca.APISecret = "secret"

	container, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { container.Close() })

	assert.Equal(t, "alpaca", container.HistorySource.Name())
}

func TestWire_Errors(t *testing.T) {
	t.Run("unknown provider", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Prices.Provider = "bloomberg"
		_, err := Wire(cfg, zerolog.Nop())
		assert.Error(t, err)
	})

	t.Run("bad schedule", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Schedule.CacheCleanup = "every now and then"
		_, err := Wire(cfg, zerolog.Nop())
		assert.Error(t, err)
	})
}

func TestInitializeServices_RequiresDatabases(t *testing.T) {
	err := InitializeServices(&Container{}, testConfig(t), zerolog.Nop())
	assert.Error(t, err)
}
