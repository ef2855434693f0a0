package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("FRONTIER_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(cfg.DataDir))
	assert.Equal(t, 8001, cfg.Port)
	assert.Equal(t, "yahoo", cfg.Prices.Provider)
	assert.Equal(t, time.Hour, cfg.Prices.CacheTTL)
	assert.Equal(t, 20000, cfg.Sampler.MaxSamples)
	assert.Equal(t, 2000, cfg.Sampler.DefaultSamples)
	assert.Equal(t, 0.10, cfg.Sampler.DefaultRiskFreeRate)
	assert.Equal(t, "0 */15 * * * *", cfg.Schedule.CacheCleanup)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FRONTIER_DATA_DIR", t.TempDir())
	t.Setenv("GO_PORT", "9100")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("PRICE_PROVIDER", "ALPACA")
	t.Setenv("ALPACA_API_KEY", "key")
	t.Setenv("ALPACA_API_SECRET", "secret")
	t.Setenv("PRICE_CACHE_TTL", "600")
	t.Setenv("MAX_SAMPLES", "1000")
	t.Setenv("DEFAULT_SAMPLES", "500")
	t.Setenv("DEFAULT_RISK_FREE_RATE", "0.04")
	t.Setenv("SAMPLER_WORKERS", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, "alpaca", cfg.Prices.Provider)
	assert.Equal(t, 10*time.Minute, cfg.Prices.CacheTTL)
	assert.Equal(t, 1000, cfg.Sampler.MaxSamples)
	assert.Equal(t, 500, cfg.Sampler.DefaultSamples)
	assert.Equal(t, 0.04, cfg.Sampler.DefaultRiskFreeRate)
	assert.Equal(t, 3, cfg.Sampler.Workers)
}

func TestLoad_YAMLFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "frontier.yaml")
	content := `
data_dir: ` + filepath.Join(dir, "data") + `
port: 9200
prices:
  provider: yahoo
  cache_ttl: 30m
sampler:
  max_samples: 5000
  default_samples: 100
  recent_runs: 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	t.Setenv("FRONTIER_CONFIG", path)
	t.Setenv("GO_PORT", "9300")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "data"), cfg.DataDir)
	assert.Equal(t, 9300, cfg.Port, "env wins over file")
	assert.Equal(t, 30*time.Minute, cfg.Prices.CacheTTL)
	assert.Equal(t, 5000, cfg.Sampler.MaxSamples)
	assert.Equal(t, 3, cfg.Sampler.RecentRuns)
	assert.Equal(t, 1024, cfg.Sampler.BatchSize, "unset keys keep defaults")
}

func TestLoad_BadFile(t *testing.T) {
	t.Setenv("FRONTIER_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad port", func(c *Config) { c.Port = 0 }},
		{"unknown provider", func(c *Config) { c.Prices.Provider = "bloomberg" }},
		{"alpaca without credentials", func(c *Config) { c.Prices.Provider = "alpaca" }},
		{"zero max samples", func(c *Config) { c.Sampler.MaxSamples = 0 }},
		{"default above max", func(c *Config) { c.Sampler.DefaultSamples = c.Sampler.MaxSamples + 1 }},
		{"negative workers", func(c *Config) { c.Sampler.Workers = -1 }},
		{"no recent runs", func(c *Config) { c.Sampler.RecentRuns = 0 }},
		{"zero ttl", func(c *Config) { c.Prices.CacheTTL = 0 }},
	}

	require.NoError(t, Defaults().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
