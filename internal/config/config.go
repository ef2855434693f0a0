// Package config loads service configuration from an optional YAML file,
// a .env file and environment variables, in that order of precedence (lowest first).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	DataDir  string `yaml:"data_dir"` // Base directory for the cache database (always absolute after Load)
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
	DevMode  bool   `yaml:"dev_mode"`

	Prices   PricesConfig   `yaml:"prices"`
	Alpaca   AlpacaConfig   `yaml:"alpaca"`
	Sampler  SamplerConfig  `yaml:"sampler"`
	Schedule ScheduleConfig `yaml:"schedule"`
}

// PricesConfig selects and tunes the price source
type PricesConfig struct {
	Provider string        `yaml:"provider"` // "yahoo" or "alpaca"
	CacheTTL time.Duration `yaml:"cache_ttl"`
	YahooURL string        `yaml:"yahoo_url"` // Override for the chart endpoint (tests, proxies)
}

// AlpacaConfig holds Alpaca market data credentials
type AlpacaConfig struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`
	Feed      string `yaml:"feed"`
}

// SamplerConfig bounds simulation requests
type SamplerConfig struct {
	MaxSamples          int     `yaml:"max_samples"`
	DefaultSamples      int     `yaml:"default_samples"`
	DefaultRiskFreeRate float64 `yaml:"default_risk_free_rate"`
	Workers             int     `yaml:"workers"` // 0 = runtime.NumCPU()
	BatchSize           int     `yaml:"batch_size"`
	RecentRuns          int     `yaml:"recent_runs"` // Results kept in memory for the chart/export endpoints
}

// ScheduleConfig holds cron schedules (with seconds field)
type ScheduleConfig struct {
	CacheCleanup string `yaml:"cache_cleanup"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		DataDir:  "./data",
		Port:     8001,
		LogLevel: "info",
		Prices: PricesConfig{
			Provider: "yahoo",
			CacheTTL: time.Hour,
		},
		Alpaca: AlpacaConfig{
			Feed: "iex",
		},
		Sampler: SamplerConfig{
			MaxSamples:          20000,
			DefaultSamples:      2000,
			DefaultRiskFreeRate: 0.10,
			BatchSize:           1024,
			RecentRuns:          20,
		},
		Schedule: ScheduleConfig{
			CacheCleanup: "0 */15 * * * *",
		},
	}
}

// Load reads configuration. A YAML file named by FRONTIER_CONFIG is applied
// over the defaults, then environment variables (including .env) override it.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if it doesn't)
	_ = godotenv.Load()

	cfg := Defaults()

	if path := os.Getenv("FRONTIER_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	absDataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	cfg.DataDir = absDataDir

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.DataDir = getEnv("FRONTIER_DATA_DIR", c.DataDir)
	c.Port = getEnvAsInt("GO_PORT", c.Port)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.DevMode = getEnvAsBool("DEV_MODE", c.DevMode)

	c.Prices.Provider = strings.ToLower(getEnv("PRICE_PROVIDER", c.Prices.Provider))
	c.Prices.CacheTTL = getEnvAsDuration("PRICE_CACHE_TTL", c.Prices.CacheTTL)
	c.Prices.YahooURL = getEnv("YAHOO_BASE_URL", c.Prices.YahooURL)

	c.Alpaca.APIKey = getEnv("ALPACA_API_KEY", c.Alpaca.APIKey)
	c.Alpaca.APISecret = getEnv("ALPACA_API_SECRET", c.Alpaca.APISecret)
	c.Alpaca.DataURL = getEnv("ALPACA_DATA_URL", c.Alpaca.DataURL)
	c.Alpaca.Feed = getEnv("ALPACA_FEED", c.Alpaca.Feed)

	c.Sampler.MaxSamples = getEnvAsInt("MAX_SAMPLES", c.Sampler.MaxSamples)
	c.Sampler.DefaultSamples = getEnvAsInt("DEFAULT_SAMPLES", c.Sampler.DefaultSamples)
	c.Sampler.DefaultRiskFreeRate = getEnvAsFloat("DEFAULT_RISK_FREE_RATE", c.Sampler.DefaultRiskFreeRate)
	c.Sampler.Workers = getEnvAsInt("SAMPLER_WORKERS", c.Sampler.Workers)
	c.Sampler.BatchSize = getEnvAsInt("SAMPLER_BATCH_SIZE", c.Sampler.BatchSize)
	c.Sampler.RecentRuns = getEnvAsInt("RECENT_RUNS", c.Sampler.RecentRuns)

	c.Schedule.CacheCleanup = getEnv("CACHE_CLEANUP_SCHEDULE", c.Schedule.CacheCleanup)
}

// Validate checks configuration bounds
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}

	switch c.Prices.Provider {
	case "yahoo":
	case "alpaca":
		if c.Alpaca.APIKey == "" || c.Alpaca.APISecret == "" {
			return fmt.Errorf("ALPACA_API_KEY and ALPACA_API_SECRET are required for the alpaca price provider")
		}
	default:
		return fmt.Errorf("unknown price provider %q (want yahoo or alpaca)", c.Prices.Provider)
	}

	if c.Sampler.MaxSamples < 1 {
		return fmt.Errorf("max samples must be positive, got %d", c.Sampler.MaxSamples)
	}
	if c.Sampler.DefaultSamples < 1 || c.Sampler.DefaultSamples > c.Sampler.MaxSamples {
		return fmt.Errorf("default samples must be between 1 and %d, got %d", c.Sampler.MaxSamples, c.Sampler.DefaultSamples)
	}
	if c.Sampler.Workers < 0 || c.Sampler.BatchSize < 0 {
		return fmt.Errorf("sampler workers and batch size must not be negative")
	}
	if c.Sampler.RecentRuns < 1 {
		return fmt.Errorf("recent runs must be positive, got %d", c.Sampler.RecentRuns)
	}
	if c.Prices.CacheTTL <= 0 {
		return fmt.Errorf("price cache TTL must be positive, got %s", c.Prices.CacheTTL)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("90m") or plain seconds ("3600").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
