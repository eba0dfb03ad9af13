// Package config loads runtime settings: defaults, then an optional TOML
// file, then LISTINGSEARCH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/listingsearch/internal/ranking"
)

// Environment variables
const (
	EnvConfigPath     = "LISTINGSEARCH_CONFIG"
	EnvLogLevel       = "LISTINGSEARCH_LOG_LEVEL"
	EnvStorageDriver  = "LISTINGSEARCH_STORAGE"
	EnvDBPath         = "LISTINGSEARCH_DB_PATH"
	EnvPostgresDSN    = "LISTINGSEARCH_PG_DSN"
	EnvCacheTTL       = "LISTINGSEARCH_CACHE_TTL"
	EnvFetchTimeout   = "LISTINGSEARCH_FETCH_TIMEOUT"
	EnvFailureBackoff = "LISTINGSEARCH_FAILURE_BACKOFF"
	EnvFetchWorkers   = "LISTINGSEARCH_FETCH_WORKERS"
	EnvFetchRateLimit = "LISTINGSEARCH_FETCH_RATE_LIMIT"
	EnvFetchRetries   = "LISTINGSEARCH_FETCH_RETRIES"
	EnvMemoSize       = "LISTINGSEARCH_MEMO_SIZE"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	// DefaultDBPath is the default location for the SQLite database
	DefaultDBPath = "~/.listingsearch/listings.db"
)

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// Duration is a time.Duration written as a Go duration string ("5m", "10s")
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type StorageConfig struct {
	Driver      string `toml:"driver"`
	DBPath      string `toml:"db_path"`
	PostgresDSN string `toml:"postgres_dsn"`
}

type CacheConfig struct {
	TTL            Duration `toml:"ttl"`
	FetchTimeout   Duration `toml:"fetch_timeout"`
	FailureBackoff Duration `toml:"failure_backoff"` // 0 = retry the store on every stale call
	Workers        int      `toml:"workers"`
	RateLimit      float64  `toml:"rate_limit"` // store calls per second, 0 = unlimited
	Burst          int      `toml:"burst"`
	RetryAttempts  int      `toml:"retry_attempts"`
	RetryBaseDelay Duration `toml:"retry_base_delay"`
}

type SearchConfig struct {
	MemoSize int `toml:"memo_size"`
}

// Config contains runtime settings for the service
type Config struct {
	LogLevel string          `toml:"log_level"`
	Storage  StorageConfig   `toml:"storage"`
	Cache    CacheConfig     `toml:"cache"`
	Search   SearchConfig    `toml:"search"`
	Scoring  ranking.Weights `toml:"scoring"`

	// Path is the file the config was read from, empty when none
	Path string `toml:"-"`
}

// Default returns the built-in settings
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Storage: StorageConfig{
			Driver: DriverSQLite,
			DBPath: DefaultDBPath,
		},
		Cache: CacheConfig{
			TTL:            Duration{5 * time.Minute},
			FetchTimeout:   Duration{10 * time.Second},
			FailureBackoff: Duration{5 * time.Second},
			Workers:        8,
			RetryAttempts:  3,
			RetryBaseDelay: Duration{100 * time.Millisecond},
		},
		Search: SearchConfig{
			MemoSize: 1000,
		},
		Scoring: ranking.DefaultWeights(),
	}
}

// Load builds the configuration. An empty path falls back to
// LISTINGSEARCH_CONFIG; with neither set only defaults and environment
// variables apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	c.Path = path
	return nil
}

// applyEnv overrides file values with any LISTINGSEARCH_* variables set
func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvStorageDriver); v != "" {
		c.Storage.Driver = strings.ToLower(v)
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		c.Storage.DBPath = v
	}
	if v := os.Getenv(EnvPostgresDSN); v != "" {
		c.Storage.PostgresDSN = v
		if os.Getenv(EnvStorageDriver) == "" {
			c.Storage.Driver = DriverPostgres
		}
	}

	durations := []struct {
		env string
		dst *Duration
	}{
		{EnvCacheTTL, &c.Cache.TTL},
		{EnvFetchTimeout, &c.Cache.FetchTimeout},
		{EnvFailureBackoff, &c.Cache.FailureBackoff},
	}
	for _, d := range durations {
		if v := os.Getenv(d.env); v != "" {
			if err := d.dst.UnmarshalText([]byte(v)); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, d.env, err)
			}
		}
	}

	ints := []struct {
		env string
		dst *int
	}{
		{EnvFetchWorkers, &c.Cache.Workers},
		{EnvFetchRetries, &c.Cache.RetryAttempts},
		{EnvMemoSize, &c.Search.MemoSize},
	}
	for _, i := range ints {
		if v := os.Getenv(i.env); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, i.env, err)
			}
			*i.dst = n
		}
	}

	if v := os.Getenv(EnvFetchRateLimit); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvFetchRateLimit, err)
		}
		c.Cache.RateLimit = f
	}

	return nil
}

// Validate checks the settings for values the service cannot run with
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.DBPath == "" {
			return fmt.Errorf("%w: storage.db_path is required for sqlite", ErrInvalidConfig)
		}
	case DriverPostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("%w: storage.postgres_dsn is required for postgres", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage driver %q", ErrInvalidConfig, c.Storage.Driver)
	}

	if c.Cache.TTL.Duration <= 0 {
		return fmt.Errorf("%w: cache.ttl must be positive", ErrInvalidConfig)
	}
	if c.Cache.FetchTimeout.Duration <= 0 {
		return fmt.Errorf("%w: cache.fetch_timeout must be positive", ErrInvalidConfig)
	}
	if c.Cache.FailureBackoff.Duration < 0 {
		return fmt.Errorf("%w: cache.failure_backoff must be >= 0", ErrInvalidConfig)
	}
	if c.Cache.RateLimit < 0 {
		return fmt.Errorf("%w: cache.rate_limit must be >= 0", ErrInvalidConfig)
	}
	if err := c.Scoring.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// ExpandPath resolves a leading ~ to the user's home directory
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
