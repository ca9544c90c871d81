package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Prefix is prepended to every environment variable name.
const Prefix = "NOTION_SYNC"

// Config holds the configuration for the sync service.
// Environment variables are parsed from the NOTION_SYNC_ prefix.
type Config struct {
	// Build target selects high-level environment: local, cloud-dev, cloud
	BuildTarget string `envconfig:"BUILD_TARGET" default:"local"`

	// Derived or override driver
	DBDriver string `envconfig:"DB_DRIVER" default:"auto"`

	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	HTTPPort int `envconfig:"HTTP_PORT" default:"8090"`

	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:""`

	// Notion
	NotionBaseURL        string            `envconfig:"NOTION_BASE_URL" default:"https://api.notion.com/v1"`
	NotionVersion        string            `envconfig:"NOTION_VERSION" default:"2022-06-28"`
	NotionAPIKey         string            `envconfig:"NOTION_API_KEY" default:""`
	NotionDatabases      map[string]string `envconfig:"NOTION_DATABASES" default:""`
	NotionMaxRetries     int               `envconfig:"NOTION_MAX_RETRIES" default:"3"`
	NotionMinIntervalMS  int               `envconfig:"NOTION_MIN_INTERVAL_MS" default:"333"`
	NotionTimeoutSeconds int               `envconfig:"NOTION_TIMEOUT_SECONDS" default:"30"`

	// Resolution
	ResolveShards int `envconfig:"RESOLVE_SHARDS" default:"4"`

	// Health checks
	HealthIntervalSeconds     int `envconfig:"HEALTH_INTERVAL_SECONDS" default:"30"`
	HealthProbeTimeoutSeconds int `envconfig:"HEALTH_PROBE_TIMEOUT_SECONDS" default:"2"`

	// Bootstrap
	BootstrapTimeoutSeconds int `envconfig:"BOOTSTRAP_TIMEOUT_SECONDS" default:"5"`
}

// ResolveDefaults validates BuildTarget and derives DBDriver and SQLitePath
// when left on auto.
func (c *Config) ResolveDefaults() error {
	var defaultDB string

	switch c.BuildTarget {
	case "local":
		defaultDB = "sqlite"
	case "cloud-dev", "cloud":
		defaultDB = "postgres"
	default:
		return fmt.Errorf("unsupported BUILD_TARGET: %s", c.BuildTarget)
	}

	if c.DBDriver == "" || c.DBDriver == "auto" {
		c.DBDriver = defaultDB
	}

	switch c.DBDriver {
	case "postgres":
	case "sqlite":
		if c.SQLitePath == "" {
			c.SQLitePath = "data/notionsync.db"
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}

	if c.NotionMaxRetries < 0 {
		return fmt.Errorf("NOTION_MAX_RETRIES must be >= 0, got %d", c.NotionMaxRetries)
	}
	if c.ResolveShards < 0 {
		return fmt.Errorf("RESOLVE_SHARDS must be >= 0, got %d", c.ResolveShards)
	}
	return nil
}

// NotionMinInterval is the minimum delay between retrieval requests.
func (c *Config) NotionMinInterval() time.Duration {
	return time.Duration(c.NotionMinIntervalMS) * time.Millisecond
}

// NotionTimeout bounds a single Notion HTTP call.
func (c *Config) NotionTimeout() time.Duration {
	return time.Duration(c.NotionTimeoutSeconds) * time.Second
}

// New creates a new Config by parsing environment variables
// Example: NOTION_SYNC_HTTP_PORT, NOTION_SYNC_NOTION_DATABASES=tasks:abc,journal:def
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("build_target", cfg.BuildTarget).
		Str("db_driver", cfg.DBDriver).
		Str("environment", string(cfg.Environment)).
		Int("port", cfg.HTTPPort).
		Str("notion_base_url", cfg.NotionBaseURL).
		Bool("notion_api_key_present", cfg.NotionAPIKey != "").
		Int("notion_databases", len(cfg.NotionDatabases)).
		Bool("postgres_dsn_present", cfg.PostgresDSN != "").
		Str("sqlite_path", cfg.SQLitePath).
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config specifically for testing
func NewForTesting() *Config {
	return &Config{
		BuildTarget:               "local",
		DBDriver:                  "sqlite",
		Environment:               EnvTesting,
		HTTPPort:                  8090,
		NotionBaseURL:             "https://api.notion.com/v1",
		NotionVersion:             "2022-06-28",
		NotionMaxRetries:          3,
		NotionMinIntervalMS:       333,
		NotionTimeoutSeconds:      30,
		ResolveShards:             4,
		HealthIntervalSeconds:     30,
		HealthProbeTimeoutSeconds: 2,
		BootstrapTimeoutSeconds:   5,
	}
}
