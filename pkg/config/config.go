package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the complete server configuration
type Config struct {
	Profile   string          `mapstructure:"profile"`
	Data      DataConfig      `mapstructure:"data"`
	Engine    EngineConfig    `mapstructure:"engine"`
	RestAPI   RestAPIConfig   `mapstructure:"rest_api"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DataConfig holds on-disk data layout configuration
type DataConfig struct {
	// Dir is the process-local configuration directory every database
	// file lives under: <dir>/<db_name>.mdb plus route.cfg,
	// auth_config.json, config.cfg and 2fa_secrets.dat
	Dir string `mapstructure:"dir"`
	// DefaultDatabase is the database opened by `serve` when no name is given
	DefaultDatabase string `mapstructure:"default_database"`
}

// EngineConfig holds query engine tuning knobs
type EngineConfig struct {
	BloomFalsePositiveRate float64 `mapstructure:"bloom_false_positive_rate"`
	ScanChunkSize          int     `mapstructure:"scan_chunk_size"`
	ScanMaxMemoryBytes     int64   `mapstructure:"scan_max_memory_bytes"`
	EarlyTermination       bool    `mapstructure:"early_termination"`
}

// RestAPIConfig holds REST API server configuration
type RestAPIConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	AutoPort     bool     `mapstructure:"auto_port"`
	Port         int      `mapstructure:"port"`
	Host         string   `mapstructure:"host"`
	CORS         bool     `mapstructure:"cors"`
	AllowOrigins []string `mapstructure:"allow_origins"`
	// APIToken guards every route except /health and /time when set.
	// Populated from the MIRSEODB_API_TOKEN environment variable.
	APIToken string `mapstructure:"api_token"`
}

// RateLimitConfig holds rate limiting configuration for the HTTP surface
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	BurstSize         int     `mapstructure:"burst_size"`
	// Query limits the /query route separately from the global bucket,
	// since it is the only route that can mutate engine state
	Query QueryLimitConfig `mapstructure:"query"`
}

// QueryLimitConfig defines the per-route limit for /query
type QueryLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	BurstSize         int     `mapstructure:"burst_size"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console, json
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Profile: "default",
		Data: DataConfig{
			Dir:             DefaultDataDir(),
			DefaultDatabase: "mirseo",
		},
		Engine: EngineConfig{
			BloomFalsePositiveRate: 0.01,
			ScanChunkSize:          1024,
			ScanMaxMemoryBytes:     64 * 1024 * 1024,
			EarlyTermination:       true,
		},
		RestAPI: RestAPIConfig{
			Enabled:  true,
			AutoPort: false,
			Port:     7227,
			Host:     "0.0.0.0",
			CORS:     true,
			APIToken: os.Getenv("MIRSEODB_API_TOKEN"),
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 100,
			BurstSize:         200,
			Query: QueryLimitConfig{
				RequestsPerSecond: 50,
				BurstSize:         100,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from YAML file with fallback to defaults
// Searches in multiple locations:
// 1. ./config.yaml (current directory)
// 2. ~/.mirseoDB/config.yaml (user home)
// 3. /etc/mirseodb/config.yaml (system-wide)
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	v.AddConfigPath(DefaultDataDir())
	v.AddConfigPath("/etc/mirseodb")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// The bearer token only ever comes from the environment, never from
	// the config file, so it cannot leak through a committed config.yaml.
	config.RestAPI.APIToken = os.Getenv("MIRSEODB_API_TOKEN")

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults sets default values in Viper
func setDefaults(v *viper.Viper) {
	v.SetDefault("profile", "default")
	v.SetDefault("data.dir", DefaultDataDir())
	v.SetDefault("data.default_database", "mirseo")

	v.SetDefault("engine.bloom_false_positive_rate", 0.01)
	v.SetDefault("engine.scan_chunk_size", 1024)
	v.SetDefault("engine.scan_max_memory_bytes", 64*1024*1024)
	v.SetDefault("engine.early_termination", true)

	v.SetDefault("rest_api.enabled", true)
	v.SetDefault("rest_api.auto_port", false)
	v.SetDefault("rest_api.port", 7227)
	v.SetDefault("rest_api.host", "0.0.0.0")
	v.SetDefault("rest_api.cors", true)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 100)
	v.SetDefault("rate_limit.burst_size", 200)
	v.SetDefault("rate_limit.query.requests_per_second", 50)
	v.SetDefault("rate_limit.query.burst_size", 100)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Data.Dir == "" {
		return fmt.Errorf("data.dir is required")
	}
	if c.Data.DefaultDatabase == "" {
		return fmt.Errorf("data.default_database is required")
	}

	if c.Engine.BloomFalsePositiveRate <= 0 || c.Engine.BloomFalsePositiveRate >= 1 {
		return fmt.Errorf("engine.bloom_false_positive_rate must be in (0, 1)")
	}
	if c.Engine.ScanChunkSize < 1 {
		return fmt.Errorf("engine.scan_chunk_size must be >= 1")
	}
	if c.Engine.ScanMaxMemoryBytes < 1 {
		return fmt.Errorf("engine.scan_max_memory_bytes must be >= 1")
	}

	if c.RestAPI.Enabled {
		if c.RestAPI.Port < 1 || c.RestAPI.Port > 65535 {
			return fmt.Errorf("rest_api.port must be between 1 and 65535")
		}
		if c.RestAPI.Host == "" {
			return fmt.Errorf("rest_api.host is required when REST API is enabled")
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{"console": true, "json": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: console, json")
	}

	return nil
}

// EnsureDataDir creates the data directory if it doesn't exist
func (c *Config) EnsureDataDir() error {
	if err := os.MkdirAll(c.Data.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return nil
}

// DefaultDataDir returns the default process-local data directory
func DefaultDataDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".mirseoDB")
}
