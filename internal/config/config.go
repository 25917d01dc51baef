// Package config provides application configuration management using Viper.
// It supports loading from environment variables, a .env file, config files, and defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage drivers.
const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	Gemini    GeminiConfig
	Advisor   AdvisorConfig
	Catalog   CatalogConfig
	Session   SessionConfig
	Log       LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string
	Port            int
	Environment     string
	ShutdownTimeout time.Duration
}

// StorageConfig selects the durable key-value store backend.
type StorageConfig struct {
	Driver string
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host                  string
	Port                  int
	User                  string
	Password              string
	Name                  string
	SSLMode               string
	MaxConnections        int
	MaxIdleConnections    int
	ConnectionMaxLifetime time.Duration
}

// ConnectionString returns a PostgreSQL connection string.
func (d *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// GeminiConfig holds settings for the Gemini text-generation API.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration

	// MaxRetries is the number of retries for rate limited or unavailable responses.
	MaxRetries int
}

// AdvisorConfig holds the process-wide budget for advisor calls.
// Zero disables a limit.
type AdvisorConfig struct {
	RequestsPerMinute int
	RequestsPerHour   int
	RequestsPerDay    int
	MaxConcurrent     int
}

// CatalogConfig holds the service catalog source.
type CatalogConfig struct {
	// Source is an http(s) URL or a file path.
	Source   string
	CacheTTL time.Duration
}

// SessionConfig holds builder session settings.
type SessionConfig struct {
	TTL time.Duration
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// RateLimitConfig holds per-client rate limiting settings.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Burst    int
}

// Load reads configuration from environment variables and config files.
// A .env file in the working directory, if present, is loaded first.
// Environment variables take precedence over config file values.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	// Set config file options
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/zenquote")

	// Enable environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	// Try to read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var configNotFoundErr viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFoundErr) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := fromViper(v)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetInt("server.port"),
			Environment:     v.GetString("server.env"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Storage: StorageConfig{
			Driver: strings.ToLower(v.GetString("storage.driver")),
		},
		Database: DatabaseConfig{
			Host:                  v.GetString("database.host"),
			Port:                  v.GetInt("database.port"),
			User:                  v.GetString("database.user"),
			Password:              v.GetString("database.password"),
			Name:                  v.GetString("database.name"),
			SSLMode:               v.GetString("database.sslmode"),
			MaxConnections:        v.GetInt("database.max_connections"),
			MaxIdleConnections:    v.GetInt("database.max_idle_connections"),
			ConnectionMaxLifetime: v.GetDuration("database.connection_max_lifetime"),
		},
		Gemini: GeminiConfig{
			APIKey:     v.GetString("gemini.api_key"),
			Model:      v.GetString("gemini.model"),
			BaseURL:    v.GetString("gemini.base_url"),
			Timeout:    v.GetDuration("gemini.timeout"),
			MaxRetries: v.GetInt("gemini.max_retries"),
		},
		Advisor: AdvisorConfig{
			RequestsPerMinute: v.GetInt("advisor.requests_per_minute"),
			RequestsPerHour:   v.GetInt("advisor.requests_per_hour"),
			RequestsPerDay:    v.GetInt("advisor.requests_per_day"),
			MaxConcurrent:     v.GetInt("advisor.max_concurrent"),
		},
		Catalog: CatalogConfig{
			Source:   v.GetString("catalog.source"),
			CacheTTL: v.GetDuration("catalog.cache_ttl"),
		},
		Session: SessionConfig{
			TTL: v.GetDuration("session.ttl"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		RateLimit: RateLimitConfig{
			Requests: v.GetInt("rate_limit.requests"),
			Window:   v.GetDuration("rate_limit.window"),
			Burst:    v.GetInt("rate_limit.burst"),
		},
	}
}

// setDefaults configures default values for all settings.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.env", "development")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Storage defaults
	v.SetDefault("storage.driver", StorageDriverPostgres)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "zenquote")
	v.SetDefault("database.name", "zenquote")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.max_idle_connections", 2)
	v.SetDefault("database.connection_max_lifetime", "5m")

	// Gemini defaults
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("gemini.timeout", "30s")
	v.SetDefault("gemini.max_retries", 2)

	// Advisor budget defaults
	v.SetDefault("advisor.requests_per_minute", 20)
	v.SetDefault("advisor.requests_per_hour", 300)
	v.SetDefault("advisor.requests_per_day", 2000)
	v.SetDefault("advisor.max_concurrent", 5)

	// Catalog defaults
	v.SetDefault("catalog.source", "./data/pricing.json")
	v.SetDefault("catalog.cache_ttl", "5m")

	// Session defaults
	v.SetDefault("session.ttl", "2h")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Rate limit defaults
	v.SetDefault("rate_limit.requests", 100)
	v.SetDefault("rate_limit.window", "1m")
	v.SetDefault("rate_limit.burst", 20)
}

// Validate checks that all required configuration values are present.
func (c *Config) Validate() error {
	var missing []string

	switch c.Storage.Driver {
	case StorageDriverPostgres:
		if c.Database.Password == "" {
			missing = append(missing, "DATABASE_PASSWORD")
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("invalid storage driver %q: must be %s or %s",
			c.Storage.Driver, StorageDriverPostgres, StorageDriverMemory)
	}

	if c.Gemini.APIKey == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}
	if c.Catalog.Source == "" {
		missing = append(missing, "CATALOG_SOURCE")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.Gemini.Timeout <= 0 {
		return fmt.Errorf("gemini timeout must be positive, got %s", c.Gemini.Timeout)
	}
	if c.Gemini.MaxRetries < 0 {
		return fmt.Errorf("gemini max retries must not be negative, got %d", c.Gemini.MaxRetries)
	}
	if c.Catalog.CacheTTL <= 0 {
		return fmt.Errorf("catalog cache ttl must be positive, got %s", c.Catalog.CacheTTL)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session ttl must be positive, got %s", c.Session.TTL)
	}

	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// UsesPostgres reports whether the durable store is PostgreSQL.
func (c *Config) UsesPostgres() bool {
	return c.Storage.Driver == StorageDriverPostgres
}

// RequestsPerSecond converts the configured window into a token refill rate.
func (r RateLimitConfig) RequestsPerSecond() float64 {
	if r.Window <= 0 || r.Requests <= 0 {
		return 0
	}
	return float64(r.Requests) / r.Window.Seconds()
}
