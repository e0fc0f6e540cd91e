// Package config provides centralized configuration management for the sync service.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Sources  SourcesConfig
	Sync     SyncConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for SSE)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for non-streaming requests (default: 3m)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"3m"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// Table is the table vehicles are written to (default: vehicles)
	Table string `env:"DB_VEHICLE_TABLE" default:"vehicles"`

	// AutoMigrate applies pending migrations on startup (default: true)
	AutoMigrate bool `env:"DB_AUTO_MIGRATE" default:"true"`
}

// SourcesConfig selects and addresses the twelve tabular sources.
type SourcesConfig struct {
	// Provider is where grids are read from: sheets or csv (default: sheets)
	Provider string `env:"SOURCE_PROVIDER" default:"sheets"`

	// SpreadsheetID is the Google spreadsheet holding all source tabs
	SpreadsheetID string `env:"SHEETS_SPREADSHEET_ID"`

	// APIKey authenticates read-only access to a public spreadsheet
	APIKey string `env:"SHEETS_API_KEY" envAlt:"GOOGLE_SHEETS_API_KEY"`

	// CredentialsFile is a service account JSON file; takes precedence over APIKey
	CredentialsFile string `env:"SHEETS_CREDENTIALS_FILE" envAlt:"GOOGLE_APPLICATION_CREDENTIALS"`

	// CSVDir is the directory holding <source>.csv files when Provider is csv
	CSVDir string `env:"CSV_SOURCE_DIR" default:"data/sources"`

	// RangeOverrides replaces default ranges, as source=Range pairs
	// e.g. "price=Fiyat!A:F,images=Gorseller!A:C"
	RangeOverrides []string `env:"SOURCE_RANGE_OVERRIDES"`
}

// SyncConfig holds pipeline timeouts and concurrency limits.
type SyncConfig struct {
	// Timeout is the deadline for one whole sync call (default: 2m)
	Timeout time.Duration `env:"SYNC_TIMEOUT" default:"2m"`

	// FetchTimeout bounds each individual source fetch (default: 20s)
	FetchTimeout time.Duration `env:"SYNC_FETCH_TIMEOUT" default:"20s"`

	// WriteConcurrency is the number of parallel store writes (default: 1, sequential)
	WriteConcurrency int `env:"SYNC_WRITE_CONCURRENCY" default:"1"`

	// MaxConcurrent is the maximum number of sync runs at once (default: 1)
	MaxConcurrent int `env:"SYNC_MAX_CONCURRENT" default:"1"`

	// MaxWaitTime is how long a caller waits for a sync slot (default: 10s)
	MaxWaitTime time.Duration `env:"SYNC_MAX_WAIT_TIME" default:"10s"`

	// HistoryLimit is how many runs GET /api/sync/runs returns (default: 20)
	HistoryLimit int `env:"SYNC_HISTORY_LIMIT" default:"20"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// SyncLimit is requests per minute for sync trigger endpoints (default: 10)
	SyncLimit int `env:"RATE_LIMIT_SYNC" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey protects the sync trigger with X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
