// Package config provides centralized configuration management for the importer.
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
	Upload   UploadConfig
	Exec     ExecConfig
	Catalog  CatalogConfig
	Executor ExecutorConfig
	Runs     RunsConfig
	Database DatabaseConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig

	// PipelinesFile is an optional YAML overlay for registered pipelines
	PipelinesFile string `env:"PIPELINES_FILE"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing a response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds the wait for in-flight executions on shutdown (default: 2m)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"2m"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// UploadConfig holds file upload settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 25MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"26214400"`

	// PreviewRows caps the rows returned in a run view (default: 200)
	PreviewRows int `env:"UPLOAD_PREVIEW_ROWS" default:"200"`
}

// ExecConfig holds batch execution settings.
type ExecConfig struct {
	// MaxConcurrent is the number of runs that may execute at once (default: 4)
	MaxConcurrent int `env:"EXEC_MAX_CONCURRENT" default:"4"`

	// SlotWait is how long an execute request waits for a free slot (default: 10s)
	SlotWait time.Duration `env:"EXEC_SLOT_WAIT" default:"10s"`

	// Timeout bounds a single batch call (default: 120s)
	Timeout time.Duration `env:"EXEC_TIMEOUT" default:"120s"`

	// Idempotent declares that the execution service tolerates replays;
	// retried batches are then not flagged as possible duplicates
	Idempotent bool `env:"EXEC_IDEMPOTENT" default:"false"`
}

// CatalogConfig holds the catalog matcher connection.
type CatalogConfig struct {
	// URL is the catalog service base URL (required)
	URL string `env:"CATALOG_URL" required:"true"`

	// Timeout bounds the match call (default: 30s)
	Timeout time.Duration `env:"CATALOG_TIMEOUT" default:"30s"`

	// RateLimit caps requests per second, 0 for none (default: 0)
	RateLimit float64 `env:"CATALOG_RATE_LIMIT" default:"0"`

	// APIKey is sent as a bearer token when set
	APIKey string `env:"CATALOG_API_KEY"`
}

// ExecutorConfig holds the execution service connection.
type ExecutorConfig struct {
	// URL is the execution service base URL (required)
	URL string `env:"EXECUTOR_URL" required:"true"`

	// Timeout is the HTTP client timeout; must cover EXEC_TIMEOUT (default: 130s)
	Timeout time.Duration `env:"EXECUTOR_TIMEOUT" default:"130s"`

	// RateLimit caps requests per second, 0 for none (default: 0)
	RateLimit float64 `env:"EXECUTOR_RATE_LIMIT" default:"0"`

	// APIKey is sent as a bearer token when set
	APIKey string `env:"EXECUTOR_API_KEY"`
}

// RunsConfig holds run lifecycle settings.
type RunsConfig struct {
	// TTL is how long an idle run is kept (default: 2h)
	TTL time.Duration `env:"RUN_TTL" default:"2h"`

	// JanitorInterval is how often idle runs are expired (default: 1m)
	JanitorInterval time.Duration `env:"RUN_JANITOR_INTERVAL" default:"1m"`

	// MemoryReports is how many reports the in-memory store keeps (default: 1000)
	MemoryReports int `env:"RUN_MEMORY_REPORTS" default:"1000"`
}

// DatabaseConfig holds the optional report store connection.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string; reports stay in memory when empty
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// Enabled reports whether a report database is configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// RateLimitConfig holds per-IP request limits.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 120)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey enables X-API-Key checks on /api routes (default: false)
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
