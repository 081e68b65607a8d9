// Package config provides centralized configuration management for catalog-etl.
// Settings come from struct-tag defaults, an optional YAML file and
// environment variables, in that order of precedence (later wins). The result
// is validated on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Feed     FeedConfig     `yaml:"feed"`
	Download DownloadConfig `yaml:"download"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Run      RunConfig      `yaml:"run"`
	Security SecurityConfig `yaml:"security"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// FeedConfig describes where the catalog feed comes from and how it is read.
type FeedConfig struct {
	// URL is the gzip-compressed CSV feed location
	URL string `yaml:"url" env:"FEED_URL" default:"https://tyroo-engineering-assesments.s3.us-west-2.amazonaws.com/Tyroo-dummy-data.csv.gz"`

	// WorkDir holds the downloaded archive and any decompressed copy (default: .)
	WorkDir string `yaml:"work_dir" env:"FEED_WORK_DIR" default:"."`

	// ChunkSize is the number of rows per processing chunk (default: 50000)
	ChunkSize int `yaml:"chunk_size" env:"FEED_CHUNK_SIZE" default:"50000"`

	// DecompressToDisk writes the decompressed CSV next to the archive
	// instead of streaming it straight out of the gzip reader (default: false)
	DecompressToDisk bool `yaml:"decompress_to_disk" env:"FEED_DECOMPRESS_TO_DISK" default:"false"`

	// KeepFiles leaves work files in place after a run (default: false)
	KeepFiles bool `yaml:"keep_files" env:"FEED_KEEP_FILES" default:"false"`
}

// DownloadConfig holds HTTP fetch settings.
type DownloadConfig struct {
	// Parallel is the number of concurrent range requests (default: 1)
	Parallel int `yaml:"parallel" env:"DOWNLOAD_PARALLEL" default:"1"`

	// RetryMax is the number of retries per request (default: 2)
	RetryMax int `yaml:"retry_max" env:"DOWNLOAD_RETRY_MAX" default:"2"`

	// RetryWait is the minimum backoff between retries (default: 1s)
	RetryWait time.Duration `yaml:"retry_wait" env:"DOWNLOAD_RETRY_WAIT" default:"1s"`

	// Timeout bounds a single request, 0 for none (default: 30m)
	Timeout time.Duration `yaml:"timeout" env:"DOWNLOAD_TIMEOUT" default:"30m"`
}

// DatabaseConfig holds sink connection settings.
type DatabaseConfig struct {
	// URL selects the sink: postgres://, sqlite://path or memory://
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `yaml:"url" env:"DATABASE_URL" envAlt:"DB_URL" default:"sqlite://products.db"`

	// MaxConns is the maximum number of connections in the pool (default: 4)
	MaxConns int `yaml:"max_conns" env:"DB_MAX_CONNS" default:"4"`

	// MinConns is the minimum number of connections to keep open (default: 0)
	MinConns int `yaml:"min_conns" env:"DB_MIN_CONNS" default:"0"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `yaml:"host" env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `yaml:"port" env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 30s)
	WriteTimeout time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" default:"30s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including in-flight runs (default: 30s)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `yaml:"request_timeout" env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// RunConfig holds settings for runs started through the HTTP API.
type RunConfig struct {
	// MaxConcurrent is the number of runs allowed at once (default: 1)
	MaxConcurrent int `yaml:"max_concurrent" env:"RUN_MAX_CONCURRENT" default:"1"`

	// MaxWaitTime is how long a start request waits for a free slot (default: 5s)
	MaxWaitTime time.Duration `yaml:"max_wait_time" env:"RUN_MAX_WAIT_TIME" default:"5s"`

	// History is the number of finished runs kept for status queries (default: 50)
	History int `yaml:"history" env:"RUN_HISTORY" default:"50"`

	// Interval reloads the feed on a schedule while serving, 0 to disable (default: 0s)
	Interval time.Duration `yaml:"interval" env:"RUN_INTERVAL" default:"0s"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `yaml:"trusted_proxies" env:"TRUSTED_PROXIES"`

	// RequireAPIKey guards run endpoints with X-API-Key (default: false)
	RequireAPIKey bool `yaml:"require_api_key" env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `yaml:"api_keys" env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `yaml:"level" env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `yaml:"format" env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
