package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/catalog-etl/internal/store"
)

// Load reads configuration from defaults and environment variables.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads configuration from defaults, then the YAML file at path (if
// path is not empty), then environment variables. The result is validated.
func LoadFile(path string) (*Config, error) {
	cfg := &Config{}
	v := reflect.ValueOf(cfg).Elem()

	if err := walk(v, applyDefault); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	if err := walk(v, applyEnv); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration and panics on error.
// Use this only in main() where early termination is desired.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// walk calls fn for every tagged leaf field, recursing into nested structs.
func walk(v reflect.Value, fn func(reflect.StructField, reflect.Value) error) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		// Skip unexported fields
		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := walk(fieldVal, fn); err != nil {
				return err
			}
			continue
		}

		if field.Tag.Get("env") == "" {
			continue
		}
		if err := fn(field, fieldVal); err != nil {
			return err
		}
	}

	return nil
}

func applyDefault(field reflect.StructField, fieldVal reflect.Value) error {
	def := field.Tag.Get("default")
	if def == "" {
		return nil
	}
	if err := setField(fieldVal, def); err != nil {
		return fmt.Errorf("invalid default for %s=%q: %w", field.Tag.Get("env"), def, err)
	}
	return nil
}

// applyEnv overrides a field when its env var (or the alternate) is set.
func applyEnv(field reflect.StructField, fieldVal reflect.Value) error {
	envName := field.Tag.Get("env")
	envAlt := field.Tag.Get("envAlt")

	value := os.Getenv(envName)
	if value == "" && envAlt != "" {
		value = os.Getenv(envAlt)
	}

	if value == "" {
		if field.Tag.Get("required") == "true" && fieldVal.IsZero() {
			return fmt.Errorf("required environment variable %s is not set", envName)
		}
		return nil
	}

	if err := setField(fieldVal, value); err != nil {
		return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
	}
	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		// Handle time.Duration specially
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			// Split comma-separated values, trim whitespace
			parts := strings.Split(value, ",")
			result := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					result = append(result, p)
				}
			}
			field.Set(reflect.ValueOf(result))
		} else {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Feed validation
	if c.Feed.URL == "" {
		errs = append(errs, "FEED_URL is required")
	} else if !strings.HasPrefix(c.Feed.URL, "http://") && !strings.HasPrefix(c.Feed.URL, "https://") {
		errs = append(errs, fmt.Sprintf("FEED_URL (%q) must be an http or https URL", c.Feed.URL))
	}
	if c.Feed.ChunkSize <= 0 {
		errs = append(errs, "FEED_CHUNK_SIZE must be positive")
	}

	// Download validation
	if c.Download.Parallel <= 0 {
		errs = append(errs, "DOWNLOAD_PARALLEL must be positive")
	}
	if c.Download.RetryMax < 0 {
		errs = append(errs, "DOWNLOAD_RETRY_MAX must be non-negative")
	}
	if c.Download.Timeout < 0 {
		errs = append(errs, "DOWNLOAD_TIMEOUT must be non-negative")
	}

	// Database validation
	if c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL is required")
	} else if _, _, err := store.ParseDSN(c.Database.URL); err != nil {
		errs = append(errs, fmt.Sprintf("DATABASE_URL: %v", err))
	}
	if c.Database.MaxConns < c.Database.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns))
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Run validation
	if c.Run.MaxConcurrent <= 0 {
		errs = append(errs, "RUN_MAX_CONCURRENT must be positive")
	}
	if c.Run.MaxWaitTime < 0 {
		errs = append(errs, "RUN_MAX_WAIT_TIME must be non-negative")
	}
	if c.Run.History <= 0 {
		errs = append(errs, "RUN_HISTORY must be positive")
	}
	if c.Run.Interval < 0 {
		errs = append(errs, "RUN_INTERVAL must be non-negative")
	}

	// Security validation
	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// The database URL is masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Feed: {URL: %q, ChunkSize: %d, DecompressToDisk: %v}, ",
		c.Feed.URL, c.Feed.ChunkSize, c.Feed.DecompressToDisk))
	b.WriteString(fmt.Sprintf("Download: {Parallel: %d, RetryMax: %d}, ",
		c.Download.Parallel, c.Download.RetryMax))
	b.WriteString(fmt.Sprintf("Database: {URL: [MASKED], MaxConns: %d, MinConns: %d}, ",
		c.Database.MaxConns, c.Database.MinConns))
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Run: {MaxConcurrent: %d, MaxWaitTime: %s}, ",
		c.Run.MaxConcurrent, c.Run.MaxWaitTime))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}

// PoolConfig returns the connection pool settings for store.Open.
func (c *DatabaseConfig) PoolConfig() store.PoolConfig {
	return store.PoolConfig{
		MaxConns:        c.MaxConns,
		MinConns:        c.MinConns,
		MaxConnLifetime: c.MaxConnLifetime,
		MaxConnIdleTime: c.MaxConnIdleTime,
	}
}
