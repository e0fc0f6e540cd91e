package config

import (
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var tableNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	return load(true)
}

// LoadOffline is Load for commands that never open the database.
// DATABASE_URL may be unset; every other setting is validated as usual.
func LoadOffline() (*Config, error) {
	return load(false)
}

func load(needDatabase bool) (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem(), needDatabase); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.validate(needDatabase); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// loadStruct recursively populates struct fields from environment variables.
// Required tags are only enforced when enforceRequired is set.
func loadStruct(v reflect.Value, enforceRequired bool) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		// Skip unexported fields
		if !fieldVal.CanSet() {
			continue
		}

		// Recurse into nested structs
		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal, enforceRequired); err != nil {
				return err
			}
			continue
		}

		// Get tags
		envName := field.Tag.Get("env")
		envAlt := field.Tag.Get("envAlt")
		defaultVal := field.Tag.Get("default")
		required := enforceRequired && field.Tag.Get("required") == "true"

		if envName == "" {
			continue
		}

		// Try primary env var, then alternate
		value := os.Getenv(envName)
		if value == "" && envAlt != "" {
			value = os.Getenv(envAlt)
		}

		// Apply default if not set
		if value == "" {
			if required {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = defaultVal
		}

		if value == "" {
			continue
		}

		// Set the field value
		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
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
	return c.validate(true)
}

func (c *Config) validate(needDatabase bool) error {
	var errs []string

	// Database validation
	if needDatabase && c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL is required")
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
	if !tableNameRegex.MatchString(c.Database.Table) {
		errs = append(errs, fmt.Sprintf("DB_VEHICLE_TABLE (%q) must be a plain SQL identifier", c.Database.Table))
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

	// Source validation
	switch strings.ToLower(c.Sources.Provider) {
	case "sheets":
		if c.Sources.SpreadsheetID == "" {
			errs = append(errs, "SHEETS_SPREADSHEET_ID is required when SOURCE_PROVIDER=sheets")
		}
		if c.Sources.APIKey == "" && c.Sources.CredentialsFile == "" {
			errs = append(errs, "SHEETS_API_KEY or SHEETS_CREDENTIALS_FILE is required when SOURCE_PROVIDER=sheets")
		}
	case "csv":
		if c.Sources.CSVDir == "" {
			errs = append(errs, "CSV_SOURCE_DIR is required when SOURCE_PROVIDER=csv")
		}
	default:
		errs = append(errs, fmt.Sprintf("SOURCE_PROVIDER (%q) must be one of: sheets, csv", c.Sources.Provider))
	}
	if _, err := c.Sources.Ranges(); err != nil {
		errs = append(errs, err.Error())
	}

	// Sync validation
	if c.Sync.Timeout <= 0 {
		errs = append(errs, "SYNC_TIMEOUT must be positive")
	}
	if c.Sync.FetchTimeout <= 0 {
		errs = append(errs, "SYNC_FETCH_TIMEOUT must be positive")
	}
	if c.Sync.FetchTimeout > c.Sync.Timeout {
		errs = append(errs, fmt.Sprintf("SYNC_FETCH_TIMEOUT (%s) must not exceed SYNC_TIMEOUT (%s)",
			c.Sync.FetchTimeout, c.Sync.Timeout))
	}
	if c.Sync.WriteConcurrency <= 0 {
		errs = append(errs, "SYNC_WRITE_CONCURRENCY must be positive")
	}
	if c.Sync.MaxConcurrent <= 0 {
		errs = append(errs, "SYNC_MAX_CONCURRENT must be positive")
	}
	if c.Sync.MaxWaitTime <= 0 {
		errs = append(errs, "SYNC_MAX_WAIT_TIME must be positive")
	}
	if c.Sync.HistoryLimit <= 0 {
		errs = append(errs, "SYNC_HISTORY_LIMIT must be positive")
	}
	// A sync may wait for a slot and then run to its deadline inside one request.
	if budget := c.Sync.Timeout + c.Sync.MaxWaitTime; c.Server.RequestTimeout > 0 && c.Server.RequestTimeout <= budget {
		errs = append(errs, fmt.Sprintf("SERVER_REQUEST_TIMEOUT (%s) must exceed SYNC_TIMEOUT + SYNC_MAX_WAIT_TIME (%s)",
			c.Server.RequestTimeout, budget))
	}

	// Rate limit validation
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if c.Rate.Enabled && c.Rate.SyncLimit <= 0 {
		errs = append(errs, "RATE_LIMIT_SYNC must be positive when rate limiting is enabled")
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

// Ranges parses RangeOverrides into a source name -> range map.
// Source names are not checked here; unknown names are rejected by the source registry.
func (c *SourcesConfig) Ranges() (map[string]string, error) {
	out := make(map[string]string, len(c.RangeOverrides))
	for _, pair := range c.RangeOverrides {
		name, rng, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		rng = strings.TrimSpace(rng)
		if !ok || name == "" || rng == "" {
			return nil, fmt.Errorf("SOURCE_RANGE_OVERRIDES entry %q must look like source=Range", pair)
		}
		out[strings.ToLower(name)] = rng
	}
	return out, nil
}

// String returns a safe string representation of the config for logging.
// Sensitive values like database URLs and API keys are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Database: {URL: [MASKED], MaxConns: %d, MinConns: %d, Table: %q}, ",
		c.Database.MaxConns, c.Database.MinConns, c.Database.Table))
	b.WriteString(fmt.Sprintf("Sources: {Provider: %q, SpreadsheetID: %q, APIKey: %s}, ",
		c.Sources.Provider, c.Sources.SpreadsheetID, mask(c.Sources.APIKey)))
	b.WriteString(fmt.Sprintf("Sync: {Timeout: %s, FetchTimeout: %s, WriteConcurrency: %d}, ",
		c.Sync.Timeout, c.Sync.FetchTimeout, c.Sync.WriteConcurrency))
	b.WriteString(fmt.Sprintf("Rate: {Enabled: %v, RequestsPerMinute: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}

func mask(s string) string {
	if s == "" {
		return "[UNSET]"
	}
	return "[MASKED]"
}
