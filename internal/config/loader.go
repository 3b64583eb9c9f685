package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // LOCALE_TIME_ZONE must resolve on hosts without zoneinfo
	"unicode/utf8"

	"github.com/caarlos0/env/v11"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if a value cannot be parsed or validation fails.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
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

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Store validation
	switch strings.ToLower(c.Store.Driver) {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("STORE_DRIVER (%q) must be one of: postgres, sqlite", c.Store.Driver))
	}
	if c.Store.MaxConns < c.Store.MinConns {
		errs = append(errs, fmt.Sprintf("STORE_MAX_CONNS (%d) must be >= STORE_MIN_CONNS (%d)",
			c.Store.MaxConns, c.Store.MinConns))
	}
	if c.Store.MaxConns <= 0 {
		errs = append(errs, "STORE_MAX_CONNS must be positive")
	}
	if c.Store.MinConns < 0 {
		errs = append(errs, "STORE_MIN_CONNS must be non-negative")
	}
	if c.Store.ListenRetryDelay <= 0 {
		errs = append(errs, "STORE_LISTEN_RETRY_DELAY must be positive")
	}

	// The shared account only matters once the store is reachable.
	if c.Store.Configured() && strings.TrimSpace(c.Auth.SharedEmail) == "" {
		errs = append(errs, "SHARED_EMAIL is required when STORE_URL and STORE_KEY are set")
	}
	if c.Auth.SessionTTL <= 0 {
		errs = append(errs, "AUTH_SESSION_TTL must be positive")
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.LiveAuthInterval < 0 {
		errs = append(errs, "SERVER_LIVE_AUTH_INTERVAL must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Import validation
	if c.Import.MaxFileSize <= 0 {
		errs = append(errs, "IMPORT_MAX_FILE_SIZE must be positive")
	}
	if c.Import.MaxConcurrent <= 0 {
		errs = append(errs, "IMPORT_MAX_CONCURRENT must be positive")
	}
	if c.Import.MaxWaitTime <= 0 {
		errs = append(errs, "IMPORT_MAX_WAIT_TIME must be positive")
	}
	if utf8.RuneCountInString(c.Import.Delimiter) != 1 || c.Import.Delimiter == "\"" ||
		c.Import.Delimiter == "\n" || c.Import.Delimiter == "\r" {
		errs = append(errs, fmt.Sprintf("IMPORT_DELIMITER (%q) must be a single character other than quote or newline", c.Import.Delimiter))
	}
	if c.Import.PreviewRows <= 0 {
		errs = append(errs, "IMPORT_PREVIEW_ROWS must be positive")
	}

	// Notify validation
	if c.Notify.WebhookURL != "" && c.Notify.Timeout <= 0 {
		errs = append(errs, "VIP_WEBHOOK_TIMEOUT must be positive when VIP_WEBHOOK_URL is set")
	}
	if c.Notify.Marker == "" {
		errs = append(errs, "VIP_MARKER must not be empty")
	}

	// Rate limit validation
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if c.Rate.Enabled && c.Rate.SignInLimit <= 0 {
		errs = append(errs, "RATE_LIMIT_SIGN_IN must be positive when rate limiting is enabled")
	}

	// Locale validation
	if _, err := time.LoadLocation(c.Locale.TimeZone); err != nil {
		errs = append(errs, fmt.Sprintf("LOCALE_TIME_ZONE (%q) is not a known time zone", c.Locale.TimeZone))
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

// Location returns the configured time zone, falling back to UTC.
func (c *LocaleConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// String returns a safe string representation of the config for logging.
// Sensitive values like the store URL and key are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Store: {Driver: %q, URL: [MASKED], Key: [MASKED], Configured: %v}, ",
		c.Store.Driver, c.Store.Configured()))
	b.WriteString(fmt.Sprintf("Auth: {SharedEmail: %q, SessionTTL: %s}, ", c.Auth.SharedEmail, c.Auth.SessionTTL))
	b.WriteString(fmt.Sprintf("Notify: {Webhook: %v, Marker: %q}, ", c.Notify.WebhookURL != "", c.Notify.Marker))
	b.WriteString(fmt.Sprintf("Import: {MaxFileSize: %d, MaxConcurrent: %d, Delimiter: %q}, ",
		c.Import.MaxFileSize, c.Import.MaxConcurrent, c.Import.Delimiter))
	b.WriteString(fmt.Sprintf("Rate: {Enabled: %v, RequestsPerMinute: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
