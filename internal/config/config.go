// Package config provides centralized configuration management for the check-in board.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
//
// A missing store URL or store key is not a load error: the server starts in
// setup-required mode instead (see [StoreConfig.Configured]).
package config

import (
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Auth     AuthConfig
	Notify   NotifyConfig
	Import   ImportConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Locale   LocaleConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" envDefault:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" envDefault:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for WebSocket)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// RequestTimeout is the middleware timeout for non-streaming requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" envDefault:"60s"`

	// LiveAuthInterval is how often an open live connection re-checks its sign-in (default: 30s)
	LiveAuthInterval time.Duration `env:"SERVER_LIVE_AUTH_INTERVAL" envDefault:"30s"`
}

// StoreConfig holds participant store settings.
type StoreConfig struct {
	// Driver selects the store backend: postgres or sqlite (default: postgres)
	Driver string `env:"STORE_DRIVER" envDefault:"postgres"`

	// URL is the store endpoint: a PostgreSQL connection string, or a
	// file path / file: URI for sqlite.
	URL string `env:"STORE_URL"`

	// Key is the store access key. It also signs session tokens.
	Key string `env:"STORE_KEY"`

	// AutoMigrate applies pending migrations on startup (default: true)
	AutoMigrate bool `env:"STORE_AUTO_MIGRATE" envDefault:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"STORE_MAX_CONNS" envDefault:"10"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"STORE_MIN_CONNS" envDefault:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"STORE_MAX_CONN_LIFETIME" envDefault:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"STORE_MAX_CONN_IDLE_TIME" envDefault:"30m"`

	// ListenRetryDelay is how long the change listener waits before re-listening (default: 5s)
	ListenRetryDelay time.Duration `env:"STORE_LISTEN_RETRY_DELAY" envDefault:"5s"`
}

// AuthConfig holds shared-password gate settings.
type AuthConfig struct {
	// SharedEmail is the fixed account identifier all receptionists sign in as.
	SharedEmail string `env:"SHARED_EMAIL"`

	// SessionTTL is how long a signed-in session stays valid (default: 12h)
	SessionTTL time.Duration `env:"AUTH_SESSION_TTL" envDefault:"12h"`

	// BcryptCost is the cost used when setting the shared password (default: 12)
	BcryptCost int `env:"AUTH_BCRYPT_COST" envDefault:"12"`

	// CookieSecure marks the session cookie Secure (default: false)
	CookieSecure bool `env:"AUTH_COOKIE_SECURE" envDefault:"false"`
}

// NotifyConfig holds VIP webhook settings.
type NotifyConfig struct {
	// WebhookURL is the endpoint that receives VIP arrival notifications. Empty disables them.
	WebhookURL string `env:"VIP_WEBHOOK_URL"`

	// Marker is the memo substring that flags a participant as VIP (default: 重要)
	Marker string `env:"VIP_MARKER" envDefault:"重要"`

	// Timeout bounds a single webhook delivery (default: 5s)
	Timeout time.Duration `env:"VIP_WEBHOOK_TIMEOUT" envDefault:"5s"`
}

// ImportConfig holds CSV import settings.
type ImportConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 5MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" envDefault:"5242880"`

	// MaxConcurrent is the maximum number of parallel imports (default: 2)
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" envDefault:"2"`

	// MaxWaitTime is how long to wait for an import slot (default: 10s)
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" envDefault:"10s"`

	// Delimiter is the field separator (default: ,)
	Delimiter string `env:"IMPORT_DELIMITER" envDefault:","`

	// HeaderWords mark the first line as a header when its first field contains one of them.
	HeaderWords []string `env:"IMPORT_HEADER_WORDS" envDefault:"name,氏名,名前" envSeparator:","`

	// PreviewRows is how many rows the preview endpoint returns (default: 5)
	PreviewRows int `env:"IMPORT_PREVIEW_ROWS" envDefault:"5"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 300)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" envDefault:"300"`

	// SignInLimit is sign-in attempts per minute per IP (default: 10)
	SignInLimit int `env:"RATE_LIMIT_SIGN_IN" envDefault:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" envDefault:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

// LocaleConfig holds user-facing language and clock settings.
type LocaleConfig struct {
	// Language is the default message language (default: ja)
	Language string `env:"LOCALE_LANGUAGE" envDefault:"ja"`

	// TimeZone is used when formatting check-in times (default: Asia/Tokyo)
	TimeZone string `env:"LOCALE_TIME_ZONE" envDefault:"Asia/Tokyo"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + strconv.Itoa(c.Port)
	}
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Configured reports whether both the store URL and key are set to real values.
// Placeholder values copied from an example .env ("YOUR_...") count as unset.
func (c *StoreConfig) Configured() bool {
	return isSet(c.URL) && isSet(c.Key)
}

func isSet(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && !strings.HasPrefix(strings.ToUpper(v), "YOUR_")
}
