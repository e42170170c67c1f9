// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Session store backends.
const (
	StoreFile     = "file"
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

const (
	defaultHTTPTimeout         = 30 * time.Second
	defaultRefreshInterval     = 10 * time.Minute
	defaultInactivityThreshold = 30 * time.Minute
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// APIBaseURL is the back-office REST API base (e.g. https://api.example.com/v1).
	APIBaseURL string `mapstructure:"API_BASE_URL"`
	// HTTPTimeout bounds each API request (e.g. "30s").
	HTTPTimeout string `mapstructure:"HTTP_TIMEOUT"`

	// SessionStore selects where the auth snapshot is persisted: file, memory or postgres.
	SessionStore string `mapstructure:"SESSION_STORE"`
	// SessionDir is the directory of the file store.
	SessionDir string `mapstructure:"SESSION_DIR"`
	// SessionKey is the fixed key the snapshot is stored under.
	SessionKey string `mapstructure:"SESSION_KEY"`
	// SessionEncryptionKey encrypts the file store when set; inline passphrase or "file:<path>".
	SessionEncryptionKey string `mapstructure:"SESSION_ENCRYPTION_KEY"`
	// DatabaseURL is the Postgres DSN; required when SessionStore is postgres.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// RefreshInterval is the silent-refresh period; keep it below the access token lifetime.
	RefreshInterval string `mapstructure:"REFRESH_INTERVAL"`
	// InactivityThreshold stops silent refresh when the user has been idle longer than this.
	InactivityThreshold string `mapstructure:"INACTIVITY_THRESHOLD"`
	// LandingRoute is where a signed-in user is sent.
	LandingRoute string `mapstructure:"LANDING_ROUTE"`
	// SignInRoute is where an anonymous user is sent.
	SignInRoute string `mapstructure:"SIGNIN_ROUTE"`

	// OTLPEndpoint enables OpenTelemetry export when set (e.g. localhost:4317).
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces a plaintext OTLP connection.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// LogFile routes the standard logger to a rotating file when set.
	LogFile string `mapstructure:"LOG_FILE"`
	// LogMaxSizeMB is the size at which the log file rotates.
	LogMaxSizeMB int `mapstructure:"LOG_MAX_SIZE_MB"`

	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored. Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("API_BASE_URL", "http://localhost:8080")
	v.SetDefault("HTTP_TIMEOUT", "30s")
	v.SetDefault("SESSION_STORE", StoreFile)
	v.SetDefault("SESSION_DIR", ".backoffice")
	v.SetDefault("SESSION_KEY", "mallow-sale.auth")
	v.SetDefault("SESSION_ENCRYPTION_KEY", "")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REFRESH_INTERVAL", "10m")
	v.SetDefault("INACTIVITY_THRESHOLD", "30m")
	v.SetDefault("LANDING_ROUTE", "/")
	v.SetDefault("SIGNIN_ROUTE", "/signin")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("LOG_FILE", "")
	v.SetDefault("LOG_MAX_SIZE_MB", 10)
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: API_BASE_URL must be an absolute URL, got %q", c.APIBaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("config: API_BASE_URL scheme must be http or https, got %q", u.Scheme)
	}

	c.SessionStore = strings.ToLower(strings.TrimSpace(c.SessionStore))
	switch c.SessionStore {
	case StoreFile, StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL must be set when SESSION_STORE=postgres")
		}
	default:
		return fmt.Errorf("config: SESSION_STORE must be file, memory or postgres, got %q", c.SessionStore)
	}
	if c.SessionKey == "" {
		return errors.New("config: SESSION_KEY must be set")
	}
	if c.SessionStore == StoreFile && c.SessionEncryptionKey == "" && c.Env == "production" {
		return errors.New("config: SESSION_ENCRYPTION_KEY must be set for the file store when APP_ENV=production")
	}
	if !strings.HasPrefix(c.LandingRoute, "/") || !strings.HasPrefix(c.SignInRoute, "/") {
		return errors.New("config: LANDING_ROUTE and SIGNIN_ROUTE must start with /")
	}
	if c.LandingRoute == c.SignInRoute {
		return errors.New("config: LANDING_ROUTE and SIGNIN_ROUTE must differ")
	}
	if c.LogMaxSizeMB <= 0 {
		c.LogMaxSizeMB = 10
	}
	return nil
}

// Timeout parses HTTPTimeout. Returns 30s if unset or invalid.
func (c *Config) Timeout() time.Duration {
	return parseDuration(c.HTTPTimeout, defaultHTTPTimeout)
}

// RefreshEvery parses RefreshInterval. Returns 10m if unset or invalid.
func (c *Config) RefreshEvery() time.Duration {
	return parseDuration(c.RefreshInterval, defaultRefreshInterval)
}

// IdleAfter parses InactivityThreshold. Returns 30m if unset or invalid.
func (c *Config) IdleAfter() time.Duration {
	return parseDuration(c.InactivityThreshold, defaultInactivityThreshold)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
