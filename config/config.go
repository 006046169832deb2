// Package config holds the storefront service configuration.
//
// The standalone binary loads it with Load (YAML file plus environment);
// the forge extension binds the same struct from the application config
// under "extensions.fulfillment" or "fulfillment".
package config

import (
	"fmt"
	"time"

	"github.com/xraph/fulfillment"
)

// Store drivers.
const (
	DriverFile     = "file"
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Config is the complete service configuration.
type Config struct {
	// Addr is the HTTP listen address (default: ":8000").
	Addr string `json:"addr" mapstructure:"addr" yaml:"addr"`

	// ServiceName is reported by the root endpoint.
	ServiceName string `json:"service_name" mapstructure:"service_name" yaml:"service_name"`

	// LogLevel is one of debug, info, warn, error (default: info).
	LogLevel string `json:"log_level" mapstructure:"log_level" yaml:"log_level"`

	// LogFormat is text or json (default: text).
	LogFormat string `json:"log_format" mapstructure:"log_format" yaml:"log_format"`

	Store        StoreConfig        `json:"store" mapstructure:"store" yaml:"store"`
	LemonSqueezy LemonSqueezyConfig `json:"lemon_squeezy" mapstructure:"lemon_squeezy" yaml:"lemon_squeezy"`
	Email        EmailConfig        `json:"email" mapstructure:"email" yaml:"email"`
	Fulfillment  FulfillmentConfig  `json:"fulfillment" mapstructure:"fulfillment" yaml:"fulfillment"`
	Metrics      MetricsConfig      `json:"metrics" mapstructure:"metrics" yaml:"metrics"`
	Events       EventsConfig       `json:"events" mapstructure:"events" yaml:"events"`

	// CORSOrigins lists allowed browser origins (default: all).
	CORSOrigins []string `json:"cors_origins" mapstructure:"cors_origins" yaml:"cors_origins"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	// Driver is file, memory, sqlite, postgres or mongo (default: file).
	Driver string `json:"driver" mapstructure:"driver" yaml:"driver"`

	// DataDir holds the JSON snapshots of the file driver (default: "./data").
	DataDir string `json:"data_dir" mapstructure:"data_dir" yaml:"data_dir"`

	// DSN is the connection string of the sqlite, postgres and mongo drivers.
	DSN string `json:"dsn" mapstructure:"dsn" yaml:"dsn"`

	// DisableMigrate skips schema migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`
}

// LemonSqueezyConfig holds payment provider credentials.
type LemonSqueezyConfig struct {
	APIKey          string `json:"api_key" mapstructure:"api_key" yaml:"api_key"`
	StoreID         string `json:"store_id" mapstructure:"store_id" yaml:"store_id"`
	BundleVariantID string `json:"bundle_variant_id" mapstructure:"bundle_variant_id" yaml:"bundle_variant_id"`
	WebhookSecret   string `json:"webhook_secret" mapstructure:"webhook_secret" yaml:"webhook_secret"`
	BaseURL         string `json:"base_url" mapstructure:"base_url" yaml:"base_url"`

	// Timeout bounds each API call (default: 15s).
	Timeout time.Duration `json:"timeout" mapstructure:"timeout" yaml:"timeout"`

	// RequestsPerSecond caps outbound API calls (default: 5).
	RequestsPerSecond float64 `json:"requests_per_second" mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `json:"burst" mapstructure:"burst" yaml:"burst"`

	// CheckoutRedirectURL is where buyers land after paying.
	CheckoutRedirectURL string `json:"checkout_redirect_url" mapstructure:"checkout_redirect_url" yaml:"checkout_redirect_url"`
}

// EmailConfig configures order confirmations.
type EmailConfig struct {
	SendGridAPIKey string `json:"sendgrid_api_key" mapstructure:"sendgrid_api_key" yaml:"sendgrid_api_key"`
	FromEmail      string `json:"from_email" mapstructure:"from_email" yaml:"from_email"`
	FromName       string `json:"from_name" mapstructure:"from_name" yaml:"from_name"`
	StoreName      string `json:"store_name" mapstructure:"store_name" yaml:"store_name"`
	WebsiteURL     string `json:"website_url" mapstructure:"website_url" yaml:"website_url"`
	SupportEmail   string `json:"support_email" mapstructure:"support_email" yaml:"support_email"`
}

// FulfillmentConfig tunes the order pipeline.
type FulfillmentConfig struct {
	// PendingTTL is how long an unpaid cart is kept (default: 24h).
	PendingTTL time.Duration `json:"pending_ttl" mapstructure:"pending_ttl" yaml:"pending_ttl"`

	// EvictInterval is how often expired carts are removed (default: 10m).
	EvictInterval time.Duration `json:"evict_interval" mapstructure:"evict_interval" yaml:"evict_interval"`

	// ProcessedRetention is how long processed-order ids block redelivery
	// (default: 720h).
	ProcessedRetention time.Duration `json:"processed_retention" mapstructure:"processed_retention" yaml:"processed_retention"`

	// DisableFallbackMatch turns off the oldest-pending heuristic.
	DisableFallbackMatch bool `json:"disable_fallback_match" mapstructure:"disable_fallback_match" yaml:"disable_fallback_match"`

	// DownloadTimeout bounds each upstream file retrieval (default: 60s).
	DownloadTimeout time.Duration `json:"download_timeout" mapstructure:"download_timeout" yaml:"download_timeout"`

	// ScratchDir holds bundle scratch space and archives (default: os.TempDir).
	ScratchDir string `json:"scratch_dir" mapstructure:"scratch_dir" yaml:"scratch_dir"`

	// EnableDebugRoutes exposes /api/debug/files.
	EnableDebugRoutes bool `json:"enable_debug_routes" mapstructure:"enable_debug_routes" yaml:"enable_debug_routes"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Disabled bool   `json:"disabled" mapstructure:"disabled" yaml:"disabled"`
	Path     string `json:"path" mapstructure:"path" yaml:"path"`
}

// EventsConfig configures the RabbitMQ event publisher. Empty URL disables it.
type EventsConfig struct {
	AMQPURL  string `json:"amqp_url" mapstructure:"amqp_url" yaml:"amqp_url"`
	Exchange string `json:"exchange" mapstructure:"exchange" yaml:"exchange"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:        ":8000",
		ServiceName: "storefront-api",
		LogLevel:    "info",
		LogFormat:   "text",
		Store: StoreConfig{
			Driver:  DriverFile,
			DataDir: "./data",
		},
		LemonSqueezy: LemonSqueezyConfig{
			Timeout:           15 * time.Second,
			RequestsPerSecond: 5,
			Burst:             5,
		},
		Email: EmailConfig{
			StoreName: "Storefront",
		},
		Fulfillment: FulfillmentConfig{
			PendingTTL:         24 * time.Hour,
			EvictInterval:      10 * time.Minute,
			ProcessedRetention: 30 * 24 * time.Hour,
			DownloadTimeout:    60 * time.Second,
		},
		Metrics: MetricsConfig{
			Path: "/metrics",
		},
		CORSOrigins: []string{"*"},
	}
}

// MergeWithDefaults fills zero-valued fields with defaults.
func MergeWithDefaults(cfg Config) Config {
	d := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = d.Addr
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = d.ServiceName
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = d.LogLevel
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = d.LogFormat
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = d.Store.Driver
	}
	if cfg.Store.DataDir == "" {
		cfg.Store.DataDir = d.Store.DataDir
	}
	if cfg.LemonSqueezy.Timeout == 0 {
		cfg.LemonSqueezy.Timeout = d.LemonSqueezy.Timeout
	}
	if cfg.LemonSqueezy.RequestsPerSecond == 0 {
		cfg.LemonSqueezy.RequestsPerSecond = d.LemonSqueezy.RequestsPerSecond
	}
	if cfg.LemonSqueezy.Burst == 0 {
		cfg.LemonSqueezy.Burst = d.LemonSqueezy.Burst
	}
	if cfg.Email.StoreName == "" {
		cfg.Email.StoreName = d.Email.StoreName
	}
	if cfg.Fulfillment.PendingTTL == 0 {
		cfg.Fulfillment.PendingTTL = d.Fulfillment.PendingTTL
	}
	if cfg.Fulfillment.EvictInterval == 0 {
		cfg.Fulfillment.EvictInterval = d.Fulfillment.EvictInterval
	}
	if cfg.Fulfillment.ProcessedRetention == 0 {
		cfg.Fulfillment.ProcessedRetention = d.Fulfillment.ProcessedRetention
	}
	if cfg.Fulfillment.DownloadTimeout == 0 {
		cfg.Fulfillment.DownloadTimeout = d.Fulfillment.DownloadTimeout
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = d.Metrics.Path
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = d.CORSOrigins
	}
	return cfg
}

// Validate reports settings the service cannot run with.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverFile, DriverMemory:
	case DriverSQLite, DriverPostgres, DriverMongo:
		if c.Store.DSN == "" {
			return fulfillment.ValidationError{Field: "store.dsn", Message: fmt.Sprintf("is required for the %s driver", c.Store.Driver)}
		}
	default:
		return fulfillment.ValidationError{Field: "store.driver", Message: fmt.Sprintf("unknown driver %q", c.Store.Driver)}
	}

	durations := []struct {
		field string
		d     time.Duration
	}{
		{"fulfillment.pending_ttl", c.Fulfillment.PendingTTL},
		{"fulfillment.evict_interval", c.Fulfillment.EvictInterval},
		{"fulfillment.processed_retention", c.Fulfillment.ProcessedRetention},
		{"fulfillment.download_timeout", c.Fulfillment.DownloadTimeout},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return fulfillment.ValidationError{Field: d.field, Message: "must be positive"}
		}
	}
	return nil
}

// CheckoutReady returns a *fulfillment.ConfigError naming the provider
// settings checkout needs but does not have.
func (c Config) CheckoutReady() error {
	var missing []string
	if c.LemonSqueezy.APIKey == "" {
		missing = append(missing, "LEMON_SQUEEZY_API_KEY")
	}
	if c.LemonSqueezy.StoreID == "" {
		missing = append(missing, "LEMON_SQUEEZY_STORE_ID")
	}
	if c.LemonSqueezy.BundleVariantID == "" {
		missing = append(missing, "LEMON_SQUEEZY_BUNDLE_VARIANT_ID")
	}
	if len(missing) > 0 {
		return &fulfillment.ConfigError{Operation: "checkout", Missing: missing}
	}
	return nil
}

// Warnings lists degraded modes the service will run in.
func (c Config) Warnings() []string {
	var w []string
	if err := c.CheckoutReady(); err != nil {
		w = append(w, err.Error()+"; product listing serves mock inventory and checkout is disabled")
	}
	if c.LemonSqueezy.WebhookSecret == "" {
		w = append(w, "LEMON_SQUEEZY_WEBHOOK_SECRET is not set; webhook signature verification disabled")
	}
	if c.Email.SendGridAPIKey == "" {
		w = append(w, "SENDGRID_API_KEY is not set; order confirmations are logged, not sent")
	}
	return w
}

// Redacted returns a copy with credentials and connection strings masked.
func (c Config) Redacted() Config {
	mask := func(s *string) {
		if *s != "" {
			*s = "****"
		}
	}
	mask(&c.LemonSqueezy.APIKey)
	mask(&c.LemonSqueezy.WebhookSecret)
	mask(&c.Email.SendGridAPIKey)
	mask(&c.Store.DSN)
	mask(&c.Events.AMQPURL)
	return c
}
