package extension

import "github.com/xraph/fulfillment/config"

// Config holds the fulfillment extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.fulfillment" or "fulfillment" keys).
type Config struct {
	// Service is the storefront configuration shared with the standalone
	// binary.
	Service config.Config `json:"service" mapstructure:"service" yaml:"service"`

	// DisableRoutes skips providing the HTTP handler to the container.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{Service: config.DefaultConfig()}
}
