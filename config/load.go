package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// envBindings maps config keys to the environment variables that set them.
// The provider and email names match the variables storefront deployments
// already export.
var envBindings = map[string][]string{
	"addr":                                {"STOREFRONT_ADDR"},
	"log_level":                           {"STOREFRONT_LOG_LEVEL"},
	"log_format":                          {"STOREFRONT_LOG_FORMAT"},
	"store.driver":                        {"STOREFRONT_STORE_DRIVER"},
	"store.data_dir":                      {"STOREFRONT_DATA_DIR"},
	"store.dsn":                           {"STOREFRONT_STORE_DSN", "DATABASE_URL"},
	"lemon_squeezy.api_key":               {"LEMON_SQUEEZY_API_KEY"},
	"lemon_squeezy.store_id":              {"LEMON_SQUEEZY_STORE_ID"},
	"lemon_squeezy.bundle_variant_id":     {"LEMON_SQUEEZY_BUNDLE_VARIANT_ID"},
	"lemon_squeezy.webhook_secret":        {"LEMON_SQUEEZY_WEBHOOK_SECRET"},
	"lemon_squeezy.checkout_redirect_url": {"CHECKOUT_REDIRECT_URL"},
	"email.sendgrid_api_key":              {"SENDGRID_API_KEY"},
	"email.from_email":                    {"FROM_EMAIL"},
	"email.from_name":                     {"FROM_NAME"},
	"email.store_name":                    {"STORE_NAME"},
	"email.website_url":                   {"WEBSITE_URL"},
	"email.support_email":                 {"SUPPORT_EMAIL"},
	"fulfillment.pending_ttl":             {"STOREFRONT_PENDING_TTL"},
	"fulfillment.disable_fallback_match":  {"STOREFRONT_STRICT_MATCHING"},
	"fulfillment.scratch_dir":             {"STOREFRONT_SCRATCH_DIR"},
	"events.amqp_url":                     {"AMQP_URL"},
}

// Load reads the optional YAML file at path, overlays environment
// variables, fills defaults and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	for key, envs := range envBindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg = MergeWithDefaults(cfg)
	cfg.Store.Driver = strings.ToLower(cfg.Store.Driver)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
