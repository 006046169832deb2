// Package extension provides the Forge extension adapter for the
// fulfillment engine.
//
// It implements the forge.Extension interface to integrate the storefront
// backend into a Forge application with DI registration and lifecycle
// management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.fulfillment" or
// "fulfillment" keys.
package extension

import (
	"context"
	"errors"
	"net/http"

	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"

	"github.com/xraph/fulfillment/api"
	"github.com/xraph/fulfillment/config"
	"github.com/xraph/fulfillment/engine"
	"github.com/xraph/fulfillment/store"
	"github.com/xraph/fulfillment/store/backend"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "fulfillment"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Digital storefront checkout, webhook reconciliation and download delivery"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the fulfillment engine as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *engine.Engine
	store      store.Store
	groveDB    *grove.DB
	engineOpts []engine.Option
}

// New creates a new fulfillment Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying engine.
// This is nil until Register is called.
func (e *Extension) Engine() *engine.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if err := e.resolveStore(context.Background()); err != nil {
		return err
	}

	opts := append([]engine.Option{engine.WithConfig(e.config.Service)}, e.engineOpts...)
	e.engine = engine.New(e.store, opts...)

	if err := vessel.Provide(fapp.Container(), func() (*engine.Engine, error) {
		return e.engine, nil
	}); err != nil {
		return err
	}

	if e.config.DisableRoutes {
		return nil
	}
	return vessel.Provide(fapp.Container(), func() (http.Handler, error) {
		return api.New(e.engine).Handler(), nil
	})
}

// resolveStore picks, in order: the programmatic store, the grove database
// wrapped by the configured driver, then the configured driver itself.
func (e *Extension) resolveStore(ctx context.Context) error {
	if e.store != nil {
		return nil
	}
	if e.groveDB != nil {
		s, err := backend.FromGrove(e.groveDB, e.config.Service.Store.Driver)
		if err != nil {
			return err
		}
		e.store = s
		return nil
	}
	s, err := backend.Open(ctx, e.config.Service.Store)
	if err != nil {
		return err
	}
	e.store = s
	return nil
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("fulfillment: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("fulfillment: store not initialized")
	}
	return e.store.Ping(ctx)
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("fulfillment: configuration is required but not found in config files; " +
				"ensure 'extensions.fulfillment' or 'fulfillment' key exists in your config")
		}
		e.config = programmaticConfig
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}
	e.config.Service = config.MergeWithDefaults(e.config.Service)

	if err := e.config.Service.Validate(); err != nil {
		return err
	}

	e.Logger().Debug("fulfillment: configuration loaded",
		forge.F("disable_routes", e.config.DisableRoutes),
		forge.F("disable_migrate", e.config.Service.Store.DisableMigrate),
		forge.F("store_driver", e.config.Service.Store.Driver),
		forge.F("pending_ttl", e.config.Service.Fulfillment.PendingTTL),
		forge.F("evict_interval", e.config.Service.Fulfillment.EvictInterval),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	for _, key := range []string{"extensions.fulfillment", "fulfillment"} {
		if !cm.IsSet(key) {
			continue
		}
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("fulfillment: loaded config from file",
				forge.F("key", key),
			)
			return cfg, true
		}
		e.Logger().Warn("fulfillment: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence; programmatic bool flags and credentials
// fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableRoutes {
		yamlConfig.DisableRoutes = true
	}
	if programmaticConfig.Service.Store.DisableMigrate {
		yamlConfig.Service.Store.DisableMigrate = true
	}

	y, p := &yamlConfig.Service, programmaticConfig.Service
	if y.Store.Driver == "" {
		y.Store.Driver = p.Store.Driver
	}
	if y.Store.DSN == "" {
		y.Store.DSN = p.Store.DSN
	}
	if y.LemonSqueezy.APIKey == "" {
		y.LemonSqueezy = p.LemonSqueezy
	}
	if y.Email.SendGridAPIKey == "" && p.Email.SendGridAPIKey != "" {
		y.Email = p.Email
	}

	return yamlConfig
}
