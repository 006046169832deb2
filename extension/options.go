package extension

import (
	"github.com/xraph/grove"

	"github.com/xraph/fulfillment/engine"
	"github.com/xraph/fulfillment/plugin"
	"github.com/xraph/fulfillment/store"
)

// Option configures the fulfillment Forge extension.
type Option func(*Extension)

// WithStore sets the store for the engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithGroveDB backs the engine with an open grove database. The backend is
// chosen by the configured store driver (sqlite, postgres or mongo).
func WithGroveDB(db *grove.DB) Option {
	return func(e *Extension) { e.groveDB = db }
}

// WithEngineOption passes an engine.Option through to the underlying engine.
func WithEngineOption(opt engine.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers an engine plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, engine.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableRoutes skips providing the HTTP handler.
func WithDisableRoutes() Option {
	return func(e *Extension) { e.config.DisableRoutes = true }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.Service.Store.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}
