// Package engine wires the storefront components around one store and runs
// the background eviction worker.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/xraph/fulfillment"
	"github.com/xraph/fulfillment/analytics"
	"github.com/xraph/fulfillment/asset"
	"github.com/xraph/fulfillment/catalog"
	"github.com/xraph/fulfillment/checkout"
	"github.com/xraph/fulfillment/config"
	"github.com/xraph/fulfillment/delivery"
	"github.com/xraph/fulfillment/notify"
	"github.com/xraph/fulfillment/notify/sendgrid"
	"github.com/xraph/fulfillment/order"
	"github.com/xraph/fulfillment/plugin"
	"github.com/xraph/fulfillment/provider"
	"github.com/xraph/fulfillment/provider/lemonsqueezy"
	"github.com/xraph/fulfillment/reconcile"
	"github.com/xraph/fulfillment/resolver"
	"github.com/xraph/fulfillment/store"
)

// Engine is the storefront fulfillment engine.
type Engine struct {
	cfg     config.Config
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	now     func() time.Time

	provider   provider.Provider
	notifier   notify.Notifier
	httpClient *http.Client

	catalog    *catalog.Catalog
	checkout   *checkout.Service
	resolver   *resolver.Resolver
	packager   *delivery.Packager
	reconciler *reconcile.Reconciler
	tracker    *analytics.Tracker

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig sets the configuration. Zero fields take defaults.
func WithConfig(cfg config.Config) Option {
	return func(e *Engine) { e.cfg = config.MergeWithDefaults(cfg) }
}

// WithProvider replaces the Lemon Squeezy client built from the config.
func WithProvider(p provider.Provider) Option {
	return func(e *Engine) { e.provider = p }
}

// WithNotifier replaces the notifier built from the config.
func WithNotifier(n notify.Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithHTTPClient sets the client used to fetch files for download.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) { e.httpClient = c }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithClock replaces time.Now for eviction.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine over s.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		cfg:      config.DefaultConfig(),
		store:    s,
		plugins:  plugin.NewRegistry(),
		logger:   slog.Default(),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	ls := e.cfg.LemonSqueezy
	if e.provider == nil {
		e.provider = lemonsqueezy.New(lemonsqueezy.Config{
			APIKey:            ls.APIKey,
			StoreID:           ls.StoreID,
			VariantID:         ls.BundleVariantID,
			BaseURL:           ls.BaseURL,
			Timeout:           ls.Timeout,
			RequestsPerSecond: ls.RequestsPerSecond,
			Burst:             ls.Burst,
		}, lemonsqueezy.WithLogger(e.logger))
	}
	if e.notifier == nil {
		e.notifier = e.defaultNotifier()
	}

	// The catalog serves the static inventory until the store is reachable.
	var src catalog.Source
	if ls.APIKey != "" && ls.StoreID != "" {
		src = e.provider
	}
	e.catalog = catalog.New(src, catalog.WithLogger(e.logger))

	e.checkout = checkout.New(e.provider, e.store,
		checkout.WithRedirectURL(ls.CheckoutRedirectURL),
		checkout.WithPlugins(e.plugins),
		checkout.WithLogger(e.logger),
	)
	e.resolver = resolver.New(e.provider, resolver.WithLogger(e.logger))

	pkgOpts := []delivery.Option{
		delivery.WithDownloadTimeout(e.cfg.Fulfillment.DownloadTimeout),
		delivery.WithLogger(e.logger),
		delivery.WithHooks(delivery.Hooks{
			FileFailed: func(ref string, f asset.FileDescriptor, err error) {
				e.plugins.EmitBundleFileFailed(context.Background(), ref, f.Name, err)
			},
			Packaged: func(ref string, a *delivery.Artifact, elapsed time.Duration) {
				e.plugins.EmitDownloadPackaged(context.Background(), ref, string(a.Kind), a.Files, elapsed)
			},
		}),
	}
	if e.cfg.Fulfillment.ScratchDir != "" {
		pkgOpts = append(pkgOpts, delivery.WithScratchDir(e.cfg.Fulfillment.ScratchDir))
	}
	if e.httpClient != nil {
		pkgOpts = append(pkgOpts, delivery.WithHTTPClient(e.httpClient))
	}
	e.packager = delivery.New(pkgOpts...)

	e.reconciler = reconcile.New(e.store, e.notifier,
		reconcile.WithSecret(ls.WebhookSecret),
		reconcile.WithStrictMatching(e.cfg.Fulfillment.DisableFallbackMatch),
		reconcile.WithPlugins(e.plugins),
		reconcile.WithLogger(e.logger),
	)
	e.tracker = analytics.NewTracker(e.store, analytics.WithLogger(e.logger))

	return e
}

func (e *Engine) defaultNotifier() notify.Notifier {
	em := e.cfg.Email
	if em.SendGridAPIKey == "" {
		return notify.LogNotifier{Logger: e.logger}
	}
	return sendgrid.New(sendgrid.Config{
		APIKey:    em.SendGridAPIKey,
		FromEmail: em.FromEmail,
		FromName:  em.FromName,
		Branding: notify.Branding{
			StoreName:    em.StoreName,
			WebsiteURL:   em.WebsiteURL,
			SupportEmail: em.SupportEmail,
		},
	}, sendgrid.WithLogger(e.logger))
}

// Start migrates the store, initializes plugins and starts the eviction
// worker.
func (e *Engine) Start(ctx context.Context) error {
	if !e.cfg.Store.DisableMigrate {
		if err := e.store.Migrate(ctx); err != nil {
			return err
		}
	}

	for _, w := range e.cfg.Warnings() {
		e.logger.Warn(w)
	}

	e.plugins.EmitInit(ctx, e)

	e.wg.Add(1)
	go e.evictWorker(ctx)

	e.logger.Info("fulfillment engine started",
		"pending_ttl", e.cfg.Fulfillment.PendingTTL,
		"evict_interval", e.cfg.Fulfillment.EvictInterval,
		"strict_matching", e.cfg.Fulfillment.DisableFallbackMatch,
	)
	return nil
}

// Stop shuts down the engine and closes the store. It is safe to call
// more than once.
func (e *Engine) Stop() error {
	var err error
	e.stopOnce.Do(func() {
		close(e.stopChan)
		e.wg.Wait()

		e.plugins.EmitShutdown(context.Background())

		err = e.store.Close()
	})
	return err
}

func (e *Engine) evictWorker(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.Fulfillment.EvictInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.EvictExpired(ctx); err != nil {
				e.logger.Error("fulfillment: eviction failed", "error", err)
			}
		}
	}
}

// Eviction reports what EvictExpired removed.
type Eviction struct {
	Pending   int64
	Processed int64
}

// EvictExpired drops pending orders older than the pending TTL and
// processed-order ids older than the retention window.
func (e *Engine) EvictExpired(ctx context.Context) (Eviction, error) {
	var out Eviction
	now := e.now()

	before := now.Add(-e.cfg.Fulfillment.PendingTTL)
	n, err := e.store.EvictPending(ctx, before)
	if err != nil {
		return out, fmt.Errorf("evict pending: %w", err)
	}
	out.Pending = n
	if n > 0 {
		e.logger.Info("fulfillment: evicted expired pending orders", "count", n, "before", before)
	}
	e.plugins.EmitPendingEvicted(ctx, n, before)

	purged, err := e.store.PurgeProcessed(ctx, now.Add(-e.cfg.Fulfillment.ProcessedRetention))
	if err != nil {
		return out, fmt.Errorf("purge processed: %w", err)
	}
	out.Processed = purged
	return out, nil
}

// ──────────────────────────────────────────────────
// Storefront operations
// ──────────────────────────────────────────────────

// Products returns the storefront catalog.
func (e *Engine) Products(ctx context.Context) []catalog.Product {
	return e.catalog.Products(ctx)
}

// Checkout creates a provider checkout for the cart.
func (e *Engine) Checkout(ctx context.Context, items []order.CartItem) (*checkout.Result, error) {
	return e.checkout.Create(ctx, &checkout.Request{Items: items})
}

// PendingOrder returns the cart recorded for a checkout.
func (e *Engine) PendingOrder(ctx context.Context, checkoutID string) (*order.PendingOrder, error) {
	return e.store.GetPending(ctx, checkoutID)
}

// HandleWebhook authenticates and reconciles one webhook delivery.
func (e *Engine) HandleWebhook(ctx context.Context, body []byte, signature string) (*reconcile.Result, error) {
	return e.reconciler.Handle(ctx, body, signature)
}

// Download resolves ref and packages its files. The caller must Release
// the artifact.
func (e *Engine) Download(ctx context.Context, ref string) (*delivery.Artifact, error) {
	res, err := e.resolver.Resolve(ctx, ref)
	if err != nil {
		e.plugins.EmitDownloadDenied(ctx, ref, err)
		return nil, err
	}
	e.plugins.EmitFilesResolved(ctx, ref, res.Strategy, len(res.Files))

	a, err := e.packager.Package(ctx, ref, res.Files)
	if err != nil {
		e.plugins.EmitDownloadDenied(ctx, ref, err)
		return nil, err
	}
	return a, nil
}

// SyncPurchases lists the items the provider has on record for email.
func (e *Engine) SyncPurchases(ctx context.Context, email string) ([]provider.OrderItem, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, fulfillment.ValidationError{Field: "email", Message: "must not be empty"}
	}
	return e.provider.ListOrderItems(ctx, email)
}

// Files lists every file in the store.
func (e *Engine) Files(ctx context.Context) ([]asset.FileDescriptor, error) {
	return e.provider.ListFiles(ctx, provider.FileFilter{})
}

// Ping checks store connectivity.
func (e *Engine) Ping(ctx context.Context) error {
	return e.store.Ping(ctx)
}

// ──────────────────────────────────────────────────
// Accessors
// ──────────────────────────────────────────────────

// Config returns the effective configuration.
func (e *Engine) Config() config.Config { return e.cfg }

// Store returns the underlying store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger { return e.logger }

// Catalog returns the catalog.
func (e *Engine) Catalog() *catalog.Catalog { return e.catalog }

// Reconciler returns the webhook reconciler.
func (e *Engine) Reconciler() *reconcile.Reconciler { return e.reconciler }

// Tracker returns the analytics tracker.
func (e *Engine) Tracker() *analytics.Tracker { return e.tracker }
