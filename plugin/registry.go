package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/fulfillment/order"
)

// DefaultHookTimeout bounds a single plugin call.
const DefaultHookTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// Hook implementations are cached per interface at registration.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit             []OnInit
	onShutdown         []OnShutdown
	onCheckoutCreated  []OnCheckoutCreated
	onPendingEvicted   []OnPendingEvicted
	onWebhookReceived  []OnWebhookReceived
	onOrderReconciled  []OnOrderReconciled
	onOrderDuplicate   []OnOrderDuplicate
	onNotifyFailed     []OnNotifyFailed
	onFilesResolved    []OnFilesResolved
	onDownloadDenied   []OnDownloadDenied
	onBundleFileFailed []OnBundleFileFailed
	onDownloadPackaged []OnDownloadPackaged
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultHookTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-call hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	r.timeout = d
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnCheckoutCreated); ok {
		r.onCheckoutCreated = append(r.onCheckoutCreated, v)
	}
	if v, ok := p.(OnPendingEvicted); ok {
		r.onPendingEvicted = append(r.onPendingEvicted, v)
	}
	if v, ok := p.(OnWebhookReceived); ok {
		r.onWebhookReceived = append(r.onWebhookReceived, v)
	}
	if v, ok := p.(OnOrderReconciled); ok {
		r.onOrderReconciled = append(r.onOrderReconciled, v)
	}
	if v, ok := p.(OnOrderDuplicate); ok {
		r.onOrderDuplicate = append(r.onOrderDuplicate, v)
	}
	if v, ok := p.(OnNotifyFailed); ok {
		r.onNotifyFailed = append(r.onNotifyFailed, v)
	}
	if v, ok := p.(OnFilesResolved); ok {
		r.onFilesResolved = append(r.onFilesResolved, v)
	}
	if v, ok := p.(OnDownloadDenied); ok {
		r.onDownloadDenied = append(r.onDownloadDenied, v)
	}
	if v, ok := p.(OnBundleFileFailed); ok {
		r.onBundleFileFailed = append(r.onBundleFileFailed, v)
	}
	if v, ok := p.(OnDownloadPackaged); ok {
		r.onDownloadPackaged = append(r.onDownloadPackaged, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	typ  reflect.Type
	name string
}{
	{reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit"},
	{reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown"},
	{reflect.TypeOf((*OnCheckoutCreated)(nil)).Elem(), "OnCheckoutCreated"},
	{reflect.TypeOf((*OnPendingEvicted)(nil)).Elem(), "OnPendingEvicted"},
	{reflect.TypeOf((*OnWebhookReceived)(nil)).Elem(), "OnWebhookReceived"},
	{reflect.TypeOf((*OnOrderReconciled)(nil)).Elem(), "OnOrderReconciled"},
	{reflect.TypeOf((*OnOrderDuplicate)(nil)).Elem(), "OnOrderDuplicate"},
	{reflect.TypeOf((*OnNotifyFailed)(nil)).Elem(), "OnNotifyFailed"},
	{reflect.TypeOf((*OnFilesResolved)(nil)).Elem(), "OnFilesResolved"},
	{reflect.TypeOf((*OnDownloadDenied)(nil)).Elem(), "OnDownloadDenied"},
	{reflect.TypeOf((*OnBundleFileFailed)(nil)).Elem(), "OnBundleFileFailed"},
	{reflect.TypeOf((*OnDownloadPackaged)(nil)).Elem(), "OnDownloadPackaged"},
}

// implementedInterfaces returns the hook interfaces implemented by p.
func implementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if v.Implements(h.typ) {
			interfaces = append(interfaces, h.name)
		}
	}
	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// emit runs call for every plugin in hooks. Failures are logged and never
// propagate to the caller.
func emit[T Plugin](ctx context.Context, r *Registry, hook string, hooks []T, call func(T) error) {
	for _, p := range hooks {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return call(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

func snapshot[T any](r *Registry, hooks *[]T) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return *hooks
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine any) {
	emit(ctx, r, "OnInit", snapshot(r, &r.onInit), func(p OnInit) error {
		return p.OnInit(ctx, engine)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(ctx, r, "OnShutdown", snapshot(r, &r.onShutdown), func(p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

// EmitCheckoutCreated emits a checkout created event.
func (r *Registry) EmitCheckoutCreated(ctx context.Context, pending *order.PendingOrder, checkoutURL string) {
	emit(ctx, r, "OnCheckoutCreated", snapshot(r, &r.onCheckoutCreated), func(p OnCheckoutCreated) error {
		return p.OnCheckoutCreated(ctx, pending, checkoutURL)
	})
}

// EmitPendingEvicted emits a pending eviction event.
func (r *Registry) EmitPendingEvicted(ctx context.Context, count int64, before time.Time) {
	emit(ctx, r, "OnPendingEvicted", snapshot(r, &r.onPendingEvicted), func(p OnPendingEvicted) error {
		return p.OnPendingEvicted(ctx, count, before)
	})
}

// EmitWebhookReceived emits a webhook received event.
func (r *Registry) EmitWebhookReceived(ctx context.Context, provider string, event *order.WebhookEvent) {
	emit(ctx, r, "OnWebhookReceived", snapshot(r, &r.onWebhookReceived), func(p OnWebhookReceived) error {
		return p.OnWebhookReceived(ctx, provider, event)
	})
}

// EmitOrderReconciled emits an order reconciled event.
func (r *Registry) EmitOrderReconciled(ctx context.Context, rec *order.ProcessedOrder, items []order.LineItem, event *order.WebhookEvent) {
	emit(ctx, r, "OnOrderReconciled", snapshot(r, &r.onOrderReconciled), func(p OnOrderReconciled) error {
		return p.OnOrderReconciled(ctx, rec, items, event)
	})
}

// EmitOrderDuplicate emits a duplicate delivery event.
func (r *Registry) EmitOrderDuplicate(ctx context.Context, orderID string) {
	emit(ctx, r, "OnOrderDuplicate", snapshot(r, &r.onOrderDuplicate), func(p OnOrderDuplicate) error {
		return p.OnOrderDuplicate(ctx, orderID)
	})
}

// EmitNotifyFailed emits a notification failure event.
func (r *Registry) EmitNotifyFailed(ctx context.Context, orderID string, err error) {
	emit(ctx, r, "OnNotifyFailed", snapshot(r, &r.onNotifyFailed), func(p OnNotifyFailed) error {
		return p.OnNotifyFailed(ctx, orderID, err)
	})
}

// EmitFilesResolved emits a files resolved event.
func (r *Registry) EmitFilesResolved(ctx context.Context, ref, strategy string, count int) {
	emit(ctx, r, "OnFilesResolved", snapshot(r, &r.onFilesResolved), func(p OnFilesResolved) error {
		return p.OnFilesResolved(ctx, ref, strategy, count)
	})
}

// EmitDownloadDenied emits a download denied event.
func (r *Registry) EmitDownloadDenied(ctx context.Context, ref string, err error) {
	emit(ctx, r, "OnDownloadDenied", snapshot(r, &r.onDownloadDenied), func(p OnDownloadDenied) error {
		return p.OnDownloadDenied(ctx, ref, err)
	})
}

// EmitBundleFileFailed emits a skipped bundle file event.
func (r *Registry) EmitBundleFileFailed(ctx context.Context, ref, fileName string, err error) {
	emit(ctx, r, "OnBundleFileFailed", snapshot(r, &r.onBundleFileFailed), func(p OnBundleFileFailed) error {
		return p.OnBundleFileFailed(ctx, ref, fileName, err)
	})
}

// EmitDownloadPackaged emits a download packaged event.
func (r *Registry) EmitDownloadPackaged(ctx context.Context, ref, kind string, files int, elapsed time.Duration) {
	emit(ctx, r, "OnDownloadPackaged", snapshot(r, &r.onDownloadPackaged), func(p OnDownloadPackaged) error {
		return p.OnDownloadPackaged(ctx, ref, kind, files, elapsed)
	})
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the fulfillment pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
