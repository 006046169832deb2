// Package plugin provides an extensible plugin system for the fulfillment
// engine. Plugins implement any subset of the hook interfaces below and are
// discovered by type assertion at registration.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/fulfillment/order"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine any) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Checkout and ledger hooks
// ──────────────────────────────────────────────────

// OnCheckoutCreated is called after a checkout was created and its cart
// parked in the pending-order ledger.
type OnCheckoutCreated interface {
	Plugin
	OnCheckoutCreated(ctx context.Context, pending *order.PendingOrder, checkoutURL string) error
}

// OnPendingEvicted is called after abandoned carts were evicted.
type OnPendingEvicted interface {
	Plugin
	OnPendingEvicted(ctx context.Context, count int64, before time.Time) error
}

// ──────────────────────────────────────────────────
// Webhook and reconciliation hooks
// ──────────────────────────────────────────────────

// OnWebhookReceived is called for every authenticated webhook delivery.
type OnWebhookReceived interface {
	Plugin
	OnWebhookReceived(ctx context.Context, provider string, event *order.WebhookEvent) error
}

// OnOrderReconciled is called once per provider order after the buyer was
// notified.
type OnOrderReconciled interface {
	Plugin
	OnOrderReconciled(ctx context.Context, rec *order.ProcessedOrder, items []order.LineItem, event *order.WebhookEvent) error
}

// OnOrderDuplicate is called when a redelivered webhook is dropped.
type OnOrderDuplicate interface {
	Plugin
	OnOrderDuplicate(ctx context.Context, orderID string) error
}

// OnNotifyFailed is called when the buyer could not be notified.
type OnNotifyFailed interface {
	Plugin
	OnNotifyFailed(ctx context.Context, orderID string, err error) error
}

// ──────────────────────────────────────────────────
// Download hooks
// ──────────────────────────────────────────────────

// OnFilesResolved is called when a download reference resolved to files.
type OnFilesResolved interface {
	Plugin
	OnFilesResolved(ctx context.Context, ref, strategy string, count int) error
}

// OnDownloadDenied is called when a download is refused (not found, test
// mode, upstream failure).
type OnDownloadDenied interface {
	Plugin
	OnDownloadDenied(ctx context.Context, ref string, err error) error
}

// OnBundleFileFailed is called for each file left out of a bundle.
type OnBundleFileFailed interface {
	Plugin
	OnBundleFileFailed(ctx context.Context, ref, fileName string, err error) error
}

// OnDownloadPackaged is called when an artifact is ready to be served.
type OnDownloadPackaged interface {
	Plugin
	OnDownloadPackaged(ctx context.Context, ref, kind string, files int, elapsed time.Duration) error
}
