// Package observability provides a metrics extension for the fulfillment
// engine that records lifecycle event counts via a MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/fulfillment/delivery"
	"github.com/xraph/fulfillment/order"
	"github.com/xraph/fulfillment/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin             = (*MetricsExtension)(nil)
	_ plugin.OnInit             = (*MetricsExtension)(nil)
	_ plugin.OnCheckoutCreated  = (*MetricsExtension)(nil)
	_ plugin.OnPendingEvicted   = (*MetricsExtension)(nil)
	_ plugin.OnWebhookReceived  = (*MetricsExtension)(nil)
	_ plugin.OnOrderReconciled  = (*MetricsExtension)(nil)
	_ plugin.OnOrderDuplicate   = (*MetricsExtension)(nil)
	_ plugin.OnNotifyFailed     = (*MetricsExtension)(nil)
	_ plugin.OnFilesResolved    = (*MetricsExtension)(nil)
	_ plugin.OnDownloadDenied   = (*MetricsExtension)(nil)
	_ plugin.OnBundleFileFailed = (*MetricsExtension)(nil)
	_ plugin.OnDownloadPackaged = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide fulfillment metrics.
// Register it as a plugin to track checkouts, webhooks and downloads.
type MetricsExtension struct {
	factory MetricFactory

	// Checkout metrics
	CheckoutCreated Counter
	CheckoutItems   Histogram
	PendingEvicted  Counter

	// Webhook metrics
	WebhookReceived Counter
	WebhookTestMode Counter
	OrderReconciled Counter
	OrderDuplicate  Counter
	NotifyFailed    Counter
	OrderItems      Histogram
	matchedBy       map[order.MatchedBy]Counter

	// Download metrics
	FilesResolved    Counter
	DownloadDenied   Counter
	BundleFileFailed Counter
	DownloadStreamed Counter
	DownloadBundled  Counter
	DownloadFiles    Histogram
	DownloadLatency  Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use NewPrometheusFactory standalone or app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	m := &MetricsExtension{
		factory: factory,

		// Checkout metrics
		CheckoutCreated: factory.Counter("fulfillment.checkout.created"),
		CheckoutItems:   factory.Histogram("fulfillment.checkout.items"),
		PendingEvicted:  factory.Counter("fulfillment.pending.evicted"),

		// Webhook metrics
		WebhookReceived: factory.Counter("fulfillment.webhook.received"),
		WebhookTestMode: factory.Counter("fulfillment.webhook.test_mode"),
		OrderReconciled: factory.Counter("fulfillment.order.reconciled"),
		OrderDuplicate:  factory.Counter("fulfillment.order.duplicate"),
		NotifyFailed:    factory.Counter("fulfillment.order.notify_failed"),
		OrderItems:      factory.Histogram("fulfillment.order.items"),

		// Download metrics
		FilesResolved:    factory.Counter("fulfillment.download.resolved"),
		DownloadDenied:   factory.Counter("fulfillment.download.denied"),
		BundleFileFailed: factory.Counter("fulfillment.download.file_failed"),
		DownloadStreamed: factory.Counter("fulfillment.download.streamed"),
		DownloadBundled:  factory.Counter("fulfillment.download.bundled"),
		DownloadFiles:    factory.Histogram("fulfillment.download.files"),
		DownloadLatency:  factory.Histogram("fulfillment.download.latency_ms"),
	}

	m.matchedBy = make(map[order.MatchedBy]Counter)
	for _, by := range []order.MatchedBy{
		order.MatchedByCartRef,
		order.MatchedByOrderIdentifier,
		order.MatchedByOrderID,
		order.MatchedByOldestPending,
		order.MatchedBySynthesized,
	} {
		m.matchedBy[by] = factory.Counter("fulfillment.order.matched_by." + string(by))
	}
	return m
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

// MatchedBy returns the counter of orders reconciled by strategy by.
func (m *MetricsExtension) MatchedBy(by order.MatchedBy) Counter {
	return m.matchedBy[by]
}

// ──────────────────────────────────────────────────
// Checkout hooks
// ──────────────────────────────────────────────────

// OnCheckoutCreated implements plugin.OnCheckoutCreated.
func (m *MetricsExtension) OnCheckoutCreated(_ context.Context, pending *order.PendingOrder, _ string) error {
	m.CheckoutCreated.Inc()
	m.CheckoutItems.Observe(float64(len(pending.Items)))
	return nil
}

// OnPendingEvicted implements plugin.OnPendingEvicted.
func (m *MetricsExtension) OnPendingEvicted(_ context.Context, count int64, _ time.Time) error {
	m.PendingEvicted.Add(float64(count))
	return nil
}

// ──────────────────────────────────────────────────
// Webhook hooks
// ──────────────────────────────────────────────────

// OnWebhookReceived implements plugin.OnWebhookReceived.
func (m *MetricsExtension) OnWebhookReceived(_ context.Context, _ string, event *order.WebhookEvent) error {
	m.WebhookReceived.Inc()
	if event.TestMode {
		m.WebhookTestMode.Inc()
	}
	return nil
}

// OnOrderReconciled implements plugin.OnOrderReconciled.
func (m *MetricsExtension) OnOrderReconciled(_ context.Context, rec *order.ProcessedOrder, items []order.LineItem, _ *order.WebhookEvent) error {
	m.OrderReconciled.Inc()
	m.OrderItems.Observe(float64(len(items)))
	if c, ok := m.matchedBy[rec.MatchedBy]; ok {
		c.Inc()
	}
	return nil
}

// OnOrderDuplicate implements plugin.OnOrderDuplicate.
func (m *MetricsExtension) OnOrderDuplicate(_ context.Context, _ string) error {
	m.OrderDuplicate.Inc()
	return nil
}

// OnNotifyFailed implements plugin.OnNotifyFailed.
func (m *MetricsExtension) OnNotifyFailed(_ context.Context, _ string, _ error) error {
	m.NotifyFailed.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Download hooks
// ──────────────────────────────────────────────────

// OnFilesResolved implements plugin.OnFilesResolved.
func (m *MetricsExtension) OnFilesResolved(_ context.Context, _, _ string, _ int) error {
	m.FilesResolved.Inc()
	return nil
}

// OnDownloadDenied implements plugin.OnDownloadDenied.
func (m *MetricsExtension) OnDownloadDenied(_ context.Context, _ string, _ error) error {
	m.DownloadDenied.Inc()
	return nil
}

// OnBundleFileFailed implements plugin.OnBundleFileFailed.
func (m *MetricsExtension) OnBundleFileFailed(_ context.Context, _, _ string, _ error) error {
	m.BundleFileFailed.Inc()
	return nil
}

// OnDownloadPackaged implements plugin.OnDownloadPackaged.
func (m *MetricsExtension) OnDownloadPackaged(_ context.Context, _, kind string, files int, elapsed time.Duration) error {
	if kind == string(delivery.KindBundle) {
		m.DownloadBundled.Inc()
	} else {
		m.DownloadStreamed.Inc()
	}
	m.DownloadFiles.Observe(float64(files))
	m.DownloadLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}
