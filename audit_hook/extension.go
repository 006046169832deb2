// Package audithook turns fulfillment lifecycle events into audit records.
//
// It defines a local Recorder interface so the package carries no
// dependency on a particular audit backend. Callers inject a RecorderFunc
// adapter at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/fulfillment/order"
	"github.com/xraph/fulfillment/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin             = (*Extension)(nil)
	_ plugin.OnCheckoutCreated  = (*Extension)(nil)
	_ plugin.OnPendingEvicted   = (*Extension)(nil)
	_ plugin.OnWebhookReceived  = (*Extension)(nil)
	_ plugin.OnOrderReconciled  = (*Extension)(nil)
	_ plugin.OnOrderDuplicate   = (*Extension)(nil)
	_ plugin.OnNotifyFailed     = (*Extension)(nil)
	_ plugin.OnDownloadDenied   = (*Extension)(nil)
	_ plugin.OnBundleFileFailed = (*Extension)(nil)
	_ plugin.OnDownloadPackaged = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one audit trail entry.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension records fulfillment lifecycle events in an audit trail.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Checkout and ledger hooks
// ──────────────────────────────────────────────────

// OnCheckoutCreated implements plugin.OnCheckoutCreated.
func (e *Extension) OnCheckoutCreated(ctx context.Context, pending *order.PendingOrder, checkoutURL string) error {
	return e.record(ctx, ActionCheckoutCreated, SeverityInfo, OutcomeSuccess,
		ResourceCheckout, pending.Key, CategoryCheckout, nil,
		"cart_ref", pending.CartRef.String(),
		"items", len(pending.Items),
		"checkout_url", checkoutURL,
	)
}

// OnPendingEvicted implements plugin.OnPendingEvicted.
func (e *Extension) OnPendingEvicted(ctx context.Context, count int64, before time.Time) error {
	return e.record(ctx, ActionPendingEvicted, SeverityInfo, OutcomeSuccess,
		ResourceLedger, "", CategoryMaintenance, nil,
		"count", count,
		"before", before.Format(time.RFC3339),
	)
}

// ──────────────────────────────────────────────────
// Webhook and order hooks
// ──────────────────────────────────────────────────

// OnWebhookReceived implements plugin.OnWebhookReceived.
func (e *Extension) OnWebhookReceived(ctx context.Context, provider string, event *order.WebhookEvent) error {
	return e.record(ctx, ActionWebhookReceived, SeverityInfo, OutcomeSuccess,
		ResourceWebhook, event.DeliveryID.String(), CategoryIntegration, nil,
		"provider", provider,
		"event", event.EventName,
		"order_id", event.OrderID,
		"test_mode", event.TestMode,
	)
}

// OnOrderReconciled implements plugin.OnOrderReconciled.
func (e *Extension) OnOrderReconciled(ctx context.Context, rec *order.ProcessedOrder, items []order.LineItem, event *order.WebhookEvent) error {
	severity, outcome := SeverityInfo, OutcomeSuccess
	if rec.MatchedBy == order.MatchedByOldestPending || rec.MatchedBy == order.MatchedBySynthesized {
		severity, outcome = SeverityWarning, OutcomePartial
	}
	return e.record(ctx, ActionOrderReconciled, severity, outcome,
		ResourceOrder, rec.OrderID, CategoryFulfillment, nil,
		"matched_by", string(rec.MatchedBy),
		"pending_key", rec.PendingKey,
		"items", len(items),
		"total", event.TotalFormatted,
	)
}

// OnOrderDuplicate implements plugin.OnOrderDuplicate.
func (e *Extension) OnOrderDuplicate(ctx context.Context, orderID string) error {
	return e.record(ctx, ActionOrderDuplicate, SeverityInfo, OutcomeSuccess,
		ResourceOrder, orderID, CategoryIntegration, nil,
	)
}

// OnNotifyFailed implements plugin.OnNotifyFailed.
func (e *Extension) OnNotifyFailed(ctx context.Context, orderID string, err error) error {
	return e.record(ctx, ActionNotifyFailed, SeverityError, OutcomeFailure,
		ResourceOrder, orderID, CategoryFulfillment, err,
	)
}

// ──────────────────────────────────────────────────
// Download hooks
// ──────────────────────────────────────────────────

// OnDownloadDenied implements plugin.OnDownloadDenied.
func (e *Extension) OnDownloadDenied(ctx context.Context, ref string, err error) error {
	return e.record(ctx, ActionDownloadDenied, SeverityWarning, OutcomeFailure,
		ResourceDownload, ref, CategoryAccess, err,
	)
}

// OnBundleFileFailed implements plugin.OnBundleFileFailed.
func (e *Extension) OnBundleFileFailed(ctx context.Context, ref, fileName string, err error) error {
	return e.record(ctx, ActionBundleFileFailed, SeverityWarning, OutcomePartial,
		ResourceDownload, ref, CategoryFulfillment, err,
		"file", fileName,
	)
}

// OnDownloadPackaged implements plugin.OnDownloadPackaged.
func (e *Extension) OnDownloadPackaged(ctx context.Context, ref, kind string, files int, elapsed time.Duration) error {
	return e.record(ctx, ActionDownloadPackaged, SeverityInfo, OutcomeSuccess,
		ResourceDownload, ref, CategoryAccess, nil,
		"kind", kind,
		"files", files,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
