// Package reconcile turns payment webhooks into fulfilled orders. A webhook
// shares no guaranteed key with the checkout that preceded it, so the
// reconciler tries an ordered cascade of matchers against the pending-order
// ledger, falls back to a synthesized line item, and notifies the buyer.
// Each provider order is processed at most once, so redelivered webhooks
// are acknowledged without a second notification.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xraph/fulfillment"
	"github.com/xraph/fulfillment/notify"
	"github.com/xraph/fulfillment/order"
	"github.com/xraph/fulfillment/plugin"
	"github.com/xraph/fulfillment/provider/lemonsqueezy"
	"github.com/xraph/fulfillment/types"
)

// Store is the ledger surface the reconciler needs.
type Store interface {
	order.PendingStore
	order.ProcessedStore
}

// Parser decodes a raw webhook body.
type Parser func(body []byte) (*order.WebhookEvent, error)

// Outcome is the terminal state of one webhook delivery.
type Outcome string

const (
	OutcomeReconciled Outcome = "reconciled"
	OutcomeDuplicate  Outcome = "duplicate"
	OutcomeIgnored    Outcome = "ignored"
)

// Result describes what a delivery did.
type Result struct {
	Outcome Outcome
	Event   *order.WebhookEvent
	Record  *order.ProcessedOrder
	Items   []order.LineItem
}

// Reconciler processes webhook deliveries.
type Reconciler struct {
	store    Store
	notifier notify.Notifier
	secret   string
	parse    Parser
	provider string
	matchers []Matcher
	strict   bool
	plugins  *plugin.Registry
	logger   *slog.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithSecret sets the webhook signing secret. Without one, signatures are
// not checked.
func WithSecret(secret string) Option {
	return func(r *Reconciler) { r.secret = secret }
}

// WithParser replaces the Lemon Squeezy payload parser.
func WithParser(name string, p Parser) Option {
	return func(r *Reconciler) {
		r.provider = name
		r.parse = p
	}
}

// WithStrictMatching disables the oldest-pending fallback.
func WithStrictMatching(strict bool) Option {
	return func(r *Reconciler) { r.strict = strict }
}

// WithMatchers replaces the match cascade.
func WithMatchers(m ...Matcher) Option {
	return func(r *Reconciler) { r.matchers = m }
}

// WithPlugins sets the plugin registry.
func WithPlugins(reg *plugin.Registry) Option {
	return func(r *Reconciler) { r.plugins = reg }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) { r.logger = logger }
}

// New creates a Reconciler.
func New(store Store, n notify.Notifier, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:    store,
		notifier: n,
		parse:    lemonsqueezy.ParseWebhook,
		provider: lemonsqueezy.ProviderName,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.matchers == nil {
		r.matchers = DefaultMatchers(r.strict)
	}
	if r.plugins == nil {
		r.plugins = plugin.NewRegistry().WithLogger(r.logger)
	}
	if r.notifier == nil {
		r.notifier = notify.LogNotifier{Logger: r.logger}
	}
	return r
}

// VerifiesSignatures reports whether a signing secret is configured.
func (r *Reconciler) VerifiesSignatures() bool { return r.secret != "" }

// Handle authenticates, parses and reconciles one webhook delivery.
func (r *Reconciler) Handle(ctx context.Context, body []byte, signature string) (*Result, error) {
	if r.secret != "" {
		if err := VerifySignature(r.secret, body, signature); err != nil {
			r.logger.Warn("reconcile: webhook signature rejected")
			return nil, err
		}
	}

	e, err := r.parse(body)
	if err != nil {
		return nil, err
	}
	r.plugins.EmitWebhookReceived(ctx, r.provider, e)

	if e.EventName != order.EventOrderCreated {
		r.logger.Info("reconcile: event ignored", "event", e.EventName, "order_id", e.OrderID)
		return &Result{Outcome: OutcomeIgnored, Event: e}, nil
	}
	return r.Reconcile(ctx, e)
}

// Reconcile processes an order_created event.
func (r *Reconciler) Reconcile(ctx context.Context, e *order.WebhookEvent) (*Result, error) {
	if e.OrderID == "" {
		return nil, fulfillment.ValidationError{Field: "data.id", Message: "order id is required"}
	}

	rec := order.NewProcessedOrder(e.OrderID, e.EventName)
	claimed, err := r.store.ClaimOrder(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("reconcile: claim order %s: %w", e.OrderID, err)
	}
	if !claimed {
		r.logger.Info("reconcile: duplicate delivery ignored", "order_id", e.OrderID)
		r.plugins.EmitOrderDuplicate(ctx, e.OrderID)
		return &Result{Outcome: OutcomeDuplicate, Event: e}, nil
	}

	pending, matchedBy, err := r.match(ctx, e)
	if err != nil {
		r.release(ctx, e.OrderID, nil)
		return nil, fmt.Errorf("reconcile: match order %s: %w", e.OrderID, err)
	}

	var items []order.LineItem
	if pending != nil {
		items = pending.Items
		rec.PendingKey = pending.Key
	} else {
		items = synthesize(e)
		matchedBy = order.MatchedBySynthesized
		r.logger.Warn("reconcile: no pending cart matched, synthesized item",
			"order_id", e.OrderID,
			"identifier", e.OrderIdentifier,
		)
	}
	rec.MatchedBy = matchedBy
	rec.ItemCount = len(items)

	if err := r.notify(ctx, e, items); err != nil {
		r.release(ctx, e.OrderID, pending)
		r.plugins.EmitNotifyFailed(ctx, e.OrderID, err)
		return nil, err
	}

	if err := r.store.UpdateProcessed(ctx, rec); err != nil {
		// The buyer was notified; the claim still blocks redelivery.
		r.logger.Error("reconcile: record outcome", "order_id", e.OrderID, "error", err)
	}

	r.logger.Info("reconcile: order reconciled",
		"order_id", e.OrderID,
		"matched_by", matchedBy,
		"pending_key", rec.PendingKey,
		"items", len(items),
	)
	r.plugins.EmitOrderReconciled(ctx, rec, items, e)

	return &Result{Outcome: OutcomeReconciled, Event: e, Record: rec, Items: items}, nil
}

func (r *Reconciler) match(ctx context.Context, e *order.WebhookEvent) (*order.PendingOrder, order.MatchedBy, error) {
	for _, m := range r.matchers {
		p, err := m.Match(ctx, r.store, e)
		if err != nil {
			return nil, "", err
		}
		if p != nil {
			if m.Name == order.MatchedByOldestPending {
				r.logger.Warn("reconcile: matched by oldest pending cart",
					"order_id", e.OrderID,
					"pending_key", p.Key,
				)
			}
			return p, m.Name, nil
		}
		r.logger.Debug("reconcile: matcher found nothing", "matcher", m.Name, "order_id", e.OrderID)
	}
	return nil, "", nil
}

func (r *Reconciler) notify(ctx context.Context, e *order.WebhookEvent, items []order.LineItem) error {
	if e.CustomerEmail == "" {
		r.logger.Warn("reconcile: order has no customer email, confirmation skipped", "order_id", e.OrderID)
		return nil
	}

	orderRef := e.OrderNumber
	if orderRef == "" {
		orderRef = e.OrderID
	}
	err := r.notifier.Notify(ctx, &notify.Message{
		To:           e.CustomerEmail,
		CustomerName: e.CustomerName,
		OrderID:      orderRef,
		Items:        items,
		Total:        e.TotalFormatted,
		DownloadURL:  e.ReceiptURL,
		Date:         e.ReceivedAt,
		TestMode:     e.TestMode,
	})
	if err != nil && !errors.Is(err, fulfillment.ErrNotify) {
		err = fmt.Errorf("%w: %w", fulfillment.ErrNotify, err)
	}
	return err
}

// release undoes a claim and returns the taken cart to the ledger so the
// provider's retry can reconcile the order from scratch.
func (r *Reconciler) release(ctx context.Context, orderID string, pending *order.PendingOrder) {
	if pending != nil {
		if err := r.store.PutPending(ctx, pending); err != nil {
			r.logger.Error("reconcile: restore pending cart", "order_id", orderID, "pending_key", pending.Key, "error", err)
		}
	}
	if err := r.store.ReleaseOrder(ctx, orderID); err != nil {
		r.logger.Error("reconcile: release claim", "order_id", orderID, "error", err)
	}
}

// synthesize builds a single line from the event when no cart matched.
func synthesize(e *order.WebhookEvent) []order.LineItem {
	title := e.ProductName
	if title == "" {
		title = "Your order"
	}
	price := e.TotalFormatted
	if price == "" {
		price = types.USD(0).String()
	}
	return []order.LineItem{{ID: e.OrderID, Title: title, Price: price}}
}
