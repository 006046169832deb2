package amqp

import (
	"context"
	"time"

	"github.com/xraph/fulfillment/order"
	"github.com/xraph/fulfillment/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin            = (*Plugin)(nil)
	_ plugin.OnShutdown        = (*Plugin)(nil)
	_ plugin.OnCheckoutCreated = (*Plugin)(nil)
	_ plugin.OnPendingEvicted  = (*Plugin)(nil)
	_ plugin.OnOrderReconciled = (*Plugin)(nil)
	_ plugin.OnOrderDuplicate  = (*Plugin)(nil)
	_ plugin.OnNotifyFailed    = (*Plugin)(nil)
)

// CheckoutCreated is published when a cart is parked for a new checkout.
type CheckoutCreated struct {
	CheckoutID  string           `json:"checkout_id"`
	CartRef     string           `json:"cart_ref"`
	CheckoutURL string           `json:"checkout_url"`
	Items       []order.LineItem `json:"items"`
	CreatedAt   time.Time        `json:"created_at"`
}

// PendingEvicted is published after abandoned carts were dropped.
type PendingEvicted struct {
	Count  int64     `json:"count"`
	Before time.Time `json:"before"`
}

// OrderReconciled is published once per provider order.
type OrderReconciled struct {
	OrderID       string           `json:"order_id"`
	MatchedBy     order.MatchedBy  `json:"matched_by"`
	PendingKey    string           `json:"pending_key,omitempty"`
	CustomerEmail string           `json:"customer_email,omitempty"`
	Total         string           `json:"total"`
	Items         []order.LineItem `json:"items"`
	TestMode      bool             `json:"test_mode"`
	ProcessedAt   time.Time        `json:"processed_at"`
}

// OrderEvent is published for duplicates and notification failures.
type OrderEvent struct {
	OrderID string `json:"order_id"`
	Error   string `json:"error,omitempty"`
}

// Plugin forwards lifecycle hooks to a Publisher.
type Plugin struct {
	pub Publisher
}

// NewPlugin creates a Plugin publishing through pub.
func NewPlugin(pub Publisher) *Plugin {
	return &Plugin{pub: pub}
}

// Name implements plugin.Plugin.
func (p *Plugin) Name() string { return "events-amqp" }

// OnShutdown implements plugin.OnShutdown.
func (p *Plugin) OnShutdown(_ context.Context) error {
	return p.pub.Close()
}

// OnCheckoutCreated implements plugin.OnCheckoutCreated.
func (p *Plugin) OnCheckoutCreated(ctx context.Context, pending *order.PendingOrder, checkoutURL string) error {
	return p.pub.Publish(ctx, RoutingCheckoutCreated, CheckoutCreated{
		CheckoutID:  pending.Key,
		CartRef:     pending.CartRef.String(),
		CheckoutURL: checkoutURL,
		Items:       pending.Items,
		CreatedAt:   pending.CreatedAt,
	})
}

// OnPendingEvicted implements plugin.OnPendingEvicted.
func (p *Plugin) OnPendingEvicted(ctx context.Context, count int64, before time.Time) error {
	if count == 0 {
		return nil
	}
	return p.pub.Publish(ctx, RoutingPendingEvicted, PendingEvicted{Count: count, Before: before})
}

// OnOrderReconciled implements plugin.OnOrderReconciled.
func (p *Plugin) OnOrderReconciled(ctx context.Context, rec *order.ProcessedOrder, items []order.LineItem, event *order.WebhookEvent) error {
	return p.pub.Publish(ctx, RoutingOrderReconciled, OrderReconciled{
		OrderID:       rec.OrderID,
		MatchedBy:     rec.MatchedBy,
		PendingKey:    rec.PendingKey,
		CustomerEmail: event.CustomerEmail,
		Total:         event.TotalFormatted,
		Items:         items,
		TestMode:      event.TestMode,
		ProcessedAt:   rec.ProcessedAt,
	})
}

// OnOrderDuplicate implements plugin.OnOrderDuplicate.
func (p *Plugin) OnOrderDuplicate(ctx context.Context, orderID string) error {
	return p.pub.Publish(ctx, RoutingOrderDuplicate, OrderEvent{OrderID: orderID})
}

// OnNotifyFailed implements plugin.OnNotifyFailed.
func (p *Plugin) OnNotifyFailed(ctx context.Context, orderID string, err error) error {
	return p.pub.Publish(ctx, RoutingNotifyFailed, OrderEvent{OrderID: orderID, Error: err.Error()})
}
