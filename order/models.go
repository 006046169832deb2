// Package order defines the records that flow from checkout to webhook
// reconciliation: cart line items, pending orders, normalized webhook events
// and processed-order idempotency records.
package order

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/fulfillment/id"
	"github.com/xraph/fulfillment/types"
)

// LineItem is one purchased entry as shown to the buyer.
type LineItem struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Price string `json:"price"` // display string, e.g. "$10.00"
}

// CartItem is a line item as submitted by the storefront at checkout time.
// PriceValue is the major-unit amount used for the charged total.
type CartItem struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Price      string  `json:"price"`
	PriceValue float64 `json:"priceValue"`
	Image      string  `json:"image,omitempty"`
}

// LineItem strips the checkout-only fields.
func (c CartItem) LineItem() LineItem {
	return LineItem{ID: c.ID, Title: c.Title, Price: c.Price}
}

// Major returns PriceValue as an exact decimal in major units.
func (c CartItem) Major() decimal.Decimal {
	return decimal.NewFromFloat(c.PriceValue)
}

// PendingOrder is the cart contents recorded when a checkout is created,
// keyed by the provider-assigned checkout id. It is consumed at most once.
type PendingOrder struct {
	Key     string     `json:"key"`
	CartRef id.CartRef `json:"cart_ref"`
	Items   []LineItem `json:"items"`
	types.Entity
}

// NewPendingOrder builds a PendingOrder stamped with the current time.
func NewPendingOrder(key string, ref id.CartRef, items []LineItem) *PendingOrder {
	return &PendingOrder{
		Key:     key,
		CartRef: ref,
		Items:   items,
		Entity:  types.NewEntity(),
	}
}

// Event names delivered by the provider.
const (
	EventOrderCreated  = "order_created"
	EventOrderRefunded = "order_refunded"
)

// WebhookEvent is a provider notification normalized to the fields the
// reconciler reads.
type WebhookEvent struct {
	DeliveryID      id.DeliveryID     `json:"delivery_id"`
	EventName       string            `json:"event_name"`
	OrderID         string            `json:"order_id"`
	OrderIdentifier string            `json:"order_identifier"`
	OrderNumber     string            `json:"order_number,omitempty"`
	CustomerEmail   string            `json:"customer_email"`
	CustomerName    string            `json:"customer_name"`
	TotalFormatted  string            `json:"total_formatted"`
	ProductName     string            `json:"product_name"`
	ItemCountHint   int               `json:"item_count_hint,omitempty"`
	ReceiptURL      string            `json:"receipt_url,omitempty"`
	CustomData      map[string]string `json:"custom_data,omitempty"`
	TestMode        bool              `json:"test_mode"`
	ReceivedAt      time.Time         `json:"received_at"`
}

// CartRef returns the cart reference sent through checkout custom data.
func (e *WebhookEvent) CartRef() string {
	if e.CustomData == nil {
		return ""
	}
	return e.CustomData[CustomDataCartRef]
}

// Custom data keys written at checkout and read back from webhooks.
const (
	CustomDataCartRef   = "cart_ref"
	CustomDataItemCount = "item_count"
	CustomDataItems     = "items"
)

// MatchedBy names the reconciliation strategy that produced an order's items.
type MatchedBy string

const (
	MatchedByCartRef         MatchedBy = "cart_ref"
	MatchedByOrderIdentifier MatchedBy = "order_identifier"
	MatchedByOrderID         MatchedBy = "order_id"
	MatchedByOldestPending   MatchedBy = "oldest_pending"
	MatchedBySynthesized     MatchedBy = "synthesized"
)

// ProcessedOrder records that a provider order id has been reconciled, so
// redelivered webhooks become no-ops.
type ProcessedOrder struct {
	ID          id.ProcessedID `json:"id"`
	OrderID     string         `json:"order_id"`
	EventName   string         `json:"event_name"`
	MatchedBy   MatchedBy      `json:"matched_by,omitempty"`
	PendingKey  string         `json:"pending_key,omitempty"`
	ItemCount   int            `json:"item_count"`
	ProcessedAt time.Time      `json:"processed_at"`
}

// NewProcessedOrder builds an idempotency claim for orderID.
func NewProcessedOrder(orderID, eventName string) *ProcessedOrder {
	return &ProcessedOrder{
		ID:          id.NewProcessedID(),
		OrderID:     orderID,
		EventName:   eventName,
		ProcessedAt: time.Now().UTC(),
	}
}
