// Package notify delivers order confirmations to buyers.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/fulfillment/order"
)

// Message is an order confirmation.
type Message struct {
	To           string
	CustomerName string
	OrderID      string
	Items        []order.LineItem
	Total        string
	DownloadURL  string
	Date         time.Time
	TestMode     bool
}

// Notifier sends confirmations. A returned error means the buyer was not
// notified and the caller may retry.
type Notifier interface {
	Notify(ctx context.Context, msg *Message) error
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, msg *Message) error

// Notify calls f.
func (f Func) Notify(ctx context.Context, msg *Message) error { return f(ctx, msg) }

// LogNotifier records confirmations in the log instead of sending them.
// It is used when no mail provider is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify logs msg.
func (n LogNotifier) Notify(_ context.Context, msg *Message) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("notify: no mail provider configured, confirmation not sent",
		"order_id", msg.OrderID,
		"to", msg.To,
		"items", len(msg.Items),
		"total", msg.Total,
	)
	return nil
}
