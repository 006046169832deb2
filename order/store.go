package order

import (
	"context"
	"time"
)

// PendingStore is the pending-order ledger: cart contents parked between
// checkout creation and the payment webhook.
type PendingStore interface {
	// PutPending inserts or overwrites the entry for p.Key. The entry is
	// durable when PutPending returns.
	PutPending(ctx context.Context, p *PendingOrder) error

	// TakePending atomically returns and removes the items stored under key.
	// A missing key yields an empty slice and no error.
	TakePending(ctx context.Context, key string) ([]LineItem, error)

	// GetPending reads an entry without consuming it.
	GetPending(ctx context.Context, key string) (*PendingOrder, error)

	// ListPending returns a snapshot of all entries, oldest first.
	ListPending(ctx context.Context) ([]*PendingOrder, error)

	// EvictPending deletes entries created before the cutoff.
	EvictPending(ctx context.Context, before time.Time) (int64, error)
}

// ProcessedStore records reconciled provider orders.
type ProcessedStore interface {
	// ClaimOrder records p if its OrderID was never claimed. It reports
	// false, without error, when the order was already claimed.
	ClaimOrder(ctx context.Context, p *ProcessedOrder) (bool, error)

	// UpdateProcessed stores the reconciliation outcome of a claimed order.
	UpdateProcessed(ctx context.Context, p *ProcessedOrder) error

	// ReleaseOrder removes a claim so a redelivered webhook can retry.
	ReleaseOrder(ctx context.Context, orderID string) error

	// GetProcessed returns the record for orderID.
	GetProcessed(ctx context.Context, orderID string) (*ProcessedOrder, error)

	// PurgeProcessed deletes records processed before the cutoff.
	PurgeProcessed(ctx context.Context, before time.Time) (int64, error)
}

// Keys returns the keys of entries in order.
func Keys(entries []*PendingOrder) []string {
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Key)
	}
	return keys
}
