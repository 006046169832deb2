// Package store defines the unified storage interface of the fulfillment
// service. Backends live in the sub-packages: file (default JSON snapshot),
// memory, sqlite, postgres and mongo.
package store

import (
	"context"
	"time"

	"github.com/xraph/fulfillment/analytics"
	"github.com/xraph/fulfillment/order"
)

// Store is the unified storage interface. Methods are declared explicitly
// rather than by embedding so every backend lists the full contract.
type Store interface {
	// Pending-order ledger
	PutPending(ctx context.Context, p *order.PendingOrder) error
	TakePending(ctx context.Context, key string) ([]order.LineItem, error)
	GetPending(ctx context.Context, key string) (*order.PendingOrder, error)
	ListPending(ctx context.Context) ([]*order.PendingOrder, error)
	EvictPending(ctx context.Context, before time.Time) (int64, error)

	// Processed-order idempotency
	ClaimOrder(ctx context.Context, p *order.ProcessedOrder) (bool, error)
	UpdateProcessed(ctx context.Context, p *order.ProcessedOrder) error
	ReleaseOrder(ctx context.Context, orderID string) error
	GetProcessed(ctx context.Context, orderID string) (*order.ProcessedOrder, error)
	PurgeProcessed(ctx context.Context, before time.Time) (int64, error)

	// Analytics counters
	RecordVisit(ctx context.Context, day, visitorHash string) error
	VisitStats(ctx context.Context) ([]analytics.DayStats, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Compile-time checks that Store satisfies the domain store interfaces.
var (
	_ order.PendingStore   = Store(nil)
	_ order.ProcessedStore = Store(nil)
	_ analytics.Store      = Store(nil)
)
