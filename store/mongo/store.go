package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/fulfillment"
	"github.com/xraph/fulfillment/analytics"
	"github.com/xraph/fulfillment/order"
	"github.com/xraph/fulfillment/store"
)

// Collection name constants.
const (
	colPending   = "fulfillment_pending_orders"
	colProcessed = "fulfillment_processed_orders"
	colVisitDays = "fulfillment_visit_days"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all fulfillment collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("fulfillment/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Pending Order Store ====================

func (s *Store) PutPending(ctx context.Context, p *order.PendingOrder) error {
	if p == nil || p.Key == "" {
		return fulfillment.ValidationError{Field: "key", Message: "must not be empty"}
	}
	m := toPendingOrderModel(p)
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now()
	}
	m.UpdatedAt = now()

	_, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.CheckoutKey}).
		SetUpdate(bson.M{"$set": bson.M{
			"cart_ref":   m.CartRef,
			"items":      m.Items,
			"created_at": m.CreatedAt,
			"updated_at": m.UpdatedAt,
		}}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("fulfillment/mongo: put pending: %w", err)
	}
	return nil
}

// TakePending uses findOneAndDelete so exactly one caller receives the items.
func (s *Store) TakePending(ctx context.Context, key string) ([]order.LineItem, error) {
	var m pendingOrderModel
	err := s.mdb.Collection(colPending).
		FindOneAndDelete(ctx, bson.M{"_id": key}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return []order.LineItem{}, nil
		}
		return nil, fmt.Errorf("fulfillment/mongo: take pending: %w", err)
	}
	return fromLineItemModels(m.Items), nil
}

func (s *Store) GetPending(ctx context.Context, key string) (*order.PendingOrder, error) {
	var m pendingOrderModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": key}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fulfillment.ErrNotFound
		}
		return nil, fmt.Errorf("fulfillment/mongo: get pending: %w", err)
	}
	return fromPendingOrderModel(&m)
}

func (s *Store) ListPending(ctx context.Context) ([]*order.PendingOrder, error) {
	var models []pendingOrderModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("fulfillment/mongo: list pending: %w", err)
	}

	result := make([]*order.PendingOrder, 0, len(models))
	for i := range models {
		p, err := fromPendingOrderModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, nil
}

func (s *Store) EvictPending(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.mdb.NewDelete((*pendingOrderModel)(nil)).
		Filter(bson.M{"created_at": bson.M{"$lt": before.UTC()}}).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("fulfillment/mongo: evict pending: %w", err)
	}
	return res.DeletedCount(), nil
}

// ==================== Processed Order Store ====================

func (s *Store) ClaimOrder(ctx context.Context, p *order.ProcessedOrder) (bool, error) {
	if p == nil || p.OrderID == "" {
		return false, fulfillment.ValidationError{Field: "order_id", Message: "must not be empty"}
	}
	m := toProcessedOrderModel(p)
	if m.ProcessedAt.IsZero() {
		m.ProcessedAt = now()
	}

	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("fulfillment/mongo: claim order: %w", err)
	}
	return true, nil
}

func (s *Store) UpdateProcessed(ctx context.Context, p *order.ProcessedOrder) error {
	res, err := s.mdb.NewUpdate((*processedOrderModel)(nil)).
		Filter(bson.M{"_id": p.OrderID}).
		Set("matched_by", string(p.MatchedBy)).
		Set("pending_key", p.PendingKey).
		Set("item_count", p.ItemCount).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("fulfillment/mongo: update processed: %w", err)
	}
	if res.MatchedCount() == 0 {
		return fulfillment.ErrNotFound
	}
	return nil
}

func (s *Store) ReleaseOrder(ctx context.Context, orderID string) error {
	_, err := s.mdb.NewDelete((*processedOrderModel)(nil)).
		Filter(bson.M{"_id": orderID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("fulfillment/mongo: release order: %w", err)
	}
	return nil
}

func (s *Store) GetProcessed(ctx context.Context, orderID string) (*order.ProcessedOrder, error) {
	var m processedOrderModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": orderID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fulfillment.ErrNotFound
		}
		return nil, fmt.Errorf("fulfillment/mongo: get processed: %w", err)
	}
	return fromProcessedOrderModel(&m)
}

func (s *Store) PurgeProcessed(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.mdb.NewDelete((*processedOrderModel)(nil)).
		Filter(bson.M{"processed_at": bson.M{"$lt": before.UTC()}}).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("fulfillment/mongo: purge processed: %w", err)
	}
	return res.DeletedCount(), nil
}

// ==================== Analytics Store ====================

func (s *Store) RecordVisit(ctx context.Context, day, visitorHash string) error {
	_, err := s.mdb.NewUpdate((*visitDayModel)(nil)).
		Filter(bson.M{"_id": day}).
		SetUpdate(bson.M{
			"$inc":      bson.M{"views": 1},
			"$addToSet": bson.M{"visitors": visitorHash},
		}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("fulfillment/mongo: record visit: %w", err)
	}
	return nil
}

func (s *Store) VisitStats(ctx context.Context) ([]analytics.DayStats, error) {
	var models []visitDayModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "_id", Value: -1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("fulfillment/mongo: visit stats: %w", err)
	}

	stats := make([]analytics.DayStats, 0, len(models))
	for _, m := range models {
		stats = append(stats, analytics.DayStats{
			Date:           m.Day,
			Views:          m.Views,
			UniqueVisitors: int64(len(m.Visitors)),
		})
	}
	return stats, nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all fulfillment collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colPending: {
			{Keys: bson.D{{Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "cart_ref", Value: 1}}},
		},
		colProcessed: {
			{Keys: bson.D{{Key: "processed_at", Value: 1}}},
			{
				Keys:    bson.D{{Key: "record_id", Value: 1}},
				Options: options.Index().SetUnique(true).SetSparse(true),
			},
		},
		colVisitDays: {},
	}
}
