package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	// Registers the pgdriver migration executor in init; migrate.NewExecutorFor fails without it.
	_ "github.com/xraph/grove/drivers/pgdriver/pgmigrate"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/fulfillment"
	"github.com/xraph/fulfillment/analytics"
	"github.com/xraph/fulfillment/order"
	"github.com/xraph/fulfillment/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("fulfillment/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("fulfillment/postgres: %w: %w", fulfillment.ErrMigrationFailed, err)
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

	var key string
	err := s.pg.NewRaw(`
		INSERT INTO fulfillment_pending_orders (checkout_key, cart_ref, items, created_at, updated_at)
		VALUES ($1, $2, $3::jsonb, $4, $5)
		ON CONFLICT (checkout_key) DO UPDATE SET
			cart_ref = EXCLUDED.cart_ref,
			items = EXCLUDED.items,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at
		RETURNING checkout_key
	`, m.CheckoutKey, m.CartRef, string(m.Items), m.CreatedAt, m.UpdatedAt).Scan(ctx, &key)
	if err != nil {
		return fmt.Errorf("fulfillment/postgres: put pending: %w", err)
	}
	return nil
}

// TakePending deletes the row and returns its items in one statement, so
// concurrent callers see the items at most once.
func (s *Store) TakePending(ctx context.Context, key string) ([]order.LineItem, error) {
	var raw string
	err := s.pg.NewRaw(`
		DELETE FROM fulfillment_pending_orders
		WHERE checkout_key = $1
		RETURNING items::text
	`, key).Scan(ctx, &raw)
	if err != nil {
		if isNoRows(err) {
			return []order.LineItem{}, nil
		}
		return nil, fmt.Errorf("fulfillment/postgres: take pending: %w", err)
	}
	return decodeItems(raw)
}

func (s *Store) GetPending(ctx context.Context, key string) (*order.PendingOrder, error) {
	m := new(pendingOrderModel)
	err := s.pg.NewSelect(m).
		Where("checkout_key = $1", key).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fulfillment.ErrNotFound
		}
		return nil, err
	}
	return fromPendingOrderModel(m)
}

func (s *Store) ListPending(ctx context.Context) ([]*order.PendingOrder, error) {
	var models []pendingOrderModel
	err := s.pg.NewSelect(&models).
		OrderExpr("created_at ASC, checkout_key ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
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
	res, err := s.pg.NewDelete((*pendingOrderModel)(nil)).
		Where("created_at < $1", before.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("fulfillment/postgres: evict pending: %w", err)
	}
	return res.RowsAffected()
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

	var claimed string
	err := s.pg.NewRaw(`
		INSERT INTO fulfillment_processed_orders
			(order_id, id, event_name, matched_by, pending_key, item_count, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (order_id) DO NOTHING
		RETURNING order_id
	`, m.OrderID, m.ID, m.EventName, m.MatchedBy, m.PendingKey, m.ItemCount, m.ProcessedAt).Scan(ctx, &claimed)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("fulfillment/postgres: claim order: %w", err)
	}
	return true, nil
}

func (s *Store) UpdateProcessed(ctx context.Context, p *order.ProcessedOrder) error {
	res, err := s.pg.NewUpdate((*processedOrderModel)(nil)).
		Set("matched_by = $1", string(p.MatchedBy)).
		Set("pending_key = $2", p.PendingKey).
		Set("item_count = $3", p.ItemCount).
		Where("order_id = $4", p.OrderID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("fulfillment/postgres: update processed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fulfillment.ErrNotFound
	}
	return nil
}

func (s *Store) ReleaseOrder(ctx context.Context, orderID string) error {
	_, err := s.pg.NewDelete((*processedOrderModel)(nil)).
		Where("order_id = $1", orderID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("fulfillment/postgres: release order: %w", err)
	}
	return nil
}

func (s *Store) GetProcessed(ctx context.Context, orderID string) (*order.ProcessedOrder, error) {
	m := new(processedOrderModel)
	err := s.pg.NewSelect(m).
		Where("order_id = $1", orderID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fulfillment.ErrNotFound
		}
		return nil, err
	}
	return fromProcessedOrderModel(m)
}

func (s *Store) PurgeProcessed(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.pg.NewDelete((*processedOrderModel)(nil)).
		Where("processed_at < $1", before.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("fulfillment/postgres: purge processed: %w", err)
	}
	return res.RowsAffected()
}

// ==================== Analytics Store ====================

func (s *Store) RecordVisit(ctx context.Context, day, visitorHash string) error {
	var views int64
	err := s.pg.NewRaw(`
		INSERT INTO fulfillment_visit_days (day, views) VALUES ($1, 1)
		ON CONFLICT (day) DO UPDATE SET views = fulfillment_visit_days.views + 1
		RETURNING views
	`, day).Scan(ctx, &views)
	if err != nil {
		return fmt.Errorf("fulfillment/postgres: record view: %w", err)
	}

	var seen string
	err = s.pg.NewRaw(`
		INSERT INTO fulfillment_visitors (day, visitor_hash, first_seen_at) VALUES ($1, $2, $3)
		ON CONFLICT (day, visitor_hash) DO NOTHING
		RETURNING visitor_hash
	`, day, visitorHash, now()).Scan(ctx, &seen)
	if err != nil && !isNoRows(err) {
		return fmt.Errorf("fulfillment/postgres: record visitor: %w", err)
	}
	return nil
}

func (s *Store) VisitStats(ctx context.Context) ([]analytics.DayStats, error) {
	var days []visitDayModel
	if err := s.pg.NewSelect(&days).OrderExpr("day DESC").Scan(ctx); err != nil {
		return nil, err
	}

	stats := make([]analytics.DayStats, 0, len(days))
	for _, d := range days {
		var unique int64
		err := s.pg.NewRaw(
			`SELECT COUNT(*) FROM fulfillment_visitors WHERE day = $1`, d.Day,
		).Scan(ctx, &unique)
		if err != nil {
			return nil, err
		}
		stats = append(stats, analytics.DayStats{
			Date:           d.Day,
			Views:          d.Views,
			UniqueVisitors: unique,
		})
	}
	return stats, nil
}

// ==================== Helpers ====================

func decodeItems(raw string) ([]order.LineItem, error) {
	items := []order.LineItem{}
	if raw == "" {
		return items, nil
	}
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("fulfillment/postgres: decode items: %w", err)
	}
	return items, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func now() time.Time {
	return time.Now().UTC()
}
