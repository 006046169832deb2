package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the fulfillment store (SQLite).
var Migrations = migrate.NewGroup("fulfillment")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_fulfillment_pending_orders",
			Version: "20250601000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS fulfillment_pending_orders (
    checkout_key TEXT PRIMARY KEY,
    cart_ref     TEXT NOT NULL DEFAULT '',
    items        TEXT NOT NULL DEFAULT '[]',
    created_at   TEXT NOT NULL DEFAULT '',
    updated_at   TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_fulfillment_pending_created ON fulfillment_pending_orders (created_at);
CREATE INDEX IF NOT EXISTS idx_fulfillment_pending_cart_ref ON fulfillment_pending_orders (cart_ref);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS fulfillment_pending_orders`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_fulfillment_processed_orders",
			Version: "20250601000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS fulfillment_processed_orders (
    order_id     TEXT PRIMARY KEY,
    id           TEXT NOT NULL DEFAULT '',
    event_name   TEXT NOT NULL DEFAULT '',
    matched_by   TEXT NOT NULL DEFAULT '',
    pending_key  TEXT NOT NULL DEFAULT '',
    item_count   INTEGER NOT NULL DEFAULT 0,
    processed_at TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_fulfillment_processed_at ON fulfillment_processed_orders (processed_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS fulfillment_processed_orders`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_fulfillment_visits",
			Version: "20250601000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS fulfillment_visit_days (
    day   TEXT PRIMARY KEY,
    views INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS fulfillment_visitors (
    day           TEXT NOT NULL,
    visitor_hash  TEXT NOT NULL,
    first_seen_at TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (day, visitor_hash)
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS fulfillment_visitors;
DROP TABLE IF EXISTS fulfillment_visit_days;
`)
				return err
			},
		},
	)
}
