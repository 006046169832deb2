// Package backend builds a store.Store from configuration.
package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/drivers/sqlitedriver"

	"github.com/xraph/fulfillment"
	"github.com/xraph/fulfillment/config"
	"github.com/xraph/fulfillment/store"
	"github.com/xraph/fulfillment/store/file"
	"github.com/xraph/fulfillment/store/memory"
	"github.com/xraph/fulfillment/store/mongo"
	"github.com/xraph/fulfillment/store/postgres"
	"github.com/xraph/fulfillment/store/sqlite"
)

// Open returns the store selected by cfg.Driver. Grove-backed drivers
// connect to cfg.DSN.
func Open(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch driver := strings.ToLower(cfg.Driver); driver {
	case "", config.DriverFile:
		fs, err := file.Open(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case config.DriverMemory:
		return memory.New(), nil
	case config.DriverSQLite, config.DriverPostgres, config.DriverMongo:
		db, err := Connect(ctx, driver, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return FromGrove(db, driver)
	default:
		return nil, fulfillment.ValidationError{Field: "store.driver", Message: fmt.Sprintf("unknown driver %q", cfg.Driver)}
	}
}

// Connect opens a grove database for driver.
func Connect(ctx context.Context, driver, dsn string) (*grove.DB, error) {
	if dsn == "" {
		return nil, &fulfillment.ConfigError{Operation: driver + " store", Missing: []string{"DATABASE_URL"}}
	}

	var drv grove.GroveDriver
	switch driver {
	case config.DriverSQLite:
		sdb := sqlitedriver.New()
		if err := sdb.Open(ctx, dsn); err != nil {
			return nil, fmt.Errorf("fulfillment/backend: open sqlite: %w", err)
		}
		drv = sdb
	case config.DriverPostgres:
		pg := pgdriver.New()
		if err := pg.Open(ctx, dsn); err != nil {
			return nil, fmt.Errorf("fulfillment/backend: open postgres: %w", err)
		}
		drv = pg
	case config.DriverMongo:
		mdb := mongodriver.New()
		if err := mdb.Open(ctx, dsn); err != nil {
			return nil, fmt.Errorf("fulfillment/backend: open mongo: %w", err)
		}
		drv = mdb
	default:
		return nil, fulfillment.ValidationError{Field: "store.driver", Message: fmt.Sprintf("%q is not a grove driver", driver)}
	}

	db, err := grove.Open(drv)
	if err != nil {
		return nil, fmt.Errorf("fulfillment/backend: %s: %w", driver, err)
	}
	return db, nil
}

// FromGrove wraps an open grove database in the backend for driver.
func FromGrove(db *grove.DB, driver string) (store.Store, error) {
	switch strings.ToLower(driver) {
	case config.DriverSQLite:
		return sqlite.New(db), nil
	case config.DriverPostgres:
		return postgres.New(db), nil
	case config.DriverMongo:
		return mongo.New(db), nil
	default:
		return nil, fulfillment.ValidationError{Field: "store.driver", Message: fmt.Sprintf("%q is not a grove driver", driver)}
	}
}
