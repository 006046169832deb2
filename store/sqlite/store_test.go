package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/xraph/fulfillment/config"
	"github.com/xraph/fulfillment/store"
	"github.com/xraph/fulfillment/store/backend"
	"github.com/xraph/fulfillment/store/sqlite"
	"github.com/xraph/fulfillment/store/storetest"
)

// openSQLite returns a migrated store on a fresh database file. A file is
// used rather than :memory: so every pooled connection sees the same data.
func openSQLite(t *testing.T) *sqlite.Store {
	t.Helper()
	ctx := context.Background()

	dsn := "file:" + filepath.Join(t.TempDir(), "fulfillment.db") + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := backend.Connect(ctx, config.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	s := sqlite.New(db)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck // test cleanup

	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return openSQLite(t) })
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := openSQLite(t)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}
