package extension

import (
	"context"
	"testing"

	"github.com/xraph/fulfillment/config"
	"github.com/xraph/fulfillment/store/memory"
)

func TestMergeConfigurations(t *testing.T) {
	file := Config{}
	file.Service.Store.Driver = config.DriverPostgres
	file.Service.Store.DSN = "postgres://file"

	prog := Config{DisableRoutes: true}
	prog.Service.Store.Driver = config.DriverSQLite
	prog.Service.Store.DSN = "file:prog.db"
	prog.Service.Store.DisableMigrate = true
	prog.Service.LemonSqueezy.APIKey = "key"

	got := mergeConfigurations(file, prog)

	if !got.DisableRoutes || !got.Service.Store.DisableMigrate {
		t.Errorf("programmatic flags not applied: %+v", got)
	}
	if got.Service.Store.Driver != config.DriverPostgres || got.Service.Store.DSN != "postgres://file" {
		t.Errorf("file store settings should win, got %q %q", got.Service.Store.Driver, got.Service.Store.DSN)
	}
	if got.Service.LemonSqueezy.APIKey != "key" {
		t.Errorf("programmatic credentials should fill gaps, got %q", got.Service.LemonSqueezy.APIKey)
	}
}

func TestResolveStore(t *testing.T) {
	ctx := context.Background()

	t.Run("programmatic store wins", func(t *testing.T) {
		s := memory.New()
		e := New(WithStore(s))
		if err := e.resolveStore(ctx); err != nil {
			t.Fatal(err)
		}
		if e.store != s {
			t.Error("expected the programmatic store to be kept")
		}
	})

	t.Run("driver from config", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Service.Store.Driver = config.DriverMemory
		e := New(WithConfig(cfg))
		if err := e.resolveStore(ctx); err != nil {
			t.Fatal(err)
		}
		if _, ok := e.store.(*memory.Store); !ok {
			t.Errorf("store = %T, want *memory.Store", e.store)
		}
	})

	t.Run("unknown driver", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Service.Store.Driver = "cassandra"
		e := New(WithConfig(cfg))
		if err := e.resolveStore(ctx); err == nil {
			t.Error("expected error for unknown driver")
		}
	})
}

func TestHealthWithoutStore(t *testing.T) {
	if err := New().Health(context.Background()); err == nil {
		t.Error("expected error before the store is resolved")
	}
}
