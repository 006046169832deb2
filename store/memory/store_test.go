package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/fulfillment/store"
	"github.com/xraph/fulfillment/store/memory"
	"github.com/xraph/fulfillment/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return memory.New() })
}

func TestSnapshotRestore(t *testing.T) {
	ctx := context.Background()
	src := memory.New()

	if err := src.PutPending(ctx, storetest.Pending("K", time.Now(), "A", "B")); err != nil {
		t.Fatal(err)
	}
	if err := src.RecordVisit(ctx, "2026-03-01", "abcd"); err != nil {
		t.Fatal(err)
	}

	dst := memory.New()
	dst.Restore(src.Snapshot())

	items, err := dst.TakePending(ctx, "K")
	if err != nil || len(items) != 2 {
		t.Fatalf("restored take = %+v, %v", items, err)
	}
	if left, _ := src.ListPending(ctx); len(left) != 1 {
		t.Errorf("taking from the restored copy must not affect the source")
	}

	stats, _ := dst.VisitStats(ctx)
	if len(stats) != 1 || stats[0].UniqueVisitors != 1 {
		t.Errorf("stats = %+v", stats)
	}

	dst.Restore(nil)
	if entries, _ := dst.ListPending(ctx); len(entries) != 0 {
		t.Errorf("Restore(nil) should empty the store")
	}
}
