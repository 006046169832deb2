// Package storetest is a conformance suite run against every store backend.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/xraph/fulfillment"
	"github.com/xraph/fulfillment/id"
	"github.com/xraph/fulfillment/order"
	"github.com/xraph/fulfillment/store"
	"github.com/xraph/fulfillment/types"
)

// Factory returns a fresh, migrated store for one subtest.
type Factory func(t *testing.T) store.Store

// Run executes the suite.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("PutTakeTake", func(t *testing.T) { testPutTakeTake(t, newStore(t)) })
	t.Run("PutOverwrites", func(t *testing.T) { testPutOverwrites(t, newStore(t)) })
	t.Run("GetPending", func(t *testing.T) { testGetPending(t, newStore(t)) })
	t.Run("ListPendingOldestFirst", func(t *testing.T) { testListPendingOrder(t, newStore(t)) })
	t.Run("EvictPending", func(t *testing.T) { testEvictPending(t, newStore(t)) })
	t.Run("ConcurrentTakeSingleWinner", func(t *testing.T) { testConcurrentTake(t, newStore(t)) })
	t.Run("ClaimOrder", func(t *testing.T) { testClaimOrder(t, newStore(t)) })
	t.Run("ReleaseOrder", func(t *testing.T) { testReleaseOrder(t, newStore(t)) })
	t.Run("PurgeProcessed", func(t *testing.T) { testPurgeProcessed(t, newStore(t)) })
	t.Run("Visits", func(t *testing.T) { testVisits(t, newStore(t)) })
}

// Pending builds a pending order created at the given time.
func Pending(key string, created time.Time, titles ...string) *order.PendingOrder {
	items := make([]order.LineItem, 0, len(titles))
	for i, title := range titles {
		items = append(items, order.LineItem{
			ID:    fmt.Sprintf("%s-%d", key, i),
			Title: title,
			Price: "$10.00",
		})
	}
	p := order.NewPendingOrder(key, id.NewCartRef(), items)
	p.Entity = types.Entity{CreatedAt: created.UTC(), UpdatedAt: created.UTC()}
	return p
}

func testPutTakeTake(t *testing.T, s store.Store) {
	ctx := context.Background()

	if err := s.PutPending(ctx, Pending("K", time.Now(), "A", "B")); err != nil {
		t.Fatalf("PutPending: %v", err)
	}

	first, err := s.TakePending(ctx, "K")
	if err != nil {
		t.Fatalf("first TakePending: %v", err)
	}
	if len(first) != 2 || first[0].Title != "A" || first[1].Title != "B" {
		t.Fatalf("first take = %+v, want [A B]", first)
	}

	second, err := s.TakePending(ctx, "K")
	if err != nil {
		t.Fatalf("second TakePending: %v", err)
	}
	if second == nil || len(second) != 0 {
		t.Fatalf("second take = %#v, want empty non-nil slice", second)
	}
}

func testPutOverwrites(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := time.Now()

	if err := s.PutPending(ctx, Pending("K", now, "old")); err != nil {
		t.Fatal(err)
	}
	if err := s.PutPending(ctx, Pending("K", now, "new", "newer")); err != nil {
		t.Fatal(err)
	}

	items, err := s.TakePending(ctx, "K")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 || items[0].Title != "new" {
		t.Errorf("items = %+v, want overwritten entry", items)
	}
}

func testGetPending(t *testing.T, s store.Store) {
	ctx := context.Background()

	if _, err := s.GetPending(ctx, "missing"); !errors.Is(err, fulfillment.ErrNotFound) {
		t.Errorf("GetPending(missing) = %v, want ErrNotFound", err)
	}

	want := Pending("K", time.Now(), "A")
	if err := s.PutPending(ctx, want); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetPending(ctx, "K")
	if err != nil {
		t.Fatalf("GetPending: %v", err)
	}
	if got.CartRef.String() != want.CartRef.String() || len(got.Items) != 1 {
		t.Errorf("got %+v, want %+v", got, want)
	}

	if items, _ := s.TakePending(ctx, "K"); len(items) != 1 {
		t.Errorf("GetPending must not consume the entry")
	}
}

func testListPendingOrder(t *testing.T, s store.Store) {
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i, key := range []string{"c", "a", "b"} {
		created := base.Add(time.Duration(2-i) * time.Minute)
		if err := s.PutPending(ctx, Pending(key, created, "x")); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := s.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	keys := order.Keys(entries)
	want := []string{"b", "a", "c"}
	if fmt.Sprint(keys) != fmt.Sprint(want) {
		t.Errorf("keys = %v, want %v", keys, want)
	}
}

func testEvictPending(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := time.Now()

	if err := s.PutPending(ctx, Pending("stale", now.Add(-48*time.Hour), "x")); err != nil {
		t.Fatal(err)
	}
	if err := s.PutPending(ctx, Pending("fresh", now, "y")); err != nil {
		t.Fatal(err)
	}

	n, err := s.EvictPending(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("EvictPending: %v", err)
	}
	if n != 1 {
		t.Errorf("evicted %d, want 1", n)
	}

	entries, _ := s.ListPending(ctx)
	if len(entries) != 1 || entries[0].Key != "fresh" {
		t.Errorf("remaining = %v, want [fresh]", order.Keys(entries))
	}
}

func testConcurrentTake(t *testing.T, s store.Store) {
	ctx := context.Background()
	if err := s.PutPending(ctx, Pending("K", time.Now(), "A")); err != nil {
		t.Fatal(err)
	}

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			items, err := s.TakePending(ctx, "K")
			if err != nil {
				t.Errorf("TakePending: %v", err)
				return
			}
			if len(items) > 0 {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("%d takers received items, want exactly 1", winners)
	}
}

func testClaimOrder(t *testing.T, s store.Store) {
	ctx := context.Background()

	claimed, err := s.ClaimOrder(ctx, order.NewProcessedOrder("ord-1", order.EventOrderCreated))
	if err != nil || !claimed {
		t.Fatalf("first claim = %v, %v; want true, nil", claimed, err)
	}

	claimed, err = s.ClaimOrder(ctx, order.NewProcessedOrder("ord-1", order.EventOrderCreated))
	if err != nil || claimed {
		t.Fatalf("second claim = %v, %v; want false, nil", claimed, err)
	}

	rec, err := s.GetProcessed(ctx, "ord-1")
	if err != nil {
		t.Fatalf("GetProcessed: %v", err)
	}
	rec.MatchedBy = order.MatchedByOrderID
	rec.ItemCount = 3
	if err := s.UpdateProcessed(ctx, rec); err != nil {
		t.Fatalf("UpdateProcessed: %v", err)
	}

	got, err := s.GetProcessed(ctx, "ord-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.MatchedBy != order.MatchedByOrderID || got.ItemCount != 3 {
		t.Errorf("got %+v", got)
	}

	if _, err := s.GetProcessed(ctx, "ord-404"); !errors.Is(err, fulfillment.ErrNotFound) {
		t.Errorf("GetProcessed(missing) = %v, want ErrNotFound", err)
	}
}

func testReleaseOrder(t *testing.T, s store.Store) {
	ctx := context.Background()

	if _, err := s.ClaimOrder(ctx, order.NewProcessedOrder("ord-2", order.EventOrderCreated)); err != nil {
		t.Fatal(err)
	}
	if err := s.ReleaseOrder(ctx, "ord-2"); err != nil {
		t.Fatalf("ReleaseOrder: %v", err)
	}

	claimed, err := s.ClaimOrder(ctx, order.NewProcessedOrder("ord-2", order.EventOrderCreated))
	if err != nil || !claimed {
		t.Errorf("claim after release = %v, %v; want true, nil", claimed, err)
	}
}

func testPurgeProcessed(t *testing.T, s store.Store) {
	ctx := context.Background()

	old := order.NewProcessedOrder("old", order.EventOrderCreated)
	old.ProcessedAt = time.Now().Add(-90 * 24 * time.Hour).UTC()
	if _, err := s.ClaimOrder(ctx, old); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ClaimOrder(ctx, order.NewProcessedOrder("new", order.EventOrderCreated)); err != nil {
		t.Fatal(err)
	}

	n, err := s.PurgeProcessed(ctx, time.Now().Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("PurgeProcessed: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d, want 1", n)
	}
	if _, err := s.GetProcessed(ctx, "new"); err != nil {
		t.Errorf("recent record should survive: %v", err)
	}
}

func testVisits(t *testing.T, s store.Store) {
	ctx := context.Background()

	visits := []struct{ day, hash string }{
		{"2026-01-01", "aaaa"},
		{"2026-01-01", "aaaa"},
		{"2026-01-01", "bbbb"},
		{"2026-01-02", "aaaa"},
	}
	for _, v := range visits {
		if err := s.RecordVisit(ctx, v.day, v.hash); err != nil {
			t.Fatalf("RecordVisit: %v", err)
		}
	}

	stats, err := s.VisitStats(ctx)
	if err != nil {
		t.Fatalf("VisitStats: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 days, got %+v", stats)
	}
	if stats[0].Date != "2026-01-02" || stats[0].Views != 1 || stats[0].UniqueVisitors != 1 {
		t.Errorf("newest day = %+v", stats[0])
	}
	if stats[1].Views != 3 || stats[1].UniqueVisitors != 2 {
		t.Errorf("oldest day = %+v", stats[1])
	}
}
