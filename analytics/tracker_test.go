package analytics_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/fulfillment"
	"github.com/xraph/fulfillment/analytics"
	"github.com/xraph/fulfillment/store/memory"
)

func TestHashVisitor(t *testing.T) {
	h := analytics.HashVisitor("visitor-1")
	if len(h) != 16 {
		t.Fatalf("hash length = %d, want 16", len(h))
	}
	if h != analytics.HashVisitor("visitor-1") {
		t.Error("hash must be deterministic")
	}
	if h == analytics.HashVisitor("visitor-2") {
		t.Error("different visitors should hash differently")
	}
	// sha256("abc") = ba7816bf8f01cfea...
	if got := analytics.HashVisitor("abc"); got != "ba7816bf8f01cfea" {
		t.Errorf("HashVisitor(abc) = %s", got)
	}
}

func TestTrackAndStats(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return day }
	tr := analytics.NewTracker(memory.New(), analytics.WithClock(func() time.Time { return clock() }))

	for _, v := range []string{"a", "b", "a"} {
		if err := tr.Track(ctx, v, "/"); err != nil {
			t.Fatal(err)
		}
	}
	day = day.AddDate(0, 0, 1)
	if err := tr.Track(ctx, "c", "/shop"); err != nil {
		t.Fatal(err)
	}

	stats, err := tr.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []analytics.DayStats{
		{Date: "2026-05-02", Views: 1, UniqueVisitors: 1},
		{Date: "2026-05-01", Views: 3, UniqueVisitors: 2},
	}
	if len(stats) != len(want) {
		t.Fatalf("stats = %+v", stats)
	}
	for i := range want {
		if stats[i] != want[i] {
			t.Errorf("stats[%d] = %+v, want %+v", i, stats[i], want[i])
		}
	}
}

func TestTrackRequiresVisitor(t *testing.T) {
	tr := analytics.NewTracker(memory.New())
	if err := tr.Track(context.Background(), "", "/"); !errors.Is(err, fulfillment.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}
