package file_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xraph/fulfillment"
	"github.com/xraph/fulfillment/order"
	"github.com/xraph/fulfillment/store"
	"github.com/xraph/fulfillment/store/file"
	"github.com/xraph/fulfillment/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := file.Open(t.TempDir())
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		return s
	})
}

func TestPendingSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := file.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.PutPending(ctx, storetest.Pending("chk_1", time.Now(), "A", "B")); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordVisit(ctx, "2026-05-01", "ffff"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ClaimOrder(ctx, order.NewProcessedOrder("ord-9", order.EventOrderCreated)); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := file.Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}

	items, err := reopened.TakePending(ctx, "chk_1")
	if err != nil || len(items) != 2 {
		t.Fatalf("take after reopen = %+v, %v", items, err)
	}
	if claimed, _ := reopened.ClaimOrder(ctx, order.NewProcessedOrder("ord-9", order.EventOrderCreated)); claimed {
		t.Error("processed order id should survive a restart")
	}
	stats, _ := reopened.VisitStats(ctx)
	if len(stats) != 1 || stats[0].Views != 1 {
		t.Errorf("stats after reopen = %+v", stats)
	}
}

func TestSnapshotIsValidJSONAndNoTempFilesLeft(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := file.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"a", "b", "c"} {
		if err := s.PutPending(ctx, storetest.Pending(key, time.Now(), "x")); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.TakePending(ctx, "b"); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, file.LedgerFile))
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	var doc struct {
		Version int                   `json:"version"`
		Pending []*order.PendingOrder `json:"pending"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("snapshot is not valid JSON: %v", err)
	}
	if doc.Version != 1 || len(doc.Pending) != 2 {
		t.Errorf("snapshot = version %d with %d entries, want 1 and 2", doc.Version, len(doc.Pending))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temporary file left behind: %s", e.Name())
		}
	}
}

func TestOpenRejectsCorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, file.LedgerFile), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := file.Open(dir); err == nil {
		t.Fatal("expected error for corrupt snapshot")
	}
}

func TestOpenEmptyFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, file.LedgerFile), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := file.Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	entries, _ := s.ListPending(context.Background())
	if len(entries) != 0 {
		t.Errorf("expected empty ledger, got %d entries", len(entries))
	}
}

func TestFailedPersistRollsBack(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced for root")
	}
	ctx := context.Background()
	dir := t.TempDir()

	s, err := file.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.PutPending(ctx, storetest.Pending("K", time.Now(), "A")); err != nil {
		t.Fatal(err)
	}

	if err := os.Chmod(dir, 0o555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(dir, 0o755) }) //nolint:errcheck // test cleanup

	if _, err := s.TakePending(ctx, "K"); err == nil {
		t.Fatal("expected take to fail when the snapshot cannot be written")
	}
	if _, err := s.GetPending(ctx, "K"); err != nil {
		t.Errorf("entry should still be pending after a failed take: %v", err)
	}
}

func TestClosedStoreRejectsWrites(t *testing.T) {
	s, err := file.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	err = s.PutPending(context.Background(), storetest.Pending("K", time.Now(), "A"))
	if !errors.Is(err, fulfillment.ErrStoreClosed) {
		t.Errorf("PutPending after Close = %v, want ErrStoreClosed", err)
	}
}
