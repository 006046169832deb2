// Package file provides the default Store: in-memory state persisted as JSON
// snapshots. Every mutation rewrites the affected snapshot through a
// temporary file in the same directory followed by an atomic rename, so a
// crash leaves either the previous or the new snapshot on disk, never a
// truncated one.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/xraph/fulfillment"
	"github.com/xraph/fulfillment/analytics"
	"github.com/xraph/fulfillment/order"
	"github.com/xraph/fulfillment/store"
	"github.com/xraph/fulfillment/store/memory"
)

// Default snapshot file names inside the data directory.
const (
	LedgerFile    = "pending_orders.json"
	AnalyticsFile = "analytics_data.json"
)

const snapshotVersion = 1

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

type snapshot int

const (
	ledgerSnapshot snapshot = iota
	analyticsSnapshot
)

// Store is a file-backed Store.
type Store struct {
	mu     sync.Mutex // serializes mutate-then-persist
	mem    *memory.Store
	dir    string
	logger *slog.Logger
	closed bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

type ledgerDocument struct {
	Version   int                     `json:"version"`
	SavedAt   time.Time               `json:"saved_at"`
	Pending   []*order.PendingOrder   `json:"pending"`
	Processed []*order.ProcessedOrder `json:"processed"`
}

// Open loads the snapshots from dir, creating the directory if needed.
// Missing snapshot files start an empty store.
func Open(dir string, opts ...Option) (*Store, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("fulfillment/file: create dir: %w", err)
	}

	s := &Store{
		mem:    memory.New(),
		dir:    dir,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	snap := &memory.Snapshot{}

	var doc ledgerDocument
	found, err := readJSON(filepath.Join(s.dir, LedgerFile), &doc)
	if err != nil {
		return fmt.Errorf("fulfillment/file: load ledger: %w", err)
	}
	if found {
		snap.Pending = doc.Pending
		snap.Processed = doc.Processed
	}

	visits := map[string]*memory.DayVisits{}
	if _, err := readJSON(filepath.Join(s.dir, AnalyticsFile), &visits); err != nil {
		return fmt.Errorf("fulfillment/file: load analytics: %w", err)
	}
	snap.Visits = visits

	s.mem.Restore(snap)
	s.logger.Debug("file store loaded",
		"dir", s.dir,
		"pending", len(snap.Pending),
		"processed", len(snap.Processed),
		"days", len(snap.Visits),
	)
	return nil
}

// readJSON reports false when path does not exist.
func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	return true, json.Unmarshal(data, v)
}

// mutate applies fn and persists the affected snapshot. When persisting
// fails the in-memory state is rolled back so memory never runs ahead of disk.
func (s *Store) mutate(kind snapshot, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fulfillment.ErrStoreClosed
	}

	prev := s.mem.Snapshot()
	if err := fn(); err != nil {
		return err
	}
	if err := s.persist(kind); err != nil {
		s.mem.Restore(prev)
		return err
	}
	return nil
}

func (s *Store) persist(kind snapshot) error {
	snap := s.mem.Snapshot()

	switch kind {
	case ledgerSnapshot:
		return writeAtomic(filepath.Join(s.dir, LedgerFile), ledgerDocument{
			Version:   snapshotVersion,
			SavedAt:   time.Now().UTC(),
			Pending:   snap.Pending,
			Processed: snap.Processed,
		})
	case analyticsSnapshot:
		return writeAtomic(filepath.Join(s.dir, AnalyticsFile), snap.Visits)
	default:
		return fmt.Errorf("fulfillment/file: unknown snapshot %d", kind)
	}
}

// writeAtomic writes v as JSON to a temporary sibling of path, syncs it and
// renames it over path.
func writeAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("fulfillment/file: encode %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("fulfillment/file: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck // already failing
		return fmt.Errorf("fulfillment/file: write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck // already failing
		return fmt.Errorf("fulfillment/file: sync %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("fulfillment/file: close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("fulfillment/file: rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Pending-order ledger
// ──────────────────────────────────────────────────

func (s *Store) PutPending(ctx context.Context, p *order.PendingOrder) error {
	return s.mutate(ledgerSnapshot, func() error {
		return s.mem.PutPending(ctx, p)
	})
}

func (s *Store) TakePending(ctx context.Context, key string) ([]order.LineItem, error) {
	var items []order.LineItem
	err := s.mutate(ledgerSnapshot, func() error {
		var err error
		items, err = s.mem.TakePending(ctx, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetPending(ctx context.Context, key string) (*order.PendingOrder, error) {
	return s.mem.GetPending(ctx, key)
}

func (s *Store) ListPending(ctx context.Context) ([]*order.PendingOrder, error) {
	return s.mem.ListPending(ctx)
}

func (s *Store) EvictPending(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := s.mutate(ledgerSnapshot, func() error {
		var err error
		n, err = s.mem.EvictPending(ctx, before)
		return err
	})
	return n, err
}

// ──────────────────────────────────────────────────
// Processed-order idempotency
// ──────────────────────────────────────────────────

func (s *Store) ClaimOrder(ctx context.Context, p *order.ProcessedOrder) (bool, error) {
	var claimed bool
	err := s.mutate(ledgerSnapshot, func() error {
		var err error
		claimed, err = s.mem.ClaimOrder(ctx, p)
		return err
	})
	return claimed, err
}

func (s *Store) UpdateProcessed(ctx context.Context, p *order.ProcessedOrder) error {
	return s.mutate(ledgerSnapshot, func() error {
		return s.mem.UpdateProcessed(ctx, p)
	})
}

func (s *Store) ReleaseOrder(ctx context.Context, orderID string) error {
	return s.mutate(ledgerSnapshot, func() error {
		return s.mem.ReleaseOrder(ctx, orderID)
	})
}

func (s *Store) GetProcessed(ctx context.Context, orderID string) (*order.ProcessedOrder, error) {
	return s.mem.GetProcessed(ctx, orderID)
}

func (s *Store) PurgeProcessed(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := s.mutate(ledgerSnapshot, func() error {
		var err error
		n, err = s.mem.PurgeProcessed(ctx, before)
		return err
	})
	return n, err
}

// ──────────────────────────────────────────────────
// Analytics
// ──────────────────────────────────────────────────

func (s *Store) RecordVisit(ctx context.Context, day, visitorHash string) error {
	return s.mutate(analyticsSnapshot, func() error {
		return s.mem.RecordVisit(ctx, day, visitorHash)
	})
}

func (s *Store) VisitStats(ctx context.Context) ([]analytics.DayStats, error) {
	return s.mem.VisitStats(ctx)
}

// ──────────────────────────────────────────────────
// Core
// ──────────────────────────────────────────────────

// Migrate is a no-op; snapshots are versioned documents.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping checks that the data directory is still writable.
func (s *Store) Ping(_ context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("fulfillment/file: ping: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("fulfillment/file: ping: %s is not a directory", s.dir)
	}
	return nil
}

// Close rejects further mutations.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
