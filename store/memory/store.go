// Package memory provides an in-process Store. It is the reference
// implementation for tests and the state engine behind the file store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/fulfillment"
	"github.com/xraph/fulfillment/analytics"
	"github.com/xraph/fulfillment/order"
	"github.com/xraph/fulfillment/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store keeps all state in maps guarded by a single RWMutex.
type Store struct {
	mu sync.RWMutex

	pending   map[string]*order.PendingOrder
	processed map[string]*order.ProcessedOrder
	visits    map[string]*DayVisits
}

// DayVisits is the raw counter of one day.
type DayVisits struct {
	Views    int64    `json:"views"`
	Visitors []string `json:"visitors"`
}

// Snapshot is a point-in-time copy of the whole store.
type Snapshot struct {
	Pending   []*order.PendingOrder   `json:"pending"`
	Processed []*order.ProcessedOrder `json:"processed"`
	Visits    map[string]*DayVisits   `json:"visits"`
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		pending:   make(map[string]*order.PendingOrder),
		processed: make(map[string]*order.ProcessedOrder),
		visits:    make(map[string]*DayVisits),
	}
}

// ──────────────────────────────────────────────────
// Pending-order ledger
// ──────────────────────────────────────────────────

func (s *Store) PutPending(_ context.Context, p *order.PendingOrder) error {
	if p == nil || p.Key == "" {
		return fulfillment.ValidationError{Field: "key", Message: "must not be empty"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending[p.Key] = clonePending(p)
	return nil
}

func (s *Store) TakePending(_ context.Context, key string) ([]order.LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[key]
	if !ok {
		return []order.LineItem{}, nil
	}
	delete(s.pending, key)
	return p.Items, nil
}

func (s *Store) GetPending(_ context.Context, key string) (*order.PendingOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.pending[key]; ok {
		return clonePending(p), nil
	}
	return nil, fulfillment.ErrNotFound
}

func (s *Store) ListPending(_ context.Context) ([]*order.PendingOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sortedPending(), nil
}

func (s *Store) EvictPending(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for key, p := range s.pending {
		if p.ExpiredAt(before) {
			delete(s.pending, key)
			n++
		}
	}
	return n, nil
}

// ──────────────────────────────────────────────────
// Processed-order idempotency
// ──────────────────────────────────────────────────

func (s *Store) ClaimOrder(_ context.Context, p *order.ProcessedOrder) (bool, error) {
	if p == nil || p.OrderID == "" {
		return false, fulfillment.ValidationError{Field: "order_id", Message: "must not be empty"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.processed[p.OrderID]; exists {
		return false, nil
	}
	cp := *p
	s.processed[p.OrderID] = &cp
	return true, nil
}

func (s *Store) UpdateProcessed(_ context.Context, p *order.ProcessedOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.processed[p.OrderID]; !exists {
		return fulfillment.ErrNotFound
	}
	cp := *p
	s.processed[p.OrderID] = &cp
	return nil
}

func (s *Store) ReleaseOrder(_ context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.processed, orderID)
	return nil
}

func (s *Store) GetProcessed(_ context.Context, orderID string) (*order.ProcessedOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.processed[orderID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, fulfillment.ErrNotFound
}

func (s *Store) PurgeProcessed(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for key, p := range s.processed {
		if p.ProcessedAt.Before(before) {
			delete(s.processed, key)
			n++
		}
	}
	return n, nil
}

// ──────────────────────────────────────────────────
// Analytics
// ──────────────────────────────────────────────────

func (s *Store) RecordVisit(_ context.Context, day, visitorHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.visits[day]
	if !ok {
		d = &DayVisits{Visitors: []string{}}
		s.visits[day] = d
	}
	d.Views++
	for _, v := range d.Visitors {
		if v == visitorHash {
			return nil
		}
	}
	d.Visitors = append(d.Visitors, visitorHash)
	return nil
}

func (s *Store) VisitStats(_ context.Context) ([]analytics.DayStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make([]analytics.DayStats, 0, len(s.visits))
	for day, d := range s.visits {
		stats = append(stats, analytics.DayStats{
			Date:           day,
			Views:          d.Views,
			UniqueVisitors: int64(len(d.Visitors)),
		})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Date > stats[j].Date })
	return stats, nil
}

// ──────────────────────────────────────────────────
// Snapshots
// ──────────────────────────────────────────────────

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{
		Pending:   s.sortedPending(),
		Processed: make([]*order.ProcessedOrder, 0, len(s.processed)),
		Visits:    make(map[string]*DayVisits, len(s.visits)),
	}
	for _, p := range s.processed {
		cp := *p
		snap.Processed = append(snap.Processed, &cp)
	}
	sort.Slice(snap.Processed, func(i, j int) bool {
		return snap.Processed[i].ProcessedAt.Before(snap.Processed[j].ProcessedAt)
	})
	for day, d := range s.visits {
		snap.Visits[day] = &DayVisits{Views: d.Views, Visitors: append([]string(nil), d.Visitors...)}
	}
	return snap
}

// Restore replaces the current state with snap. A nil snapshot empties the store.
func (s *Store) Restore(snap *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = make(map[string]*order.PendingOrder)
	s.processed = make(map[string]*order.ProcessedOrder)
	s.visits = make(map[string]*DayVisits)
	if snap == nil {
		return
	}
	for _, p := range snap.Pending {
		if p != nil && p.Key != "" {
			s.pending[p.Key] = clonePending(p)
		}
	}
	for _, p := range snap.Processed {
		if p != nil && p.OrderID != "" {
			cp := *p
			s.processed[p.OrderID] = &cp
		}
	}
	for day, d := range snap.Visits {
		if d != nil {
			s.visits[day] = &DayVisits{Views: d.Views, Visitors: append([]string{}, d.Visitors...)}
		}
	}
}

// ──────────────────────────────────────────────────
// Core
// ──────────────────────────────────────────────────

func (s *Store) Migrate(_ context.Context) error { return nil }
func (s *Store) Ping(_ context.Context) error    { return nil }
func (s *Store) Close() error                    { return nil }

// sortedPending must be called with s.mu held.
func (s *Store) sortedPending() []*order.PendingOrder {
	out := make([]*order.PendingOrder, 0, len(s.pending))
	for _, p := range s.pending {
		out = append(out, clonePending(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func clonePending(p *order.PendingOrder) *order.PendingOrder {
	cp := *p
	cp.Items = append([]order.LineItem{}, p.Items...)
	return &cp
}
