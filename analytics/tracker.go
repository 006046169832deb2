// Package analytics counts storefront page views per day along with the
// number of distinct visitors. Visitor ids are hashed before they are stored.
package analytics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/xraph/fulfillment"
)

// DayLayout formats the day key of a visit.
const DayLayout = "2006-01-02"

// Tracker records visits into a Store.
type Tracker struct {
	store  Store
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

// NewTracker creates a Tracker.
func NewTracker(s Store, opts ...Option) *Tracker {
	t := &Tracker{
		store:  s,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Track counts one view of page by visitorID.
func (t *Tracker) Track(ctx context.Context, visitorID, page string) error {
	if visitorID == "" {
		return fulfillment.ValidationError{Field: "visitor_id", Message: "must not be empty"}
	}
	day := t.now().UTC().Format(DayLayout)
	if err := t.store.RecordVisit(ctx, day, HashVisitor(visitorID)); err != nil {
		return err
	}
	t.logger.Debug("analytics: visit recorded", "day", day, "page", page)
	return nil
}

// Stats returns per-day summaries, newest first.
func (t *Tracker) Stats(ctx context.Context) ([]DayStats, error) {
	return t.store.VisitStats(ctx)
}

// HashVisitor returns the first 16 hex characters of the SHA-256 of id.
func HashVisitor(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])[:16]
}
