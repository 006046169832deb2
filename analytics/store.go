package analytics

import "context"

// DayStats is the page-view summary of one calendar day (UTC).
type DayStats struct {
	Date           string `json:"date"`
	Views          int64  `json:"views"`
	UniqueVisitors int64  `json:"unique_visitors"`
}

// Store persists visit counters.
type Store interface {
	// RecordVisit counts a view on day and adds visitorHash to the day's set
	// of unique visitors.
	RecordVisit(ctx context.Context, day, visitorHash string) error

	// VisitStats returns per-day summaries, newest day first.
	VisitStats(ctx context.Context) ([]DayStats, error)
}
