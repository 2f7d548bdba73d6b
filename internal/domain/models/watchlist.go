package models

import "time"

// WatchlistRecord is one monitored instrument with its alert configuration
// and last-known state as stored in the record store.
type WatchlistRecord struct {
	ID            string
	DisplayName   string
	RawTicker     string
	Region        MarketRegion
	Condition     string
	Deadline      *time.Time
	NotifyEnabled bool
	Achieved      bool
	LastPrice     *float64
	LastCheckedAt *time.Time
}

// PastDeadline reports whether the record's deadline date lies strictly
// before the calendar date of now. Records past their deadline are frozen:
// never fetched, evaluated, or mutated.
func (r *WatchlistRecord) PastDeadline(now time.Time) bool {
	if r.Deadline == nil {
		return false
	}
	dy, dm, dd := r.Deadline.Date()
	ny, nm, nd := now.Date()
	deadline := time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC)
	today := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	return deadline.Before(today)
}

// RecordPatch is a partial field set applied to one record by id.
// Nil fields are left untouched in the store.
type RecordPatch struct {
	DisplayName   *string
	LastPrice     *float64
	LastCheckedAt *time.Time
	Achieved      *bool
	DividendYield *float64
	PriceEarnings *float64
	MarketCap     *float64
	DividendDate  *time.Time
	EarningsDate  *time.Time
}

// Empty reports whether the patch carries no changes.
func (p *RecordPatch) Empty() bool {
	return *p == (RecordPatch{})
}

// Quote is the latest daily trading snapshot for one ticker.
// Close is nil when the provider returned no session data.
type Quote struct {
	Ticker       string
	Name         string
	Close        *float64
	PrevClosePct *float64
	AsOf         time.Time
}

// Fundamentals is advisory valuation data for one ticker. Every field is
// optional; a missing value leaves the stored one untouched.
type Fundamentals struct {
	DividendYield *float64
	PriceEarnings *float64
	MarketCap     *float64
	DividendDate  *time.Time
	EarningsDate  *time.Time
}

// ExecutionRecord is one historical run entry for a named job.
// Only its id and the history service's recency ordering matter to pruning.
type ExecutionRecord struct {
	ID        string
	Job       string
	StartedAt time.Time
	Evaluated int
	Skipped   int
	Notified  int
	Errored   int
}
