package repository

import (
	"context"

	"StockWatch/internal/domain/models"
)

// RecordStore is the external watchlist record store. It is the single
// source of truth and is re-read in full on every run.
type RecordStore interface {
	ListRecords(ctx context.Context) ([]*models.WatchlistRecord, error)
	PatchRecord(ctx context.Context, id string, patch *models.RecordPatch) error
	InsertRecord(ctx context.Context, rec *models.WatchlistRecord) (string, error)
}

// MarketData returns the latest daily trading snapshot for a resolved
// ticker. Fundamentals is advisory enrichment; a ticker without coverage
// returns (nil, nil).
type MarketData interface {
	LatestQuote(ctx context.Context, ticker string) (*models.Quote, error)
	Fundamentals(ctx context.Context, ticker string) (*models.Fundamentals, error)
}

// Notifier delivers a single text payload, fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// EventPublisher streams alert and run-summary events to the event backbone.
type EventPublisher interface {
	PublishAlert(ctx context.Context, ev *models.AlertEvent) error
	PublishSummary(ctx context.Context, s *models.RunSummary) error
	Close() error
}

// RunHistory is the execution-history service for a named recurring job.
// List returns entries in the service's native ordering, newest first.
type RunHistory interface {
	Record(ctx context.Context, rec *models.ExecutionRecord) error
	List(ctx context.Context, job string) ([]*models.ExecutionRecord, error)
	Delete(ctx context.Context, id string) error
}

// RunLock serializes batch runs across overlapping scheduler triggers.
type RunLock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type Metrics interface {
	RecordOutcome(outcome string)
	RecordError(kind string)
	RecordLastPrice(ticker string, price float64)
	RecordLatency(op string, seconds float64)
}
