package models

import "time"

// AlertEvent is published once per newly achieved condition.
type AlertEvent struct {
	RecordID  string    `json:"record_id"`
	Name      string    `json:"name"`
	Ticker    string    `json:"ticker"`
	Condition string    `json:"condition"`
	Price     float64   `json:"price"`
	At        time.Time `json:"at"`
}

// RecordError captures a record-scoped failure with enough context to diagnose.
type RecordError struct {
	RecordID string `json:"record_id"`
	Ticker   string `json:"ticker"`
	Stage    string `json:"stage"` // fetch, condition, persist, notify, prune
	Message  string `json:"message"`
}

// RunSummary aggregates the outcome of one batch run.
type RunSummary struct {
	Job        string        `json:"job"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Total      int           `json:"total"`
	Evaluated  int           `json:"evaluated"`
	Skipped    int           `json:"skipped"`
	Notified   int           `json:"notified"`
	Errored    int           `json:"errored"`
	Pruned     int           `json:"pruned"`
	Errors     []RecordError `json:"errors,omitempty"`
}
