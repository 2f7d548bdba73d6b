package models

// InsertRecordRequest creates a new watchlist entry via the admin API.
type InsertRecordRequest struct {
	Name      string `json:"name" validate:"required,min=1,max=200"`
	Ticker    string `json:"ticker" validate:"required,min=1,max=32"`
	Region    string `json:"region" default:"unspecified" validate:"oneof=domestic foreign unspecified"`
	Condition string `json:"condition" validate:"required,min=3,max=200"`
	Deadline  string `json:"deadline,omitempty"` // YYYY-MM-DD, optional
	Notify    *bool  `json:"notify" default:"true"`
}

// RunRequest triggers a batch run via the admin API.
type RunRequest struct {
	// Wait keeps the request open until the run finishes and returns the summary.
	Wait *bool `json:"wait" default:"true"`
}
