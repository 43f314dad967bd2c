package types

import "time"

// SweepRunResult is the per-run aggregate outcome of a batch sweep. Each run
// returns its own result object; there is no shared mutable error state
// between runs.
type SweepRunResult struct {
	Task       string          `json:"task"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Processed  int             `json:"processed"`
	Succeeded  int             `json:"succeeded"`
	Failed     int             `json:"failed"`
	Skipped    int             `json:"skipped"`
	Errors     []SweepRunError `json:"errors,omitempty"`
}

// SweepRunError records one isolated per-item failure inside a sweep
type SweepRunError struct {
	InvoiceID string `json:"invoice_id"`
	Error     string `json:"error"`
}
