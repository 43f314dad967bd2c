package dto

// SweepTaskResult is the outcome of one named task within a trigger request
type SweepTaskResult struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	Processed int    `json:"processed"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
	Error     string `json:"error,omitempty"`
}

const (
	SweepTaskStatusCompleted = "completed"
	SweepTaskStatusFailed    = "failed"
)

// SweepResponse is returned by the sweep trigger endpoints. Success is true
// only when every task succeeded; per-task detail is always retained.
type SweepResponse struct {
	Success bool              `json:"success"`
	Tasks   []SweepTaskResult `json:"tasks"`
}
