package model

import "time"

// RunStatus represents the current state of an experiment run.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusBuilding   RunStatus = "building"
	RunStatusEvaluating RunStatus = "evaluating"
	RunStatusComplete   RunStatus = "complete"
	RunStatusFailed     RunStatus = "failed"
)

// Run is one experiment execution.
type Run struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Oracle    string      `json:"oracle"`
	Status    RunStatus   `json:"status"`
	Summary   *RunSummary `json:"summary,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// RunSummary holds the counters reported when a run finishes.
type RunSummary struct {
	Documents      int     `json:"documents"`
	Units          int     `json:"units"`
	Processed      int     `json:"processed"`
	Skipped        int     `json:"skipped"`
	OracleCalls    int64   `json:"oracle_calls"`
	OracleFailures int64   `json:"oracle_failures"`
	DurationMs     int64   `json:"duration_ms"`
	Error          string  `json:"error,omitempty"`
	BestF1         float64 `json:"best_f1"`
}

// EvaluationResult is one row of the results table.
type EvaluationResult struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Setting   string    `json:"setting"`
	Threshold float64   `json:"threshold"`
	Recall    float64   `json:"recall"`
	Precision float64   `json:"precision"`
	F1        float64   `json:"f1"`
	CreatedAt time.Time `json:"created_at"`
}

// SkippedItem records an input item dropped during a run.
type SkippedItem struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Item      string    `json:"item"`
	Stage     string    `json:"stage"`
	Reason    string    `json:"reason"`
	ErrorType string    `json:"error_type"` // "transient" or "permanent"
	CreatedAt time.Time `json:"created_at"`
}
