package storage

import "time"

// Run is one invocation of the benchmark against a target
type Run struct {
	RunID             int64
	Target            string
	Project           string
	StartedAt         time.Time
	FinishedAt        *time.Time
	TerminationReason string
}

// Iteration is the diagnostic record of one dataset's import: the full JSON
// report attached to its run plus the validation outcome
type Iteration struct {
	IterationID  int64
	RunID        int64
	DatasetLabel string
	DatabaseName string
	ReportPath   string
	ContentType  string
	ReportJSON   string
	Passed       bool
	Error        string
	CreatedAt    time.Time
}

// Metrics tracks run statistics for export on exit
type Metrics struct {
	StartTime          time.Time `json:"start_time"`
	EndTime            time.Time `json:"end_time"`
	Target             string    `json:"target"`
	Project            string    `json:"project"`
	DatasetsDiscovered int       `json:"datasets_discovered"`
	SyntheticFallback  bool      `json:"synthetic_fallback"`
	IterationsStarted  int       `json:"iterations_started"`
	IterationsPassed   int       `json:"iterations_passed"`
	IterationsFailed   int       `json:"iterations_failed"`
	TotalImportTimeMs  float64   `json:"total_import_time_ms"`
	AvgImportTimeMs    float64   `json:"avg_import_time_ms"`
	AvgFps             float64   `json:"avg_fps"`
	TerminationReason  string    `json:"termination_reason"`
}
