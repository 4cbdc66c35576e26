// Package report assembles, validates and persists the per-iteration
// benchmark report.
package report

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alvmarrod/import-bench/internal/dataset"
	"github.com/alvmarrod/import-bench/internal/sampler"
	"github.com/alvmarrod/import-bench/internal/timing"
)

// ContentType of the serialized report
const ContentType = "application/json"

// ErrNonPositiveDuration flags a report whose import took zero or negative
// time, which can only come from a broken measurement
var ErrNonPositiveDuration = errors.New("import duration must be positive")

// DatasetFiles points at the CSVs a file dataset was read from
type DatasetFiles struct {
	NodesPath string `json:"nodesPath"`
	EdgesPath string `json:"edgesPath"`
}

// Timestamps are wall-clock milliseconds since the Unix epoch
type Timestamps struct {
	NavigationStart float64 `json:"navigationStart"`
	NavigationEnd   float64 `json:"navigationEnd"`
}

// Report is the result of one iteration. It is written once and not
// modified afterwards.
type Report struct {
	Target            string                    `json:"target"`
	DatasetLabel      string                    `json:"datasetLabel"`
	DatasetType       dataset.Kind              `json:"datasetType"`
	DatasetFiles      *DatasetFiles             `json:"datasetFiles"`
	DatabaseName      string                    `json:"databaseName"`
	Timestamps        Timestamps                `json:"timestamps"`
	NavigationMetrics *timing.NavigationMetrics `json:"navigationMetrics"`
	ImportDurationMs  float64                   `json:"importDurationMs"`
	FrameMetrics      sampler.FrameMetrics      `json:"frameMetrics"`
}

// New starts a report for ds against target
func New(target string, ds dataset.Dataset) *Report {
	r := &Report{
		Target:       target,
		DatasetLabel: ds.Label,
		DatasetType:  ds.Kind(),
	}
	if ds.Kind() == dataset.KindFile {
		r.DatasetFiles = &DatasetFiles{NodesPath: ds.NodesPath, EdgesPath: ds.EdgesPath}
	}
	return r
}

// Validate rejects a report whose measurement cannot be trusted
func (r *Report) Validate() error {
	if !(r.ImportDurationMs > 0) {
		return fmt.Errorf("%w: got %vms", ErrNonPositiveDuration, r.ImportDurationMs)
	}
	return nil
}

// JSON returns the indented serialization written to disk and attached to
// the run history
func (r *Report) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return data, nil
}

// Summary is the compact view printed after each iteration
type Summary struct {
	NavigationMs float64
	ImportMs     float64
	FpsAvg       float64
	FpsMin       float64
	FpsMax       float64
}

// Summary extracts the headline numbers
func (r *Report) Summary() Summary {
	return Summary{
		NavigationMs: r.Timestamps.NavigationEnd - r.Timestamps.NavigationStart,
		ImportMs:     r.ImportDurationMs,
		FpsAvg:       r.FrameMetrics.AverageFps,
		FpsMin:       r.FrameMetrics.MinFps,
		FpsMax:       r.FrameMetrics.MaxFps,
	}
}
