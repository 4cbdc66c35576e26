package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/alvmarrod/import-bench/internal/storage"
)

// Tracker holds and manages run metrics
type Tracker struct {
	mu            sync.Mutex
	data          storage.Metrics
	totalImportMs float64
	totalFps      float64
	importCount   int
}

// NewTracker creates a new metrics tracker
func NewTracker(target, project string) *Tracker {
	return &Tracker{
		data: storage.Metrics{
			StartTime: time.Now(),
			Target:    target,
			Project:   project,
		},
	}
}

// SetDatasetsDiscovered records how many datasets discovery returned
func (t *Tracker) SetDatasetsDiscovered(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.DatasetsDiscovered = n
}

// MarkSyntheticFallback records that the synthetic fixture replaced discovery
func (t *Tracker) MarkSyntheticFallback() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.SyntheticFallback = true
}

// IncrementIterationsStarted increments the started iterations counter
func (t *Tracker) IncrementIterationsStarted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.IterationsStarted++
}

// IncrementIterationsPassed increments the passed iterations counter
func (t *Tracker) IncrementIterationsPassed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.IterationsPassed++
}

// IncrementIterationsFailed increments the failed iterations counter
func (t *Tracker) IncrementIterationsFailed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.IterationsFailed++
}

// RecordImport records one completed import's duration and average framerate
func (t *Tracker) RecordImport(durationMs, averageFps float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totalImportMs += durationMs
	t.totalFps += averageFps
	t.importCount++
}

// GetSnapshot returns a copy of current metrics
func (t *Tracker) GetSnapshot() storage.Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	snapshot := t.data
	t.finalize(&snapshot)
	return snapshot
}

func (t *Tracker) finalize(m *storage.Metrics) {
	m.TotalImportTimeMs = t.totalImportMs
	if t.importCount > 0 {
		m.AvgImportTimeMs = t.totalImportMs / float64(t.importCount)
		m.AvgFps = t.totalFps / float64(t.importCount)
	}
}

// WriteToFile exports metrics to a JSON file
func (t *Tracker) WriteToFile(path, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Finalize metrics
	t.data.EndTime = time.Now()
	t.data.TerminationReason = reason
	t.finalize(&t.data)

	// Marshal to JSON
	jsonData, err := json.MarshalIndent(t.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	// Write to file
	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}

	return nil
}

// LogProgress renders current metrics as a single log line
func (t *Tracker) LogProgress() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	avg := 0.0
	if t.importCount > 0 {
		avg = t.totalImportMs / float64(t.importCount)
	}
	return fmt.Sprintf("Datasets: %d | Iterations: %d started, %d passed, %d failed | Avg import: %.1fms",
		t.data.DatasetsDiscovered,
		t.data.IterationsStarted,
		t.data.IterationsPassed,
		t.data.IterationsFailed,
		avg,
	)
}
