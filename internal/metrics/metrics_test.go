package metrics

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvmarrod/import-bench/internal/storage"
)

func TestTrackerSnapshot(t *testing.T) {
	tr := NewTracker("https://example.test/app", "chromium")
	tr.SetDatasetsDiscovered(0)
	tr.MarkSyntheticFallback()
	tr.IncrementIterationsStarted()
	tr.IncrementIterationsStarted()
	tr.IncrementIterationsPassed()
	tr.IncrementIterationsFailed()
	tr.RecordImport(100, 60)
	tr.RecordImport(300, 30)

	s := tr.GetSnapshot()
	assert.Equal(t, "https://example.test/app", s.Target)
	assert.True(t, s.SyntheticFallback)
	assert.Equal(t, 2, s.IterationsStarted)
	assert.Equal(t, 1, s.IterationsPassed)
	assert.Equal(t, 1, s.IterationsFailed)
	assert.InDelta(t, 400, s.TotalImportTimeMs, 1e-9)
	assert.InDelta(t, 200, s.AvgImportTimeMs, 1e-9)
	assert.InDelta(t, 45, s.AvgFps, 1e-9)
	assert.False(t, s.StartTime.IsZero())

	assert.Equal(t, "Datasets: 0 | Iterations: 2 started, 1 passed, 1 failed | Avg import: 200.0ms", tr.LogProgress())
}

func TestTrackerConcurrentUpdates(t *testing.T) {
	tr := NewTracker("t", "p")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.IncrementIterationsStarted()
			tr.RecordImport(1, 1)
		}()
	}
	wg.Wait()

	s := tr.GetSnapshot()
	assert.Equal(t, 50, s.IterationsStarted)
	assert.InDelta(t, 50, s.TotalImportTimeMs, 1e-9)
}

func TestWriteToFile(t *testing.T) {
	tr := NewTracker("t", "chromium")
	tr.IncrementIterationsStarted()
	tr.IncrementIterationsPassed()
	tr.RecordImport(50, 58)

	path := filepath.Join(t.TempDir(), "metrics.json")
	require.NoError(t, tr.WriteToFile(path, "completed"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var m storage.Metrics
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "completed", m.TerminationReason)
	assert.Equal(t, 1, m.IterationsPassed)
	assert.InDelta(t, 50, m.AvgImportTimeMs, 1e-9)
	assert.False(t, m.EndTime.Before(m.StartTime))

	require.Error(t, tr.WriteToFile(filepath.Join(t.TempDir(), "missing", "metrics.json"), "x"))
}
