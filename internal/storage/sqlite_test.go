package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	store, err := NewStorage(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRunLifecycle(t *testing.T) {
	store := newTestStorage(t)

	runID, err := store.BeginRun("https://example.test/app", "chromium")
	require.NoError(t, err)
	assert.Positive(t, runID)

	run, err := store.GetRun(runID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, "https://example.test/app", run.Target)
	assert.Equal(t, "chromium", run.Project)
	assert.Nil(t, run.FinishedAt)

	require.NoError(t, store.FinishRun(runID, "completed"))

	run, err = store.GetRun(runID)
	require.NoError(t, err)
	require.NotNil(t, run.FinishedAt)
	assert.Equal(t, "completed", run.TerminationReason)

	missing, err := store.GetRun(runID + 100)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAttachIteration(t *testing.T) {
	store := newTestStorage(t)

	runID, err := store.BeginRun("https://example.test/app", "chromium")
	require.NoError(t, err)

	_, err = store.AttachIteration(Iteration{
		RunID:        runID,
		DatasetLabel: "ds2",
		DatabaseName: "benchmark-ds2-1",
		ReportPath:   "/tmp/results/csv-import-ds2-1.json",
		ReportJSON:   `{"importDurationMs":12.5}`,
		Passed:       true,
	})
	require.NoError(t, err)

	_, err = store.AttachIteration(Iteration{
		RunID:        runID,
		DatasetLabel: "ds10",
		Error:        "import did not complete",
	})
	require.NoError(t, err)

	iterations, err := store.ListIterations(runID)
	require.NoError(t, err)
	require.Len(t, iterations, 2)

	assert.Equal(t, "ds2", iterations[0].DatasetLabel)
	assert.True(t, iterations[0].Passed)
	assert.Equal(t, "application/json", iterations[0].ContentType)
	assert.JSONEq(t, `{"importDurationMs":12.5}`, iterations[0].ReportJSON)

	assert.Equal(t, "ds10", iterations[1].DatasetLabel)
	assert.False(t, iterations[1].Passed)
	assert.Equal(t, "import did not complete", iterations[1].Error)
	assert.Empty(t, iterations[1].ReportJSON)

	other, err := store.ListIterations(runID + 1)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestNewStorageReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	store, err := NewStorage(path)
	require.NoError(t, err)
	runID, err := store.BeginRun("t", "p")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = NewStorage(path)
	require.NoError(t, err)
	defer store.Close()

	run, err := store.GetRun(runID)
	require.NoError(t, err)
	require.NotNil(t, run)
}
