package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvmarrod/import-bench/internal/bench"
	"github.com/alvmarrod/import-bench/internal/config"
	"github.com/alvmarrod/import-bench/internal/dataset"
	"github.com/alvmarrod/import-bench/internal/fixture"
	"github.com/alvmarrod/import-bench/internal/metrics"
	"github.com/alvmarrod/import-bench/internal/version"
)

func clearBenchEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, "IMPORT_BENCH_") || key == "CSV_DATA_ROOT" {
			t.Setenv(key, "")
		}
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "importbench "+version.Version)
}

func TestRootFlags(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"config", "env-file", "data-root", "base-url", "no-color", "verbose", "skip-preflight"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
}

func TestLoadConfigFlagOverrides(t *testing.T) {
	clearBenchEnv(t)

	root := t.TempDir()
	cfg, err := loadConfig(&options{
		dataRoot:      root,
		baseURL:       "http://localhost:5173/app",
		skipPreflight: true,
		verbose:       true,
	})
	require.NoError(t, err)

	assert.Equal(t, root, cfg.DataRoot)
	assert.Equal(t, "http://localhost:5173/app", cfg.BaseURL)
	assert.False(t, cfg.PreflightEnabled())
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfigRejectsBadFlag(t *testing.T) {
	clearBenchEnv(t)

	_, err := loadConfig(&options{baseURL: "localhost"})
	var verr *config.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestLoadDatasetsFallsBackToFixture(t *testing.T) {
	clearBenchEnv(t)

	cfg, err := loadConfig(&options{dataRoot: filepath.Join(t.TempDir(), "missing")})
	require.NoError(t, err)
	tracker := metrics.NewTracker(cfg.BaseURL, cfg.ProjectName)

	datasets, err := loadDatasets(cfg, tracker)
	require.NoError(t, err)
	require.Len(t, datasets, 1)

	assert.Equal(t, fixture.DefaultLabel, datasets[0].Label)
	assert.Equal(t, dataset.KindGenerated, datasets[0].Kind())

	snap := tracker.GetSnapshot()
	assert.True(t, snap.SyntheticFallback)
	assert.Equal(t, 0, snap.DatasetsDiscovered)
}

func TestLoadDatasetsDiscovered(t *testing.T) {
	clearBenchEnv(t)

	root := t.TempDir()
	for _, label := range []string{"ds10", "ds2"} {
		dir := filepath.Join(root, label)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "nodes.csv"), []byte("node\nA\n"), 0o600))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "edges.csv"), []byte("source,target,weight\n"), 0o600))
	}

	cfg, err := loadConfig(&options{dataRoot: root})
	require.NoError(t, err)
	tracker := metrics.NewTracker(cfg.BaseURL, cfg.ProjectName)

	datasets, err := loadDatasets(cfg, tracker)
	require.NoError(t, err)
	require.Len(t, datasets, 2)
	assert.Equal(t, "ds2", datasets[0].Label)
	assert.Equal(t, 2, tracker.GetSnapshot().DatasetsDiscovered)
	assert.False(t, tracker.GetSnapshot().SyntheticFallback)
}

func TestCountWritten(t *testing.T) {
	outcomes := []bench.Outcome{
		{Label: "a", Path: "results/csv-import-a-1.json"},
		{Label: "b", Err: bench.ErrImportTimeout},
		{Label: "c", Path: "results/csv-import-c-2.json"},
	}
	assert.Equal(t, 2, countWritten(outcomes))
	assert.Equal(t, 0, countWritten(nil))
}
