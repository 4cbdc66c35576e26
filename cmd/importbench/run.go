package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alvmarrod/import-bench/internal/bench"
	"github.com/alvmarrod/import-bench/internal/browser"
	"github.com/alvmarrod/import-bench/internal/config"
	"github.com/alvmarrod/import-bench/internal/dataset"
	"github.com/alvmarrod/import-bench/internal/fixture"
	"github.com/alvmarrod/import-bench/internal/metrics"
	"github.com/alvmarrod/import-bench/internal/output"
	"github.com/alvmarrod/import-bench/internal/probe"
	"github.com/alvmarrod/import-bench/internal/report"
	"github.com/alvmarrod/import-bench/internal/storage"
	"github.com/alvmarrod/import-bench/internal/version"
)

// errIterationsFailed makes the process exit non-zero
var errIterationsFailed = errors.New("iterations failed")

// Termination reasons recorded in the metrics file and run history
const (
	reasonCompleted = "completed"
	reasonSignal    = "signal"
	reasonError     = "error"
	reasonForced    = "forced_exit"
)

func run(ctx context.Context, opts *options, stdout io.Writer) error {
	// Configure logging
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	configureLogging(cfg)

	logrus.Infof("Import bench v%s starting...", version.Version)
	logrus.Infof("Configuration loaded: target=%s, data_root=%s, results=%s, headless=%v",
		cfg.BaseURL, cfg.DataRoot, cfg.ResultsDir, cfg.IsHeadless())

	colorMode := output.ColorAuto
	if opts.noColor {
		colorMode = output.ColorNever
	}
	palette := output.NewPalette(output.ShouldUseColor(colorMode))

	if cfg.PreflightEnabled() {
		res, err := probe.Check(ctx, cfg.BaseURL, cfg.NavigationTimeout())
		if err != nil {
			return fmt.Errorf("preflight failed: %w", err)
		}
		logrus.Infof("Target reachable: %s responded %d (%q) in %v",
			res.Host, res.StatusCode, res.Title, res.Duration.Round(time.Millisecond))
	}

	// Initialize storage
	store, err := storage.NewStorage(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	runID, err := store.BeginRun(cfg.BaseURL, cfg.ProjectName)
	if err != nil {
		return err
	}
	logrus.Infof("Run %d recorded in %s", runID, cfg.DBPath)

	tracker := metrics.NewTracker(cfg.BaseURL, cfg.ProjectName)

	datasets, err := loadDatasets(cfg, tracker)
	if err != nil {
		finish(store, runID, tracker, cfg.MetricsPath, reasonError)
		return err
	}

	// Setup signal handler for graceful shutdown. The browser lives on ctx; a
	// first signal only cancels runCtx, which the runner checks between
	// iterations.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		sig := <-sigChan
		logrus.Warnf("Received signal: %v - stopping after the current iteration (repeat to force exit)", sig)
		cancel()

		sig = <-sigChan
		logrus.Warnf("Received second signal (%v) - forcing immediate exit!", sig)
		if err := tracker.WriteToFile(cfg.MetricsPath, reasonForced); err != nil {
			logrus.Errorf("Emergency metrics save failed: %v", err)
		}
		os.Exit(1)
	}()

	launcher, err := browser.Launch(ctx, browser.Options{
		Headless: cfg.IsHeadless(),
		ExecPath: cfg.ChromePath,
		Width:    cfg.ViewportWidth,
		Height:   cfg.ViewportHeight,
	})
	if err != nil {
		finish(store, runID, tracker, cfg.MetricsPath, reasonError)
		return err
	}

	writer := report.NewWriter(cfg.ResultsDir)
	runner := bench.NewRunner(cfg, pageFactory(launcher), writer,
		bench.WithHistory(store, runID),
		bench.WithTracker(tracker),
		bench.WithOutput(stdout, palette),
	)
	outcomes, runErr := runner.RunAll(runCtx, datasets)
	logrus.Infof("%d report(s) in %s", countWritten(outcomes), writer.Dir())

	reason := reasonCompleted
	switch {
	case runCtx.Err() != nil:
		reason = reasonSignal
	case runErr != nil:
		reason = reasonError
	}

	logrus.Info("Step 1/2: Closing browser...")
	launcher.Close()

	logrus.Info("Step 2/2: Writing final metrics...")
	finish(store, runID, tracker, cfg.MetricsPath, reason)

	if runErr != nil {
		return runErr
	}

	failed := 0
	for _, o := range outcomes {
		if !o.Passed() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errIterationsFailed, failed, len(outcomes))
	}

	logrus.Infof("All %d iterations passed", len(outcomes))
	return nil
}

// loadConfig reads the .env file, the config file and the flag overrides, in
// that order of increasing precedence
func loadConfig(opts *options) (*config.Config, error) {
	if err := config.LoadEnvFile(opts.envFile); err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if opts.dataRoot != "" {
		cfg.DataRoot = opts.dataRoot
	}
	if opts.baseURL != "" {
		cfg.BaseURL = opts.baseURL
	}
	if opts.skipPreflight {
		preflight := false
		cfg.Preflight = &preflight
	}
	if opts.verbose {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func configureLogging(cfg *config.Config) {
	level, err := logrus.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

// loadDatasets discovers datasets under the data root and falls back to a
// synthetic graph when there are none
func loadDatasets(cfg *config.Config, tracker *metrics.Tracker) ([]dataset.Dataset, error) {
	datasets, err := dataset.Discover(cfg.DataRoot)
	if err != nil {
		return nil, err
	}
	tracker.SetDatasetsDiscovered(len(datasets))

	if len(datasets) > 0 {
		labels := make([]string, 0, len(datasets))
		for _, ds := range datasets {
			labels = append(labels, ds.Label)
		}
		logrus.Infof("Discovered %d datasets under %s: %s", len(datasets), cfg.DataRoot, strings.Join(labels, ", "))
		return datasets, nil
	}

	g := fixture.NewGraph(cfg.FixtureNodes)
	logrus.Infof("No datasets under %s, importing a synthetic graph (%d nodes, %d edges)",
		cfg.DataRoot, len(g.Nodes), len(g.Edges))
	logrus.Debugf("Synthetic graph connected: %v", g.Connected())

	ds, err := fixture.Build(fixture.DefaultLabel, cfg.FixtureNodes)
	if err != nil {
		return nil, err
	}
	tracker.MarkSyntheticFallback()
	return []dataset.Dataset{ds}, nil
}

func countWritten(outcomes []bench.Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Path != "" {
			n++
		}
	}
	return n
}

func pageFactory(l *browser.Launcher) bench.PageFactory {
	return func(ctx context.Context) (bench.Page, error) {
		p, err := l.NewPage(ctx)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

// finish writes the metrics file and closes the run in history
func finish(store *storage.Storage, runID int64, tracker *metrics.Tracker, metricsPath, reason string) {
	logrus.Info("Final stats: " + tracker.LogProgress())

	if err := tracker.WriteToFile(metricsPath, reason); err != nil {
		logrus.Errorf("Failed to write metrics: %v", err)
	} else {
		logrus.Infof("Metrics written to %s", metricsPath)
	}

	if err := store.FinishRun(runID, reason); err != nil {
		logrus.Errorf("Failed to record run end: %v", err)
	}
}
