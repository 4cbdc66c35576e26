// Package bench runs the CSV import benchmark: one isolated browser tab per
// dataset, timing the import and sampling the framerate while it runs.
package bench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alvmarrod/import-bench/internal/config"
	"github.com/alvmarrod/import-bench/internal/dataset"
	"github.com/alvmarrod/import-bench/internal/metrics"
	"github.com/alvmarrod/import-bench/internal/output"
	"github.com/alvmarrod/import-bench/internal/report"
	"github.com/alvmarrod/import-bench/internal/sampler"
	"github.com/alvmarrod/import-bench/internal/storage"
	"github.com/alvmarrod/import-bench/internal/timing"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNavigationTimeout means the app did not load and go network idle in time
	ErrNavigationTimeout = errors.New("navigation timed out")
	// ErrDialogTimeout means an import dialog interaction did not complete in time
	ErrDialogTimeout = errors.New("import dialog timed out")
	// ErrImportTimeout means the new database never showed up in the selector
	ErrImportTimeout = errors.New("import did not complete in time")
)

// Page is a browser tab able to perform the import workflow
type Page interface {
	sampler.Evaluator
	Navigate(ctx context.Context, url string) error
	EnterApp(ctx context.Context, lookFor time.Duration) (bool, error)
	OpenImportDialog(ctx context.Context) error
	FillDatabaseName(ctx context.Context, name string) error
	Upload(ctx context.Context, nodesPath, edgesPath string) error
	TriggerImport(ctx context.Context) error
	WaitForDatabase(ctx context.Context, name string) error
	Close() error
}

// PageFactory opens a fresh tab
type PageFactory func(ctx context.Context) (Page, error)

// History receives the diagnostic record of each iteration
type History interface {
	AttachIteration(it storage.Iteration) (int64, error)
}

// Outcome is the result of one dataset's iteration
type Outcome struct {
	Label  string
	Report *report.Report
	Path   string
	Err    error
}

// Passed reports whether the iteration produced a valid, persisted report
func (o Outcome) Passed() bool {
	return o.Err == nil
}

// Runner executes iterations sequentially
type Runner struct {
	cfg     *config.Config
	pages   PageFactory
	writer  *report.Writer
	history History
	runID   int64
	tracker *metrics.Tracker
	out     io.Writer
	palette *output.Palette
	now     func() time.Time
}

// Option customizes a Runner
type Option func(*Runner)

// WithHistory attaches every iteration to runID in h
func WithHistory(h History, runID int64) Option {
	return func(r *Runner) {
		r.history = h
		r.runID = runID
	}
}

// WithTracker feeds iteration counters into t
func WithTracker(t *metrics.Tracker) Option {
	return func(r *Runner) { r.tracker = t }
}

// WithOutput sets where summary tables are printed
func WithOutput(w io.Writer, palette *output.Palette) Option {
	return func(r *Runner) {
		r.out = w
		r.palette = palette
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner creates a runner. Summaries go to stdout without colour unless
// WithOutput says otherwise.
func NewRunner(cfg *config.Config, pages PageFactory, writer *report.Writer, opts ...Option) *Runner {
	r := &Runner{
		cfg:     cfg,
		pages:   pages,
		writer:  writer,
		out:     os.Stdout,
		palette: output.NewPalette(false),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunAll runs one iteration per dataset in order. A failing iteration does
// not stop the loop. Cancelling ctx stops it before the next iteration; the
// running one finishes within its own timeout.
func (r *Runner) RunAll(ctx context.Context, datasets []dataset.Dataset) ([]Outcome, error) {
	if err := dataset.ValidateLabels(datasets); err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, 0, len(datasets))
	for i, ds := range datasets {
		if err := ctx.Err(); err != nil {
			logrus.Warnf("Stopping before dataset %s: %v", ds.Label, err)
			return outcomes, err
		}

		logrus.Infof("Iteration %d/%d: dataset %s (%s)", i+1, len(datasets), ds.Label, ds.Kind())
		outcomes = append(outcomes, r.runOne(context.WithoutCancel(ctx), ds))

		if r.tracker != nil {
			logrus.Info(r.tracker.LogProgress())
		}
	}
	return outcomes, nil
}

func (r *Runner) runOne(ctx context.Context, ds dataset.Dataset) Outcome {
	if r.tracker != nil {
		r.tracker.IncrementIterationsStarted()
	}

	out := Outcome{Label: ds.Label}
	rep, err := r.RunIteration(ctx, ds)
	out.Report = rep

	if err == nil {
		out.Path, err = r.writer.Write(rep)
		if err == nil {
			logrus.Infof("Report written to %s", out.Path)
			err = rep.Validate()
		}
	}
	out.Err = err

	if err != nil {
		logrus.Errorf("Iteration for dataset %s failed: %v", ds.Label, err)
	}

	r.attach(out)
	r.count(out)
	if rep != nil {
		report.PrintSummary(r.out, rep, err, r.palette)
	}
	return out
}

func (r *Runner) attach(out Outcome) {
	if r.history == nil {
		return
	}

	it := storage.Iteration{
		RunID:        r.runID,
		DatasetLabel: out.Label,
		ReportPath:   out.Path,
		ContentType:  report.ContentType,
		Passed:       out.Passed(),
	}
	if out.Err != nil {
		it.Error = out.Err.Error()
	}
	if out.Report != nil {
		it.DatabaseName = out.Report.DatabaseName
		if data, err := out.Report.JSON(); err == nil {
			it.ReportJSON = string(data)
		}
	}

	if _, err := r.history.AttachIteration(it); err != nil {
		logrus.Warnf("Failed to attach report for dataset %s: %v", out.Label, err)
	}
}

func (r *Runner) count(out Outcome) {
	if r.tracker == nil {
		return
	}
	if !out.Passed() {
		r.tracker.IncrementIterationsFailed()
		return
	}
	r.tracker.IncrementIterationsPassed()
	r.tracker.RecordImport(out.Report.ImportDurationMs, out.Report.FrameMetrics.AverageFps)
}

// RunIteration performs the import workflow for ds in a fresh tab and
// returns its report. The report is returned (partially filled) even when
// the iteration fails so the failure can still be summarized.
func (r *Runner) RunIteration(ctx context.Context, ds dataset.Dataset) (*report.Report, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.IterationTimeout())
	defer cancel()

	rep := report.New(r.cfg.BaseURL, ds)

	workDir, err := os.MkdirTemp("", "import-bench-*")
	if err != nil {
		return rep, fmt.Errorf("failed to create work directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	nodesPath, edgesPath, err := ds.Materialize(workDir)
	if err != nil {
		return rep, err
	}

	page, err := r.pages(ctx)
	if err != nil {
		return rep, fmt.Errorf("failed to open page: %w", err)
	}
	defer page.Close()

	// Load the app
	rep.Timestamps.NavigationStart = epochMs(r.now())
	err = step(ctx, r.cfg.NavigationTimeout(), ErrNavigationTimeout, "navigate", func(ctx context.Context) error {
		return page.Navigate(ctx, r.cfg.BaseURL)
	})
	rep.Timestamps.NavigationEnd = epochMs(r.now())
	if err != nil {
		return rep, err
	}

	nav, err := timing.Extract(ctx, page)
	if err != nil {
		logrus.Warnf("Navigation metrics unavailable for dataset %s: %v", ds.Label, err)
	}
	rep.NavigationMetrics = nav

	// The landing page is optional; only the iteration deadline is fatal here
	err = step(ctx, r.cfg.LandingTimeout()+r.cfg.NavigationTimeout(), ErrNavigationTimeout, "enter app", func(ctx context.Context) error {
		clicked, err := page.EnterApp(ctx, r.cfg.LandingTimeout())
		if clicked {
			logrus.Debug("Clicked through landing page")
		}
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return rep, err
		}
		logrus.Warnf("Landing page guard for dataset %s ignored: %v", ds.Label, err)
	}

	// Fill the import dialog
	rep.DatabaseName = r.databaseName(ds.Label)
	err = step(ctx, r.cfg.ActionTimeout(), ErrDialogTimeout, "open import dialog", page.OpenImportDialog)
	if err == nil {
		err = step(ctx, r.cfg.ActionTimeout(), ErrDialogTimeout, "fill database name", func(ctx context.Context) error {
			return page.FillDatabaseName(ctx, rep.DatabaseName)
		})
	}
	if err == nil {
		err = step(ctx, r.cfg.ActionTimeout(), ErrDialogTimeout, "upload files", func(ctx context.Context) error {
			return page.Upload(ctx, nodesPath, edgesPath)
		})
	}
	if err != nil {
		return rep, err
	}

	// Measure the import
	rec, err := sampler.Start(ctx, page)
	if err != nil {
		return rep, err
	}

	importStart := r.now()
	err = step(ctx, r.cfg.ActionTimeout(), ErrDialogTimeout, "trigger import", page.TriggerImport)
	if err == nil {
		err = step(ctx, r.cfg.ImportTimeout(), ErrImportTimeout, "wait for database", func(ctx context.Context) error {
			return page.WaitForDatabase(ctx, rep.DatabaseName)
		})
	}

	// The import ends once the sampler has delivered its frames
	frames, stopErr := rec.Stop(ctx)
	importEnd := r.now()
	if err != nil {
		return rep, err
	}
	if stopErr != nil {
		return rep, stopErr
	}

	rep.ImportDurationMs = float64(importEnd.Sub(importStart)) / float64(time.Millisecond)
	rep.FrameMetrics = frames
	return rep, nil
}

func (r *Runner) databaseName(label string) string {
	return fmt.Sprintf("%s-%s-%d", r.cfg.DatabasePrefix, dataset.Slug(label), r.now().UnixMilli())
}

// step runs fn under its own timeout. Running out of that timeout is
// reported as timeoutErr; the iteration deadline is reported as is.
func step(ctx context.Context, timeout time.Duration, timeoutErr error, name string, fn func(context.Context) error) error {
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(stepCtx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%w: %s after %v: %w", timeoutErr, name, timeout, err)
	}
	return fmt.Errorf("%s: %w", name, err)
}

func epochMs(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Millisecond)
}
