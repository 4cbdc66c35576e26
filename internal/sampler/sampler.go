// Package sampler measures rendering framerate from inside the page under
// test.
//
// The sampling loop runs in the page on requestAnimationFrame and does
// nothing but record inter-frame deltas. The host holds a Recording and ends
// it with a single window event; the page then resolves one promise with the
// raw deltas, which the host awaits and aggregates. The host never polls the
// page while it is sampling.
package sampler

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"sync"
)

// InstallScript starts the in-page loop and stores its result promise on
// window. It evaluates to false when a loop is already installed.
//
//go:embed sampler.js
var InstallScript string

// StopScript dispatches the one-shot stop event
const StopScript = `window.dispatchEvent(new Event("import-bench-stop")), true`

// ResultScript evaluates to the promise resolved by the stop event
const ResultScript = `window.__importBenchSampler`

var (
	// ErrAlreadyRunning is returned when the page already hosts a sampler
	ErrAlreadyRunning = errors.New("frame sampler already running in page")
	// ErrNotStarted is returned by Stop on a zero Recording
	ErrNotStarted = errors.New("frame sampler not started")
)

// Evaluator runs a JavaScript expression in the page and decodes its JSON
// value into res. With awaitPromise the call suspends until a returned
// promise settles.
type Evaluator interface {
	Evaluate(ctx context.Context, expression string, res any, awaitPromise bool) error
}

// FrameMetrics is the framerate aggregate of one import
type FrameMetrics struct {
	DurationMs float64 `json:"durationMs"`
	FrameCount int     `json:"frameCount"`
	AverageFps float64 `json:"averageFps"`
	MinFps     float64 `json:"minFps"`
	MaxFps     float64 `json:"maxFps"`
}

// Aggregate turns raw inter-frame deltas (ms) into FrameMetrics. Non-positive
// deltas come from throttled or background frames and are dropped before any
// statistic is computed. With no valid delta every rate is zero.
func Aggregate(durationMs float64, deltas []float64) FrameMetrics {
	m := FrameMetrics{DurationMs: durationMs}

	sum := 0.0
	minFps := math.Inf(1)
	maxFps := math.Inf(-1)
	for _, delta := range deltas {
		if !(delta > 0) || math.IsInf(delta, 0) {
			continue
		}
		fps := 1000 / delta
		sum += fps
		minFps = math.Min(minFps, fps)
		maxFps = math.Max(maxFps, fps)
		m.FrameCount++
	}

	if m.FrameCount == 0 {
		return m
	}
	m.AverageFps = sum / float64(m.FrameCount)
	m.MinFps = minFps
	m.MaxFps = maxFps
	return m
}

type pageResult struct {
	DurationMs float64   `json:"durationMs"`
	Deltas     []float64 `json:"deltas"`
}

// Recording is a running in-page sampler. Stop ends it exactly once.
type Recording struct {
	ev Evaluator

	once    sync.Once
	metrics FrameMetrics
	err     error
}

// Start installs the sampling loop in the page. Call it before triggering
// the work to be measured so no early frame is missed.
func Start(ctx context.Context, ev Evaluator) (*Recording, error) {
	var installed bool
	if err := ev.Evaluate(ctx, InstallScript, &installed, false); err != nil {
		return nil, fmt.Errorf("failed to install frame sampler: %w", err)
	}
	if !installed {
		return nil, ErrAlreadyRunning
	}
	return &Recording{ev: ev}, nil
}

// Stop sends the stop signal, waits for the page to resolve its samples and
// returns the aggregate. Later calls return the first call's result.
func (r *Recording) Stop(ctx context.Context) (FrameMetrics, error) {
	if r == nil || r.ev == nil {
		return FrameMetrics{}, ErrNotStarted
	}

	r.once.Do(func() {
		var dispatched bool
		if err := r.ev.Evaluate(ctx, StopScript, &dispatched, false); err != nil {
			r.err = fmt.Errorf("failed to signal frame sampler: %w", err)
			return
		}

		var res pageResult
		if err := r.ev.Evaluate(ctx, ResultScript, &res, true); err != nil {
			r.err = fmt.Errorf("failed to collect frame samples: %w", err)
			return
		}
		r.metrics = Aggregate(res.DurationMs, res.Deltas)
	})

	return r.metrics, r.err
}
