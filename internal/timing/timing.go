// Package timing reads navigation and paint timing from the page's
// performance timeline.
package timing

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/alvmarrod/import-bench/internal/sampler"
)

// Script evaluates to a RawTiming object. Every field may be null.
//
//go:embed timing.js
var Script string

// RawNavigation mirrors the PerformanceNavigationTiming fields we read
type RawNavigation struct {
	StartTime                float64 `json:"startTime"`
	RequestStart             float64 `json:"requestStart"`
	ResponseEnd              float64 `json:"responseEnd"`
	DomContentLoadedEventEnd float64 `json:"domContentLoadedEventEnd"`
	LoadEventEnd             float64 `json:"loadEventEnd"`
}

// RawTiming is what Script returns
type RawTiming struct {
	Navigation           *RawNavigation `json:"navigation"`
	FirstPaint           *float64       `json:"firstPaint"`
	FirstContentfulPaint *float64       `json:"firstContentfulPaint"`
}

// NavigationMetrics holds page load offsets in milliseconds. Absent entries
// encode as null.
type NavigationMetrics struct {
	DomContentLoaded     *float64 `json:"domContentLoaded"`
	LoadEvent            *float64 `json:"loadEvent"`
	ResponseTime         *float64 `json:"responseTime"`
	FirstPaint           *float64 `json:"firstPaint"`
	FirstContentfulPaint *float64 `json:"firstContentfulPaint"`
}

// Derive computes offsets relative to navigation start. It returns nil when
// the page exposed neither a navigation entry nor any paint mark.
func Derive(raw RawTiming) *NavigationMetrics {
	if raw.Navigation == nil && raw.FirstPaint == nil && raw.FirstContentfulPaint == nil {
		return nil
	}

	m := &NavigationMetrics{
		FirstPaint:           copyFloat(raw.FirstPaint),
		FirstContentfulPaint: copyFloat(raw.FirstContentfulPaint),
	}
	if nav := raw.Navigation; nav != nil {
		m.DomContentLoaded = ptr(nav.DomContentLoadedEventEnd - nav.StartTime)
		m.LoadEvent = ptr(nav.LoadEventEnd - nav.StartTime)
		m.ResponseTime = ptr(nav.ResponseEnd - nav.RequestStart)
	}
	return m
}

// Extract runs Script in the page and derives the metrics
func Extract(ctx context.Context, ev sampler.Evaluator) (*NavigationMetrics, error) {
	var raw RawTiming
	if err := ev.Evaluate(ctx, Script, &raw, false); err != nil {
		return nil, fmt.Errorf("failed to read performance timeline: %w", err)
	}
	return Derive(raw), nil
}

func ptr(v float64) *float64 {
	return &v
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return ptr(*v)
}
