// Package browser drives a headless Chromium tab through the application's
// CSV import workflow over the Chrome DevTools Protocol.
package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

// Options configures the Chromium process
type Options struct {
	Headless bool
	ExecPath string
	Width    int
	Height   int
	// LandingCTA is the lower-case text of the landing page button that leads
	// into the app shell
	LandingCTA string
}

// DefaultLandingCTA matches the marketing page's entry button
const DefaultLandingCTA = "go to novagraph"

// Launcher owns one Chromium process; each page is a separate tab
type Launcher struct {
	opts          Options
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// Launch starts Chromium and keeps it running until Close
func Launch(ctx context.Context, opts Options) (*Launcher, error) {
	if opts.LandingCTA == "" {
		opts.LandingCTA = DefaultLandingCTA
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.WindowSize(opts.Width, opts.Height),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logrus.Debugf),
		chromedp.WithErrorf(logrus.Debugf),
	)

	// An empty Run starts the browser
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start chromium: %w", err)
	}

	logrus.Infof("Chromium started (headless=%v, viewport=%dx%d)", opts.Headless, opts.Width, opts.Height)
	return &Launcher{
		opts:          opts,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// NewPage opens a fresh tab with page lifecycle events enabled
func (l *Launcher) NewPage(ctx context.Context) (*Page, error) {
	tabCtx, cancel := chromedp.NewContext(l.browserCtx)

	p := &Page{ctx: tabCtx, cancel: cancel, landingCTA: l.opts.LandingCTA}
	if err := p.run(ctx, page.SetLifecycleEventsEnabled(true)); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	return p, nil
}

// Close shuts the browser down
func (l *Launcher) Close() {
	l.browserCancel()
	l.allocCancel()
	logrus.Debug("Chromium stopped")
}
