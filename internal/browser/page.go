package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

// XPath selectors for the import workflow. Matching is on visible text so the
// app's generated class names don't matter.
var (
	databaseSelectorSel = `(//span[contains(normalize-space(.), 'Database')])[1]/..`
	databaseButtonSel   = `(` + databaseSelectorSel + `//button)[1]`
	createGraphSel      = `//*[@role='option'][` + textContains("create graph") + `]`
	importDialogSel     = `//*[@role='dialog'][` + textContains("import file") + `]`
	nameInputSel        = `//*[@role='dialog']//input[@placeholder='Enter a name for the database...']`
	createButtonSel     = `//*[@role='dialog']//button[normalize-space(.)='Create Graph']`
	nodesInputSel       = `[role="dialog"] input#nodes-csv`
	edgesInputSel       = `[role="dialog"] input#edges-csv`
)

// textContains is a case-insensitive XPath 1.0 text predicate. needle must be
// lower-case.
func textContains(needle string) string {
	return fmt.Sprintf(
		"contains(translate(normalize-space(.), 'ABCDEFGHIJKLMNOPQRSTUVWXYZ', 'abcdefghijklmnopqrstuvwxyz'), '%s')",
		strings.ToLower(needle),
	)
}

func buttonWithText(needle string) string {
	return `//button[` + textContains(needle) + `]`
}

// Page is one browser tab
type Page struct {
	ctx        context.Context
	cancel     context.CancelFunc
	landingCTA string
}

// run executes actions on the tab while honoring the caller's deadline and
// cancellation. Cancelling the derived context does not close the tab.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()

	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

// Evaluate runs a JavaScript expression in the page and decodes its value
// into res. With awaitPromise the call suspends until the promise settles.
func (p *Page) Evaluate(ctx context.Context, expression string, res any, awaitPromise bool) error {
	var opts []chromedp.EvaluateOption
	if awaitPromise {
		opts = append(opts, func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
			return ep.WithAwaitPromise(true)
		})
	}
	return p.run(ctx, chromedp.Evaluate(expression, res, opts...))
}

// idleWatch waits for the main frame's networkIdle lifecycle event belonging
// to the next document loaded after it is armed. With sameDocument set, a
// client-side route change (history API or fragment) also counts.
type idleWatch struct {
	mu     sync.Mutex
	loader cdp.LoaderID
	once   sync.Once
	idle   chan struct{}
	stop   context.CancelFunc
}

func (p *Page) watchIdle(sameDocument bool) *idleWatch {
	w := &idleWatch{idle: make(chan struct{})}

	listenCtx, stop := context.WithCancel(p.ctx)
	w.stop = stop

	mainFrame := cdp.FrameID(chromedp.FromContext(p.ctx).Target.TargetID)
	chromedp.ListenTarget(listenCtx, func(ev any) {
		switch e := ev.(type) {
		case *page.EventNavigatedWithinDocument:
			if sameDocument && e.FrameID == mainFrame {
				w.done()
			}
		case *page.EventLifecycleEvent:
			if e.FrameID != mainFrame {
				return
			}
			w.mu.Lock()
			defer w.mu.Unlock()
			switch e.Name {
			case "init":
				w.loader = e.LoaderID
			case "networkIdle":
				if w.loader != "" && e.LoaderID == w.loader {
					w.done()
				}
			}
		}
	})
	return w
}

func (w *idleWatch) done() {
	w.once.Do(func() { close(w.idle) })
}

func (w *idleWatch) wait(ctx context.Context) error {
	defer w.stop()
	select {
	case <-w.idle:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for network idle: %w", ctx.Err())
	}
}

// Navigate loads url and returns once the main document has loaded and the
// network has gone idle
func (p *Page) Navigate(ctx context.Context, url string) error {
	w := p.watchIdle(false)
	if err := p.run(ctx, chromedp.Navigate(url)); err != nil {
		w.stop()
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return w.wait(ctx)
}

// EnterApp clicks the landing page entry button when it shows up within
// lookFor. It reports whether a click happened; absence is not an error.
// After a click it waits for either a new document to go network idle or an
// in-app route change.
func (p *Page) EnterApp(ctx context.Context, lookFor time.Duration) (bool, error) {
	if lookFor <= 0 {
		return false, nil
	}

	sel := buttonWithText(p.landingCTA)

	findCtx, cancel := context.WithTimeout(ctx, lookFor)
	err := p.run(findCtx, chromedp.WaitVisible(sel, chromedp.BySearch))
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		logrus.Debugf("Landing button %q not shown within %v", p.landingCTA, lookFor)
		return false, nil
	}

	w := p.watchIdle(true)
	if err := p.run(ctx, chromedp.Click(sel, chromedp.BySearch)); err != nil {
		w.stop()
		return false, fmt.Errorf("click landing button: %w", err)
	}
	if err := w.wait(ctx); err != nil {
		return true, err
	}
	return true, nil
}

// OpenImportDialog opens the database menu, picks "create graph" and waits
// for the import dialog
func (p *Page) OpenImportDialog(ctx context.Context) error {
	err := p.run(ctx,
		chromedp.WaitVisible(databaseButtonSel, chromedp.BySearch),
		chromedp.ScrollIntoView(databaseButtonSel, chromedp.BySearch),
		chromedp.Click(databaseButtonSel, chromedp.BySearch),
		chromedp.Click(createGraphSel, chromedp.BySearch),
		chromedp.WaitVisible(importDialogSel, chromedp.BySearch),
	)
	if err != nil {
		return fmt.Errorf("open import dialog: %w", err)
	}
	return nil
}

// FillDatabaseName types name into the dialog's name field
func (p *Page) FillDatabaseName(ctx context.Context, name string) error {
	err := p.run(ctx,
		chromedp.WaitVisible(nameInputSel, chromedp.BySearch),
		chromedp.Focus(nameInputSel, chromedp.BySearch),
		chromedp.SendKeys(nameInputSel, name, chromedp.BySearch),
	)
	if err != nil {
		return fmt.Errorf("fill database name: %w", err)
	}
	return nil
}

// Upload sets the nodes and edges file inputs. File inputs are often hidden,
// so only presence in the DOM is required.
func (p *Page) Upload(ctx context.Context, nodesPath, edgesPath string) error {
	err := p.run(ctx,
		chromedp.SetUploadFiles(nodesInputSel, []string{nodesPath}, chromedp.ByQuery, chromedp.NodeReady),
		chromedp.SetUploadFiles(edgesInputSel, []string{edgesPath}, chromedp.ByQuery, chromedp.NodeReady),
	)
	if err != nil {
		return fmt.Errorf("upload csv files: %w", err)
	}
	return nil
}

// TriggerImport clicks "Create Graph"
func (p *Page) TriggerImport(ctx context.Context) error {
	if err := p.run(ctx, chromedp.Click(createButtonSel, chromedp.BySearch)); err != nil {
		return fmt.Errorf("trigger import: %w", err)
	}
	return nil
}

// WaitForDatabase suspends until the database selector's button shows name.
// The caller's deadline bounds the wait.
func (p *Page) WaitForDatabase(ctx context.Context, name string) error {
	timeoutMs := int64(0)
	if deadline, ok := ctx.Deadline(); ok {
		timeoutMs = time.Until(deadline).Milliseconds()
		if timeoutMs <= 0 {
			return context.DeadlineExceeded
		}
	}

	script, err := waitForSelectorTextScript(name, timeoutMs)
	if err != nil {
		return err
	}

	var found bool
	if err := p.Evaluate(ctx, script, &found, true); err != nil {
		return fmt.Errorf("wait for database %q: %w", name, err)
	}
	if !found {
		return fmt.Errorf("wait for database %q: %w", name, context.DeadlineExceeded)
	}
	return nil
}

// waitForSelectorTextScript builds a promise that resolves true once the
// database selector's button text contains name, or false after timeoutMs (0
// means no page-side limit). Only the selector's own subtree is observed and
// only its button is read on each mutation batch, so the rest of the page is
// left alone while frames are being sampled.
func waitForSelectorTextScript(name string, timeoutMs int64) (string, error) {
	needle, err := json.Marshal(strings.ToLower(name))
	if err != nil {
		return "", fmt.Errorf("encode database name: %w", err)
	}
	xpath, err := json.Marshal(databaseSelectorSel)
	if err != nil {
		return "", fmt.Errorf("encode selector: %w", err)
	}

	return fmt.Sprintf(`new Promise((resolve, reject) => {
	const needle = %s;
	const root = document.evaluate(%s, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
	if (!root) { reject(new Error("database selector not found")); return; }
	const match = () => {
		const button = root.querySelector("button");
		return button !== null && (button.textContent || "").toLowerCase().includes(needle);
	};
	if (match()) { resolve(true); return; }
	let timer = null;
	const observer = new MutationObserver(() => {
		if (!match()) return;
		observer.disconnect();
		if (timer !== null) clearTimeout(timer);
		resolve(true);
	});
	observer.observe(root, { childList: true, subtree: true, characterData: true });
	if (%d > 0) {
		timer = setTimeout(() => { observer.disconnect(); resolve(false); }, %d);
	}
})`, needle, xpath, timeoutMs, timeoutMs), nil
}

// Close closes the tab
func (p *Page) Close() error {
	p.cancel()
	return nil
}
