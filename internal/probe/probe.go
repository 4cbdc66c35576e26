// Package probe checks that the application under test is reachable before a
// browser is launched against it.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
)

// ErrUnreachable wraps any failure to fetch the entry point
var ErrUnreachable = errors.New("target unreachable")

// Result describes the entry point as fetched over plain HTTP
type Result struct {
	URL        string
	FinalURL   string
	Host       string
	StatusCode int
	Title      string
	Duration   time.Duration
}

// Check fetches targetURL once with a bounded timeout and records its status
// and page title. Non-2xx responses and transport errors yield ErrUnreachable.
func Check(ctx context.Context, targetURL string, timeout time.Duration) (*Result, error) {
	host, err := extractHost(targetURL)
	if err != nil {
		return nil, err
	}

	res := &Result{URL: targetURL, Host: host}

	c := colly.NewCollector(
		colly.StdlibContext(ctx),
		colly.AllowURLRevisit(),
		colly.UserAgent("import-bench-preflight"),
	)
	c.SetRequestTimeout(timeout)

	// Extract title
	c.OnHTML("title", func(e *colly.HTMLElement) {
		if res.Title == "" {
			res.Title = strings.TrimSpace(e.Text)
		}
	})

	c.OnResponse(func(r *colly.Response) {
		res.StatusCode = r.StatusCode
		res.FinalURL = r.Request.URL.String()
	})

	var fetchErr error
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			res.StatusCode = r.StatusCode
		}
		fetchErr = err
	})

	start := time.Now()
	visitErr := c.Visit(targetURL)
	res.Duration = time.Since(start)

	if visitErr == nil {
		visitErr = fetchErr
	}
	if visitErr != nil {
		return res, fmt.Errorf("%w: %s (status %d): %v", ErrUnreachable, targetURL, res.StatusCode, visitErr)
	}

	logrus.Debugf("Preflight %s -> %d %q in %v", targetURL, res.StatusCode, res.Title, res.Duration)
	return res, nil
}

// extractHost validates an absolute http(s) URL and returns its lowercased host
func extractHost(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid target URL %q: %w", rawURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("invalid target URL %q: scheme must be http or https", rawURL)
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return "", fmt.Errorf("invalid target URL %q: missing host", rawURL)
	}
	return host, nil
}
