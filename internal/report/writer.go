package report

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alvmarrod/import-bench/internal/dataset"
	"github.com/alvmarrod/import-bench/internal/output"
)

const maxNameAttempts = 100

// Writer persists reports under a results directory
type Writer struct {
	dir string
	now func() time.Time
}

// NewWriter returns a writer for dir. The directory is created on first write.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir, now: time.Now}
}

// Dir is the results directory
func (w *Writer) Dir() string {
	return w.dir
}

// FileName builds csv-import-<label>-<unix nanos>.json
func FileName(label string, at time.Time) string {
	return fmt.Sprintf("csv-import-%s-%d.json", dataset.Slug(label), at.UnixNano())
}

// Write serializes r into a new file and returns its path. Existing files
// are never overwritten: a clash gets a numeric suffix.
func (w *Writer) Write(r *Report) (string, error) {
	data, err := r.JSON()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create results directory: %w", err)
	}

	base := FileName(r.DatasetLabel, w.now())
	ext := filepath.Ext(base)
	stem := base[:len(base)-len(ext)]

	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		name := base
		if attempt > 0 {
			name = fmt.Sprintf("%s-%d%s", stem, attempt, ext)
		}
		path := filepath.Join(w.dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644) // #nosec G304 - path built from results dir
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create report file: %w", err)
		}

		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", fmt.Errorf("failed to write report file: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("failed to close report file: %w", err)
		}
		return path, nil
	}

	return "", fmt.Errorf("failed to find a free report name for %s in %s", base, w.dir)
}

// PrintSummary writes a two-column table of the iteration's headline numbers
// followed by its outcome. verdict is the validation (or iteration) error.
// The table is laid out before the header is coloured so escape codes never
// count towards column widths.
func PrintSummary(out io.Writer, r *Report, verdict error, palette *output.Palette) {
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "metric\tvalue\n")
	fmt.Fprintf(tw, "dataset\t%s\n", r.DatasetLabel)
	s := r.Summary()
	fmt.Fprintf(tw, "navigation_ms\t%.2f\n", s.NavigationMs)
	fmt.Fprintf(tw, "import_ms\t%.2f\n", s.ImportMs)
	fmt.Fprintf(tw, "fps_avg\t%.2f\n", s.FpsAvg)
	fmt.Fprintf(tw, "fps_min\t%.2f\n", s.FpsMin)
	fmt.Fprintf(tw, "fps_max\t%.2f\n", s.FpsMax)

	// The outcome is the trailing cell, which tabwriter does not measure
	if verdict == nil {
		fmt.Fprintf(tw, "result\t%s\n", palette.Pass("PASS"))
	} else {
		fmt.Fprintf(tw, "result\t%s (%v)\n", palette.Fail("FAIL"), verdict)
	}
	tw.Flush()

	header, rest, _ := strings.Cut(buf.String(), "\n")
	fmt.Fprintf(out, "%s\n%s", palette.Header(header), rest)
}
