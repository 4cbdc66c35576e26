package dataset

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Discover returns every immediate subdirectory of root that holds exactly
// one nodes CSV and one edges CSV, ordered so that "ds2" precedes "ds10".
//
// An unreadable root is not an error: it is logged and an empty list is
// returned, since callers fall back to a synthetic fixture. The only error is
// ErrDuplicateLabel.
func Discover(root string) ([]Dataset, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		logrus.Warnf("Unable to read data root %q: %v", root, err)
		return []Dataset{}, nil
	}

	datasets := make([]Dataset, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		folder := filepath.Join(root, entry.Name())
		contents, err := os.ReadDir(folder)
		if err != nil {
			logrus.Warnf("Skipping unreadable dataset directory %q: %v", folder, err)
			continue
		}

		nodesFile, ok := findCSV(folder, contents, "nodes")
		if !ok {
			continue
		}
		edgesFile, ok := findCSV(folder, contents, "edges")
		if !ok {
			continue
		}

		datasets = append(datasets, Dataset{
			Label:     entry.Name(),
			NodesPath: filepath.Join(folder, nodesFile),
			EdgesPath: filepath.Join(folder, edgesFile),
		})
	}

	if err := ValidateLabels(datasets); err != nil {
		return nil, err
	}

	sortLabels(datasets)
	logrus.Debugf("Discovered %d dataset(s) under %s", len(datasets), root)
	return datasets, nil
}

// findCSV returns the single file in folder whose name contains kind and
// ends in .csv, case-insensitively. Symlinks count when they resolve to a
// regular file. Zero or several matches do not qualify.
func findCSV(folder string, entries []os.DirEntry, kind string) (string, bool) {
	match := ""
	count := 0
	for _, e := range entries {
		lower := strings.ToLower(e.Name())
		if !strings.HasSuffix(lower, ".csv") || !strings.Contains(lower, kind) {
			continue
		}
		if !isRegularFile(folder, e) {
			continue
		}
		match = e.Name()
		count++
	}
	return match, count == 1
}

func isRegularFile(folder string, e os.DirEntry) bool {
	if e.Type().IsRegular() {
		return true
	}
	if e.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(folder, e.Name()))
	if err != nil {
		logrus.Debugf("Ignoring broken link %q: %v", filepath.Join(folder, e.Name()), err)
		return false
	}
	return info.Mode().IsRegular()
}

func sortLabels(datasets []Dataset) {
	c := collate.New(language.Und, collate.Numeric)
	sort.SliceStable(datasets, func(i, j int) bool {
		return c.CompareString(datasets[i].Label, datasets[j].Label) < 0
	})
}
