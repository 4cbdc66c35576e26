// Package dataset models the nodes/edges CSV pairs fed to the import workflow
// and discovers them on disk.
package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Kind tells where a dataset's payloads come from
type Kind string

const (
	// KindFile is a nodes/edges pair discovered on disk
	KindFile Kind = "file"
	// KindGenerated is an in-memory synthetic fixture
	KindGenerated Kind = "generated"
)

// CSVMimeType is the content type of every payload
const CSVMimeType = "text/csv"

// ErrDuplicateLabel is returned when two datasets share a label under case folding
var ErrDuplicateLabel = errors.New("duplicate dataset label")

// Payload is an in-memory CSV file
type Payload struct {
	Name     string
	MimeType string
	Data     []byte
}

// Dataset describes one input to an iteration. Either both paths are set
// (KindFile) or both payloads are (KindGenerated).
type Dataset struct {
	Label     string
	NodesPath string
	EdgesPath string
	Nodes     *Payload
	Edges     *Payload
}

// Kind reports whether the dataset is file backed or generated
func (d Dataset) Kind() Kind {
	if d.Nodes != nil && d.Edges != nil {
		return KindGenerated
	}
	return KindFile
}

// Materialize returns absolute paths to the nodes and edges CSVs. Generated
// payloads are written into dir, which must exist.
func (d Dataset) Materialize(dir string) (nodesPath, edgesPath string, err error) {
	if d.Kind() == KindFile {
		if nodesPath, err = filepath.Abs(d.NodesPath); err != nil {
			return "", "", fmt.Errorf("failed to resolve %s: %w", d.NodesPath, err)
		}
		if edgesPath, err = filepath.Abs(d.EdgesPath); err != nil {
			return "", "", fmt.Errorf("failed to resolve %s: %w", d.EdgesPath, err)
		}
		return nodesPath, edgesPath, nil
	}

	if nodesPath, err = writePayload(dir, d.Nodes); err != nil {
		return "", "", err
	}
	if edgesPath, err = writePayload(dir, d.Edges); err != nil {
		return "", "", err
	}
	return nodesPath, edgesPath, nil
}

func writePayload(dir string, p *Payload) (string, error) {
	path, err := filepath.Abs(filepath.Join(dir, p.Name))
	if err != nil {
		return "", fmt.Errorf("failed to resolve payload path: %w", err)
	}
	if err := os.WriteFile(path, p.Data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write payload %s: %w", p.Name, err)
	}
	return path, nil
}

// ValidateLabels rejects empty labels and labels that collide case-insensitively
func ValidateLabels(datasets []Dataset) error {
	seen := make(map[string]string, len(datasets))
	for _, d := range datasets {
		if strings.TrimSpace(d.Label) == "" {
			return fmt.Errorf("dataset label must not be empty")
		}
		key := strings.ToLower(d.Label)
		if prev, ok := seen[key]; ok {
			return fmt.Errorf("%w: %q and %q", ErrDuplicateLabel, prev, d.Label)
		}
		seen[key] = d.Label
	}
	return nil
}

// Slug lowercases a label and replaces anything outside [a-z0-9] with '-'
// so it can appear in file and database names
func Slug(label string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(label) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastDash = false
			continue
		}
		if !lastDash && b.Len() > 0 {
			b.WriteByte('-')
			lastDash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return "dataset"
	}
	return slug
}
