// Package fixture synthesizes a small deterministic graph dataset, used when
// no dataset is discovered on disk.
package fixture

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/alvmarrod/import-bench/internal/dataset"
)

const (
	// DefaultNodes is the node count used when none is configured
	DefaultNodes = 12
	// MinNodes is the floor applied to any requested node count
	MinNodes = 4
	// DefaultLabel names the synthetic dataset in reports
	DefaultLabel = "synthetic"
)

var (
	nodeHeader = []string{"node"}
	edgeHeader = []string{"source", "target", "weight"}
)

// Edge is a weighted link between two named nodes
type Edge struct {
	Source string
	Target string
	Weight int
}

// Graph is a path graph Person-0 -> Person-1 -> ... -> Person-(n-1)
type Graph struct {
	Nodes []string
	Edges []Edge
}

// NewGraph builds the path graph for nodeCount nodes, floored at MinNodes
func NewGraph(nodeCount int) *Graph {
	if nodeCount < MinNodes {
		nodeCount = MinNodes
	}

	g := &Graph{
		Nodes: make([]string, 0, nodeCount),
		Edges: make([]Edge, 0, nodeCount-1),
	}
	for i := 0; i < nodeCount; i++ {
		g.Nodes = append(g.Nodes, nodeName(i))
		if i > 0 {
			g.Edges = append(g.Edges, Edge{
				Source: nodeName(i - 1),
				Target: nodeName(i),
				Weight: (i % 3) + 1,
			})
		}
	}
	return g
}

func nodeName(i int) string {
	return fmt.Sprintf("Person-%d", i)
}

// Connected reports whether the edges chain every node into a single path
func (g *Graph) Connected() bool {
	if len(g.Nodes) == 0 || len(g.Edges) != len(g.Nodes)-1 {
		return false
	}
	for i, e := range g.Edges {
		if e.Source != g.Nodes[i] || e.Target != g.Nodes[i+1] {
			return false
		}
	}
	return true
}

// Payloads renders the graph as nodes.csv and edges.csv, each with a header row
func (g *Graph) Payloads() (nodes, edges *dataset.Payload, err error) {
	nodeRows := make([][]string, 0, len(g.Nodes)+1)
	nodeRows = append(nodeRows, nodeHeader)
	for _, n := range g.Nodes {
		nodeRows = append(nodeRows, []string{n})
	}

	edgeRows := make([][]string, 0, len(g.Edges)+1)
	edgeRows = append(edgeRows, edgeHeader)
	for _, e := range g.Edges {
		edgeRows = append(edgeRows, []string{e.Source, e.Target, strconv.Itoa(e.Weight)})
	}

	nodeData, err := encode(nodeRows)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode nodes: %w", err)
	}
	edgeData, err := encode(edgeRows)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode edges: %w", err)
	}

	nodes = &dataset.Payload{Name: "nodes.csv", MimeType: dataset.CSVMimeType, Data: nodeData}
	edges = &dataset.Payload{Name: "edges.csv", MimeType: dataset.CSVMimeType, Data: edgeData}
	return nodes, edges, nil
}

func encode(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Build returns a generated dataset for nodeCount nodes under label
func Build(label string, nodeCount int) (dataset.Dataset, error) {
	if label == "" {
		label = DefaultLabel
	}

	nodes, edges, err := NewGraph(nodeCount).Payloads()
	if err != nil {
		return dataset.Dataset{}, err
	}
	return dataset.Dataset{Label: label, Nodes: nodes, Edges: edges}, nil
}
