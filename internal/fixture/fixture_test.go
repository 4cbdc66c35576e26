package fixture

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvmarrod/import-bench/internal/dataset"
)

func readRows(t *testing.T, p *dataset.Payload) [][]string {
	t.Helper()
	rows, err := csv.NewReader(bytes.NewReader(p.Data)).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestBuildFourNodes(t *testing.T) {
	d, err := Build("", 4)
	require.NoError(t, err)

	assert.Equal(t, DefaultLabel, d.Label)
	assert.Equal(t, dataset.KindGenerated, d.Kind())
	assert.Equal(t, "nodes.csv", d.Nodes.Name)
	assert.Equal(t, dataset.CSVMimeType, d.Edges.MimeType)

	nodes := readRows(t, d.Nodes)
	edges := readRows(t, d.Edges)

	require.Len(t, nodes, 5)
	require.Len(t, edges, 4)
	assert.Equal(t, []string{"node"}, nodes[0])
	assert.Equal(t, []string{"source", "target", "weight"}, edges[0])
	assert.Equal(t, []string{"Person-0", "Person-1", "2"}, edges[1])
	assert.Equal(t, []string{"Person-1", "Person-2", "3"}, edges[2])
	assert.Equal(t, []string{"Person-2", "Person-3", "1"}, edges[3])
}

func TestBuildFloorsNodeCount(t *testing.T) {
	want, err := Build("synthetic", 4)
	require.NoError(t, err)

	for _, n := range []int{0, -5, 3} {
		got, err := Build("synthetic", n)
		require.NoError(t, err)
		assert.Equal(t, want, got, "node count %d", n)
	}
}

func TestBuildDefaultSize(t *testing.T) {
	d, err := Build("synthetic", DefaultNodes)
	require.NoError(t, err)

	assert.Len(t, readRows(t, d.Nodes), DefaultNodes+1)
	assert.Len(t, readRows(t, d.Edges), DefaultNodes)
}

func TestBuildIsDeterministic(t *testing.T) {
	a, err := Build("x", 25)
	require.NoError(t, err)
	b, err := Build("x", 25)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGraphConnected(t *testing.T) {
	for _, n := range []int{-1, 4, 12, 100} {
		assert.True(t, NewGraph(n).Connected(), "node count %d", n)
	}

	g := NewGraph(5)
	g.Edges = g.Edges[1:]
	assert.False(t, g.Connected())

	g = NewGraph(5)
	g.Edges[2].Target = "Person-0"
	assert.False(t, g.Connected())

	assert.False(t, (&Graph{}).Connected())
}
