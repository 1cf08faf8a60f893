package render

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/USEPA/git-job-log/internal/graph"
	"github.com/USEPA/git-job-log/internal/jobid"
	"github.com/USEPA/git-job-log/internal/label"
	"github.com/USEPA/git-job-log/internal/testutil"
)

var epoch = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

func yardEdges() []graph.Edge {
	out := make([]graph.Edge, len(testutil.YardDepends))
	for i, p := range testutil.YardDepends {
		out[i] = graph.Edge{Parent: jobid.MustParse(p[0]), Child: jobid.MustParse(p[1])}
	}
	return out
}

// yardGraph is the fixture DAG with everything logged at epoch except the
// internal node.
func yardGraph(t *testing.T) Graph {
	t.Helper()
	g, err := graph.Build(yardEdges())
	require.NoError(t, err)

	runs := make(map[jobid.ID]time.Time)
	for _, n := range g.Nodes() {
		runs[n] = epoch
	}
	delete(runs, jobid.MustParse(testutil.YardInternal))
	statuses := graph.Propagate(g, runs)

	a, err := label.NewAnnotator(16, map[string]string{"lawn": "Lawn care"})
	require.NoError(t, err)

	return FromDisplay(graph.NewDisplay(g, a.Annotate), statuses)
}

func TestWriteDOT_Golden(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDOT(&buf, yardGraph(t)))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "yard", buf.Bytes())
}

func TestFromDisplay_Attributes(t *testing.T) {
	rg := yardGraph(t)
	require.Len(t, rg.Nodes, 7)
	require.Len(t, rg.Edges, 6)

	byID := make(map[string]Node)
	for _, n := range rg.Nodes {
		byID[n.ID] = n
	}

	spring := byID["home/yard/season/spring"]
	assert.Equal(t, ColorCurrent, spring.FillColor)
	assert.Equal(t, StyleRan, spring.Style)

	mow := byID[testutil.YardInternal]
	assert.Equal(t, ColorStale, mow.FillColor)
	assert.Equal(t, StyleNever, mow.Style)
	assert.Contains(t, mow.Tooltip, "never")
	assert.Contains(t, mow.Tooltip, "Lawn care")

	for _, d := range testutil.YardDescendants {
		assert.Equal(t, ColorStale, byID[d].FillColor, d)
		assert.Equal(t, StyleRan, byID[d].Style, d)
	}
}

func TestFromDisplay_MergedLabels(t *testing.T) {
	g, err := graph.Build([]graph.Edge{
		{Parent: "root", Child: "a"},
		{Parent: "root", Child: "b"},
		{Parent: "a", Child: "dest"},
		{Parent: "b", Child: "dest"},
	})
	require.NoError(t, err)

	d := graph.NewDisplay(g, nil)
	require.Equal(t, 1, d.Squash())

	rg := FromDisplay(d, graph.Propagate(g, nil))
	require.Len(t, rg.Nodes, 3)
	assert.Equal(t, "a\nb", rg.Nodes[1].Label)
	assert.Equal(t, []Edge{{From: "root", To: "a"}, {From: "a", To: "dest"}}, rg.Edges)
}

func TestWriteDOT_Escapes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDOT(&buf, Graph{Nodes: []Node{{ID: `say "hi"`, Label: `back\slash`}}}))
	assert.Contains(t, buf.String(), `"say \"hi\""`)
	assert.Contains(t, buf.String(), `label="back\\slash"`)
}

func TestDraw_DOTFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "jobs.gv")
	require.NoError(t, Draw(context.Background(), yardGraph(t), out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "digraph jobs {")
}

func TestDraw_NoExtension(t *testing.T) {
	err := Draw(context.Background(), Graph{}, filepath.Join(t.TempDir(), "jobs"))
	assert.Error(t, err)
}

func TestDraw_SVG(t *testing.T) {
	if _, err := exec.LookPath("dot"); err != nil {
		t.Skip("graphviz dot not installed")
	}

	out := filepath.Join(t.TempDir(), "jobs.svg")
	require.NoError(t, Draw(context.Background(), yardGraph(t), out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	for _, job := range testutil.YardJobs() {
		assert.Contains(t, string(data), job)
	}
}
