// Package render turns a status-annotated display graph into Graphviz DOT
// and, through the dot binary, into image files.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/USEPA/git-job-log/internal/graph"
)

const (
	ColorCurrent = "palegreen"
	ColorStale   = "lightpink"

	StyleRan   = "filled"
	StyleNever = "filled,dashed"
)

// ErrNoRenderer is returned by Draw when an image format is requested and
// the dot binary is not on PATH.
var ErrNoRenderer = errors.New("graphviz dot not found on PATH")

// Node is a drawable node with renderer attributes already resolved.
type Node struct {
	ID        string
	Label     string
	Tooltip   string
	FillColor string
	Style     string
}

// Edge connects two node IDs.
type Edge struct {
	From string
	To   string
}

// Graph is the renderer-neutral input to WriteDOT and Draw.
type Graph struct {
	Nodes []Node
	Edges []Edge
}

// FromDisplay resolves node attributes from the overlay and job statuses.
func FromDisplay(d *graph.Display, statuses graph.Statuses) Graph {
	var out Graph
	for _, n := range d.Nodes() {
		st := d.Status(n.ID, statuses)

		fill := ColorStale
		if st.Current {
			fill = ColorCurrent
		}
		style := StyleRan
		lastRun := "never"
		if st.Never {
			style = StyleNever
		} else {
			lastRun = st.RanAt.UTC().Format(time.RFC3339)
		}

		tooltip := append(append([]string(nil), n.Descriptions...), "last run: "+lastRun)
		out.Nodes = append(out.Nodes, Node{
			ID:        n.ID.String(),
			Label:     strings.Join(n.Labels, "\n"),
			Tooltip:   strings.Join(tooltip, "\n"),
			FillColor: fill,
			Style:     style,
		})
	}
	for _, e := range d.Edges() {
		out.Edges = append(out.Edges, Edge{From: e.Parent.String(), To: e.Child.String()})
	}
	return out
}

var dotEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

func quote(s string) string {
	return `"` + dotEscaper.Replace(s) + `"`
}

// WriteDOT writes g as a DOT digraph. Output depends only on g.
func WriteDOT(w io.Writer, g Graph) error {
	var buf bytes.Buffer
	buf.WriteString("digraph jobs {\n")
	buf.WriteString("  node [shape=box];\n")
	for _, n := range g.Nodes {
		fmt.Fprintf(&buf, "  %s [label=%s, tooltip=%s, fillcolor=%s, style=%s];\n",
			quote(n.ID), quote(n.Label), quote(n.Tooltip), quote(n.FillColor), quote(n.Style))
	}
	for _, e := range g.Edges {
		fmt.Fprintf(&buf, "  %s -> %s;\n", quote(e.From), quote(e.To))
	}
	buf.WriteString("}\n")

	_, err := w.Write(buf.Bytes())
	return err
}

// Draw renders g to out. The format follows the file extension: ".dot" and
// ".gv" are written directly, anything else is produced by "dot -T<ext>".
func Draw(ctx context.Context, g Graph, out string) error {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(out), "."))
	switch ext {
	case "":
		return fmt.Errorf("output %q has no extension to pick a format from", out)
	case "dot", "gv":
		return writeDOTFile(g, out)
	}

	dot, err := exec.LookPath("dot")
	if err != nil {
		return fmt.Errorf("render %s: %w", out, ErrNoRenderer)
	}

	var src, stderr bytes.Buffer
	if err := WriteDOT(&src, g); err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, dot, "-T"+ext, "-o", out)
	cmd.Stdin = &src
	cmd.Stderr = &stderr

	slog.Debug("rendering graph", "format", ext, "out", out, "nodes", len(g.Nodes))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("dot -T%s: %w: %s", ext, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func writeDOTFile(g Graph, out string) error {
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create %s: %w", out, err)
	}
	if err := WriteDOT(f, g); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", out, err)
	}
	return f.Close()
}
