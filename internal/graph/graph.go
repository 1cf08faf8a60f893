// Package graph holds the job dependency graph, the staleness propagation
// over it, and the display overlay used to simplify it for rendering.
//
// Graph and Statuses always speak in original job identifiers. Display is a
// separate structure: squashing it never changes which jobs are stale.
package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/USEPA/git-job-log/internal/jobid"
)

// Edge is a (parent, child) prerequisite pair: Parent should be current at
// least as recently as Child ran.
type Edge struct {
	Parent jobid.ID
	Child  jobid.ID
}

// Graph is an immutable dependency DAG.
type Graph struct {
	nodes    []jobid.ID
	children map[jobid.ID][]jobid.ID
	parents  map[jobid.ID][]jobid.ID
}

// CycleError reports a dependency cycle found by Build.
type CycleError struct {
	// Path walks the cycle and ends where it started: [a, b, a].
	// A self-loop is [a, a].
	Path []jobid.ID
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(jobid.Strings(e.Path), " -> "))
}

// IsCycleError returns true if err is a *CycleError.
func IsCycleError(err error) bool {
	var target *CycleError
	return errors.As(err, &target)
}

// Build constructs a graph from edges.
//
// The node set is the union of edge endpoints in first-seen order. Duplicate
// edges are ignored. Cyclic input, including self-loops, is rejected with a
// *CycleError.
func Build(edges []Edge) (*Graph, error) {
	g := &Graph{
		children: make(map[jobid.ID][]jobid.ID),
		parents:  make(map[jobid.ID][]jobid.ID),
	}

	seenNode := make(map[jobid.ID]bool)
	seenEdge := make(map[Edge]bool)
	for _, e := range edges {
		if e.Parent == "" || e.Child == "" {
			return nil, fmt.Errorf("invalid edge %q -> %q: empty job id", e.Parent, e.Child)
		}
		for _, n := range []jobid.ID{e.Parent, e.Child} {
			if !seenNode[n] {
				seenNode[n] = true
				g.nodes = append(g.nodes, n)
			}
		}
		if seenEdge[e] {
			continue
		}
		seenEdge[e] = true
		g.children[e.Parent] = append(g.children[e.Parent], e.Child)
		g.parents[e.Child] = append(g.parents[e.Child], e.Parent)
	}

	if path := findCycle(g); path != nil {
		return nil, &CycleError{Path: path}
	}
	return g, nil
}

// Nodes returns every node in first-seen order.
func (g *Graph) Nodes() []jobid.ID {
	return append([]jobid.ID(nil), g.nodes...)
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Children returns job's direct dependents.
func (g *Graph) Children(job jobid.ID) []jobid.ID {
	return append([]jobid.ID(nil), g.children[job]...)
}

// Parents returns job's direct prerequisites.
func (g *Graph) Parents(job jobid.ID) []jobid.ID {
	return append([]jobid.ID(nil), g.parents[job]...)
}

// Edges returns every distinct edge, grouped by parent in node order.
func (g *Graph) Edges() []Edge {
	var edges []Edge
	for _, n := range g.nodes {
		for _, c := range g.children[n] {
			edges = append(edges, Edge{Parent: n, Child: c})
		}
	}
	return edges
}

// Roots returns the nodes with no parents, in node order.
func (g *Graph) Roots() []jobid.ID {
	var roots []jobid.ID
	for _, n := range g.nodes {
		if len(g.parents[n]) == 0 {
			roots = append(roots, n)
		}
	}
	return roots
}

// Descendants returns every node reachable from job, excluding job itself,
// in topological order.
func (g *Graph) Descendants(job jobid.ID) []jobid.ID {
	reach := make(map[jobid.ID]bool)
	stack := g.Children(job)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if reach[n] {
			continue
		}
		reach[n] = true
		stack = append(stack, g.children[n]...)
	}

	var out []jobid.ID
	for _, n := range g.TopoOrder() {
		if reach[n] {
			out = append(out, n)
		}
	}
	return out
}

// TopoOrder returns every node with parents before children. Ties are
// broken by node order, so the result is deterministic.
func (g *Graph) TopoOrder() []jobid.ID {
	indegree := make(map[jobid.ID]int, len(g.nodes))
	for _, n := range g.nodes {
		indegree[n] = len(g.parents[n])
	}

	queue := g.Roots()
	order := make([]jobid.ID, 0, len(g.nodes))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		for _, c := range g.children[n] {
			indegree[c]--
			if indegree[c] == 0 {
				queue = append(queue, c)
			}
		}
	}
	return order
}
