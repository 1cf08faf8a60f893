package graph

import (
	"time"

	"github.com/USEPA/git-job-log/internal/jobid"
)

// DisplayNode is one visual node of a Display. After squashing it may stand
// for several jobs.
type DisplayNode struct {
	// ID is the representative job, the first member.
	ID           jobid.ID
	Members      []jobid.ID
	Labels       []string
	Descriptions []string
}

// AnnotateFunc yields a job's display label and descriptions.
type AnnotateFunc func(job jobid.ID) (label string, descriptions []string)

// Display is a rendering overlay over a Graph.
type Display struct {
	order    []jobid.ID
	nodes    map[jobid.ID]*DisplayNode
	children map[jobid.ID][]jobid.ID
	parents  map[jobid.ID][]jobid.ID
}

// NewDisplay builds an overlay with one display node per job of g.
// A nil annotate labels each node with its identifier.
func NewDisplay(g *Graph, annotate AnnotateFunc) *Display {
	if annotate == nil {
		annotate = func(job jobid.ID) (string, []string) { return job.String(), nil }
	}

	d := &Display{
		order:    g.Nodes(),
		nodes:    make(map[jobid.ID]*DisplayNode, g.Len()),
		children: make(map[jobid.ID][]jobid.ID, g.Len()),
		parents:  make(map[jobid.ID][]jobid.ID, g.Len()),
	}
	for _, n := range g.nodes {
		label, descs := annotate(n)
		d.nodes[n] = &DisplayNode{
			ID:           n,
			Members:      []jobid.ID{n},
			Labels:       []string{label},
			Descriptions: union(nil, descs),
		}
		d.children[n] = g.Children(n)
		d.parents[n] = g.Parents(n)
	}
	return d
}

// Squash merges parallel single-successor siblings that reconverge.
//
// For every node in order, its children with exactly one successor are
// grouped by that successor. In each group of two or more, the first child
// is kept and the others are merged into it: labels, descriptions and
// members are unioned onto the kept node, and the merged nodes' other
// parents are pointed at the kept node. Nodes with more than one successor
// are never merged and the shared successor is left untouched.
//
// Returns the number of nodes merged away.
func (d *Display) Squash() int {
	merged := 0
	for _, n := range append([]jobid.ID(nil), d.order...) {
		if _, ok := d.nodes[n]; !ok {
			continue
		}

		groups := make(map[jobid.ID][]jobid.ID)
		var dests []jobid.ID
		for _, c := range d.children[n] {
			if len(d.children[c]) != 1 {
				continue
			}
			dest := d.children[c][0]
			if _, ok := groups[dest]; !ok {
				dests = append(dests, dest)
			}
			groups[dest] = append(groups[dest], c)
		}

		for _, dest := range dests {
			group := groups[dest]
			if len(group) < 2 {
				continue
			}
			keep := group[0]
			for _, m := range group[1:] {
				d.merge(keep, m, dest)
				merged++
			}
		}
	}
	return merged
}

func (d *Display) merge(keep, m, dest jobid.ID) {
	kept, gone := d.nodes[keep], d.nodes[m]
	kept.Members = append(kept.Members, gone.Members...)
	kept.Labels = union(kept.Labels, gone.Labels)
	kept.Descriptions = union(kept.Descriptions, gone.Descriptions)

	for _, p := range d.parents[m] {
		d.children[p] = remove(d.children[p], m)
		if !contains(d.children[p], keep) {
			d.children[p] = append(d.children[p], keep)
			d.parents[keep] = append(d.parents[keep], p)
		}
	}
	d.parents[dest] = remove(d.parents[dest], m)

	delete(d.nodes, m)
	delete(d.children, m)
	delete(d.parents, m)
	d.order = remove(d.order, m)
}

// Len returns the number of display nodes.
func (d *Display) Len() int {
	return len(d.order)
}

// Nodes returns the display nodes in order.
func (d *Display) Nodes() []*DisplayNode {
	out := make([]*DisplayNode, len(d.order))
	for i, n := range d.order {
		out[i] = d.nodes[n]
	}
	return out
}

// Node returns the display node whose representative is id.
func (d *Display) Node(id jobid.ID) (*DisplayNode, bool) {
	n, ok := d.nodes[id]
	return n, ok
}

// Edges returns the overlay's edges, grouped by parent in node order.
func (d *Display) Edges() []Edge {
	var edges []Edge
	for _, n := range d.order {
		for _, c := range d.children[n] {
			edges = append(edges, Edge{Parent: n, Child: c})
		}
	}
	return edges
}

// Status combines the statuses of a display node's members: it never ran
// if any member never ran, it is current iff every member is current, and
// its time is the oldest member's.
func (d *Display) Status(id jobid.ID, statuses Statuses) Status {
	node, ok := d.nodes[id]
	if !ok {
		return Status{Job: id, Never: true}
	}

	out := Status{Job: id, Current: true}
	var oldest time.Time
	for _, m := range node.Members {
		st := statuses[m]
		if st.Never {
			out.Never = true
		}
		if !st.Current {
			out.Current = false
		}
		if !st.RanAt.IsZero() && (oldest.IsZero() || st.RanAt.Before(oldest)) {
			oldest = st.RanAt
		}
	}
	if !out.Never {
		out.RanAt = oldest
	}
	return out
}

func union(dst, src []string) []string {
	for _, s := range src {
		if !contains(dst, s) {
			dst = append(dst, s)
		}
	}
	return dst
}

func contains[T comparable](list []T, v T) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func remove[T comparable](list []T, v T) []T {
	out := list[:0]
	for _, x := range list {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
