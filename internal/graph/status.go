package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/USEPA/git-job-log/internal/jobid"
)

// Status is a job's freshness relative to its prerequisites.
type Status struct {
	Job   jobid.ID
	RanAt time.Time

	// Never is true when the job has no recorded run.
	Never bool

	// Current is true when the job ran, every prerequisite is current, and
	// no prerequisite ran more recently than the job did.
	Current bool
}

// Statuses maps every node of a graph to its status.
type Statuses map[jobid.ID]Status

// Count returns how many statuses are current, stale and never run.
// Never-run jobs are also counted as stale.
func (s Statuses) Count() (current, stale, never int) {
	for _, st := range s {
		if st.Current {
			current++
		} else {
			stale++
		}
		if st.Never {
			never++
		}
	}
	return current, stale, never
}

// Stale returns the jobs of g that are not current, in node order.
func (s Statuses) Stale(g *Graph) []jobid.ID {
	var out []jobid.ID
	for _, n := range g.nodes {
		if !s[n].Current {
			out = append(out, n)
		}
	}
	return out
}

// Propagate classifies every node of g as current or stale.
//
// Jobs missing from runs (or mapped to the zero time) never ran. Staleness
// is sticky: nodes are evaluated once each in topological order, so a stale
// prerequisite makes every transitive dependent stale even if the dependent
// re-ran after it. Roots are current iff they ran.
func Propagate(g *Graph, runs map[jobid.ID]time.Time) Statuses {
	out := make(Statuses, len(g.nodes))
	for _, n := range g.TopoOrder() {
		ranAt, ok := runs[n]
		st := Status{Job: n, Never: !ok || ranAt.IsZero()}
		if !st.Never {
			st.RanAt = ranAt
		}
		st.Current = !st.Never

		for _, p := range g.parents[n] {
			parent := out[p]
			if !parent.Current || st.RanAt.Before(parent.RanAt) {
				st.Current = false
			}
		}
		out[n] = st
	}
	return out
}

// RunTimeSource answers the bulk "when did every job last run" query.
// *store.Store implements it.
type RunTimeSource interface {
	RunTimes(ctx context.Context) (map[jobid.ID]time.Time, error)
}

// Resolve queries src once and propagates the result over g.
func Resolve(ctx context.Context, src RunTimeSource, g *Graph) (Statuses, error) {
	runs, err := src.RunTimes(ctx)
	if err != nil {
		return nil, fmt.Errorf("query run times: %w", err)
	}
	return Propagate(g, runs), nil
}
