package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/USEPA/git-job-log/internal/depfile"
	"github.com/USEPA/git-job-log/internal/graph"
	"github.com/USEPA/git-job-log/internal/jobid"
	"github.com/USEPA/git-job-log/internal/label"
	"github.com/USEPA/git-job-log/internal/render"
)

// GraphOptions holds flags for the graph command.
type GraphOptions struct {
	*RootOptions
	Output string
	Squash bool
	Width  int
}

// GraphView is the JSON summary of a status graph.
type GraphView struct {
	Output  string       `json:"output"`
	Nodes   int          `json:"nodes"`
	Merged  int          `json:"merged"`
	Current int          `json:"current"`
	Stale   int          `json:"stale"`
	Never   int          `json:"never"`
	Jobs    []StatusView `json:"jobs"`
}

// StatusView is one job's freshness.
type StatusView struct {
	Job     string `json:"job"`
	Current bool   `json:"current"`
	Never   bool   `json:"never"`
	LastRun string `json:"last_run,omitempty"`
}

// NewGraphCommand creates the graph command.
func NewGraphCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GraphOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "graph <deps-file>",
		Short: "Draw the dependency graph colored by freshness",
		Long: `Load a dependency file (.yaml, .yml or .cue), classify every job as current
or stale, and draw the graph.

A job is current when it has run, every prerequisite is current, and no
prerequisite ran more recently than it did. Current jobs are green, stale
jobs pink, and jobs that never ran are dashed.

The output format follows the --output extension: .dot and .gv are written
directly, anything else (.svg, .png, .pdf) is rendered with Graphviz dot.

Examples:
  git-job-log graph deps.yaml -o jobs.svg
  git-job-log graph deps.cue -o jobs.dot --squash --width 20`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path (required)")
	_ = cmd.MarkFlagRequired("output")
	cmd.Flags().BoolVar(&opts.Squash, "squash", false, "merge parallel single-successor jobs that reconverge")
	cmd.Flags().IntVar(&opts.Width, "width", label.DefaultWidth, "label line width")

	return cmd
}

func runGraph(opts *GraphOptions, depsPath string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd.Context())

	spec, err := depfile.Load(depsPath)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeDepFile, "failed to load dependency file", err, nil)
	}
	edges, err := spec.Edges()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeDepFile, "invalid dependency file", err, nil)
	}
	g, err := graph.Build(edges)
	if err != nil {
		var cycleErr *graph.CycleError
		if errors.As(err, &cycleErr) {
			return f.Fail(ExitCommandError, ErrCodeCycle, "dependency cycle", err,
				map[string][]string{"path": jobid.Strings(cycleErr.Path)})
		}
		return f.Fail(ExitCommandError, ErrCodeDepFile, "invalid dependency graph", err, nil)
	}
	f.VerboseLog("Loaded %d job(s), %d edge(s) from %s", g.Len(), len(edges), depsPath)

	annotator, err := label.NewAnnotator(opts.Width, spec.Descriptions)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeDepFile, "invalid description key", err, nil)
	}

	sess, err := openSession(ctx, opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer sess.Close()

	statuses, err := graph.Resolve(ctx, sess.store, g)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeQuery, "failed to read run times", err, nil)
	}
	sess.reportSync(f)
	for _, job := range g.Nodes() {
		if st := statuses[job]; st.Never {
			if n := len(g.Descendants(job)); n > 0 {
				f.VerboseLog("%s never ran, %d dependent job(s) stale", job, n)
			}
		}
	}

	display := graph.NewDisplay(g, annotator.Annotate)
	merged := 0
	if opts.Squash {
		merged = display.Squash()
		f.VerboseLog("Squashed %d node(s)", merged)
	}

	if err := render.Draw(ctx, render.FromDisplay(display, statuses), opts.Output); err != nil {
		return f.Fail(ExitFailure, ErrCodeRender, "failed to draw graph", err, nil)
	}

	current, stale, never := statuses.Count()
	if f.JSON() {
		view := GraphView{
			Output:  opts.Output,
			Nodes:   display.Len(),
			Merged:  merged,
			Current: current,
			Stale:   stale,
			Never:   never,
		}
		for _, job := range g.Nodes() {
			st := statuses[job]
			sv := StatusView{Job: job.String(), Current: st.Current, Never: st.Never}
			if !st.Never {
				sv.LastRun = st.RanAt.Format(time.RFC3339)
			}
			view.Jobs = append(view.Jobs, sv)
		}
		return f.Success(view)
	}

	fmt.Fprintf(f.Writer, "✓ Wrote %s: %d current, %d stale (%d never run)\n", opts.Output, current, stale, never)
	for _, job := range statuses.Stale(g) {
		st := statuses[job]
		when := "never"
		if !st.Never {
			when = st.RanAt.Format(time.RFC3339)
		}
		fmt.Fprintf(f.Writer, "  stale: %s (%s)\n", job, when)
	}
	return nil
}
