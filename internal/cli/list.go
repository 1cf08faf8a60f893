package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/USEPA/git-job-log/internal/jobid"
	"github.com/USEPA/git-job-log/internal/store"
)

// RunView is the JSON form of a run record.
type RunView struct {
	Job     string     `json:"job"`
	LastRun *time.Time `json:"last_run"` // null when never run
	Kind    string     `json:"kind,omitempty"`
	Payload string     `json:"payload,omitempty"`
}

func newRunView(rec store.RunRecord, withPayload bool) RunView {
	v := RunView{Job: rec.Job.String()}
	if rec.Present() {
		ts := rec.Timestamp
		v.LastRun = &ts
		if withPayload {
			v.Kind = rec.Payload.Kind().String()
			v.Payload = rec.Payload.Raw()
		}
	}
	return v
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every job's last run",
		Long: `List the last-run time of every job ever logged to the run log.

The local replica is synchronized with the remote first; if that fails the
last known state is listed.

Examples:
  git-job-log list
  git-job-log --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(rootOpts, cmd)
		},
	}
	return cmd
}

func runList(opts *RootOptions, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	ctx := commandContext(cmd.Context())

	sess, err := openSession(ctx, opts, f)
	if err != nil {
		return err
	}
	defer sess.Close()

	runs, err := sess.store.LastRuns(ctx)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeQuery, "failed to list runs", err, nil)
	}
	sess.reportSync(f)

	jobs := make([]jobid.ID, 0, len(runs))
	for job := range runs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, k int) bool { return jobs[i] < jobs[k] })

	if f.JSON() {
		views := make([]RunView, len(jobs))
		for i, job := range jobs {
			views[i] = newRunView(runs[job], false)
		}
		return f.Success(views)
	}

	if len(jobs) == 0 {
		fmt.Fprintln(f.Writer, "No runs logged")
		return nil
	}
	for _, job := range jobs {
		fmt.Fprintf(f.Writer, "%s %s\n", runs[job].Timestamp.Format(time.RFC3339), job)
	}
	return nil
}
