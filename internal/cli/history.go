package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/USEPA/git-job-log/internal/jobid"
	"github.com/USEPA/git-job-log/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit int
	All   bool
}

// AttemptView is the JSON form of a journal entry.
type AttemptView struct {
	ID         string    `json:"id"`
	Remote     string    `json:"remote"`
	Jobs       []string  `json:"jobs"`
	StartedAt  time.Time `json:"started_at"`
	Commit     string    `json:"commit,omitempty"`
	Outcome    string    `json:"outcome"`
	FailedJobs []string  `json:"failed_jobs,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent log attempts from the local journal",
		Long: `Show recent "log" attempts made from this machine, newest first,
including attempts whose run was not recorded and the jobs that failed.

The journal is local: it does not include runs logged from other machines.

Examples:
  git-job-log history
  git-job-log history --limit 5 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of attempts to show")
	cmd.Flags().BoolVar(&opts.All, "all", false, "include attempts against every remote")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd.Context())

	cfg, err := loadConfig(opts.RootOptions, f)
	if err != nil {
		return err
	}
	j, err := openJournal(cfg, f)
	if err != nil {
		return err
	}
	defer j.Close()

	remote := cfg.Repo
	if opts.All {
		remote = ""
	}
	attempts, err := j.Recent(ctx, remote, opts.Limit)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeQuery, "failed to read journal", err, nil)
	}

	if f.JSON() {
		views := make([]AttemptView, len(attempts))
		for i, a := range attempts {
			views[i] = newAttemptView(a)
		}
		return f.Success(views)
	}

	if len(attempts) == 0 {
		fmt.Fprintln(f.Writer, "No log attempts recorded")
		return nil
	}
	for _, a := range attempts {
		fmt.Fprintf(f.Writer, "%s %-20s %s\n",
			a.StartedAt.Local().Format(time.RFC3339), a.Outcome, strings.Join(jobid.Strings(a.Jobs), " "))
		if len(a.FailedJobs) > 0 {
			fmt.Fprintf(f.Writer, "  failed: %s\n", strings.Join(jobid.Strings(a.FailedJobs), " "))
		}
		if a.Error != "" && f.Verbose {
			fmt.Fprintf(f.Writer, "  error: %s\n", a.Error)
		}
	}
	return nil
}

func newAttemptView(a store.Attempt) AttemptView {
	return AttemptView{
		ID:         a.ID,
		Remote:     a.Remote,
		Jobs:       jobid.Strings(a.Jobs),
		StartedAt:  a.StartedAt,
		Commit:     a.Commit,
		Outcome:    string(a.Outcome),
		FailedJobs: jobid.Strings(a.FailedJobs),
		Error:      a.Error,
	}
}
