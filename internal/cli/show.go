package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/USEPA/git-job-log/internal/jobid"
)

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <job>",
		Short: "Show one job's last run and its data",
		Long: `Show when a job last ran and the data stored with that run.

Example:
  git-job-log show home/yard/lawn/mow`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runShow(opts *RootOptions, arg string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	ctx := commandContext(cmd.Context())

	job, err := jobid.Parse(arg)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidJob, "invalid job", err, nil)
	}

	sess, err := openSession(ctx, opts, f)
	if err != nil {
		return err
	}
	defer sess.Close()

	rec, err := sess.store.LastRan(ctx, job, false)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeQuery, "failed to read run", err, nil)
	}
	sess.reportSync(f)

	if f.JSON() {
		return f.Success(newRunView(rec, true))
	}

	if !rec.Present() {
		fmt.Fprintf(f.Writer, "%s: never run\n", job)
		return nil
	}
	fmt.Fprintf(f.Writer, "%s: last run %s\n", job, rec.Timestamp.Format(time.RFC3339))
	if raw := rec.Payload.Raw(); raw != "" {
		fmt.Fprintf(f.Writer, "\n%s", raw)
		if raw[len(raw)-1] != '\n' {
			fmt.Fprintln(f.Writer)
		}
	}
	return nil
}
