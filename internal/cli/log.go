package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/USEPA/git-job-log/internal/jobid"
	"github.com/USEPA/git-job-log/internal/store"
)

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	Data     string
	DataFile string
}

// LogView is the JSON form of a recorded run.
type LogView struct {
	RunID     string    `json:"run_id"`
	Commit    string    `json:"commit"`
	Timestamp time.Time `json:"timestamp"`
	Jobs      []string  `json:"jobs"`
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log <job>...",
		Short: "Record that jobs ran now",
		Long: `Record that every listed job ran now, as one commit pushed to the remote.

After pushing, the remote is re-read. If any job is missing or its last-run
time did not advance, the command fails with exit code 1 and lists the jobs.

A --data-file ending in .yaml or .yml is stored as structured data; any
other file, and --data, is stored as text.

Examples:
  git-job-log log home/yard/lawn/mow
  git-job-log log home/yard/lawn/mow home/yard/lawn/edge_trim --data "front only"
  git-job-log log work/commute/bus-pass/renew --data-file receipt.yaml`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLog(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Data, "data", "", "text payload to store with the run")
	cmd.Flags().StringVar(&opts.DataFile, "data-file", "", "file whose content is stored with the run")

	return cmd
}

func runLog(opts *LogOptions, args []string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd.Context())

	jobs, err := jobid.ParseAll(args)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidJob, "invalid job", err, nil)
	}

	payload, err := readPayload(opts)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidData, "invalid run data", err, nil)
	}

	sess, err := openSession(ctx, opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer sess.Close()

	result, err := sess.store.LogRun(ctx, jobs, payload)
	if err != nil {
		var verr *store.VerificationError
		if errors.As(err, &verr) {
			return f.Fail(ExitFailure, ErrCodeVerification, "run not recorded", err,
				map[string][]string{
					"missing":      jobid.Strings(verr.Missing),
					"not_advanced": jobid.Strings(verr.NotAdvanced),
				})
		}
		return f.Fail(ExitFailure, ErrCodeLogFailed, "failed to log run", err, nil)
	}

	if f.JSON() {
		return f.Success(LogView{
			RunID:     result.RunID,
			Commit:    result.Commit,
			Timestamp: result.Timestamp,
			Jobs:      jobid.Strings(result.Jobs),
		})
	}

	fmt.Fprintf(f.Writer, "✓ Logged %d job(s) at %s\n", len(result.Jobs), result.Timestamp.Format(time.RFC3339))
	for _, job := range result.Jobs {
		fmt.Fprintf(f.Writer, "  %s\n", job)
	}
	f.VerboseLog("Run %s, commit %s", result.RunID, result.Commit)
	return nil
}

// readPayload builds the payload from --data or --data-file.
func readPayload(opts *LogOptions) (store.Payload, error) {
	if opts.Data != "" && opts.DataFile != "" {
		return store.Payload{}, errors.New("--data and --data-file are mutually exclusive")
	}
	if opts.DataFile == "" {
		return store.Text(opts.Data), nil
	}

	data, err := os.ReadFile(opts.DataFile)
	if err != nil {
		return store.Payload{}, fmt.Errorf("read data file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(opts.DataFile)) {
	case ".yaml", ".yml":
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return store.Payload{}, fmt.Errorf("parse %s: %w", opts.DataFile, err)
		}
		return store.Structured(v), nil
	default:
		return store.Text(string(data)), nil
	}
}
