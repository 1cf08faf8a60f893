package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Repo     string // remote address, overrides GIT_JOB_LOG_REPO
	CacheDir string // cache root, overrides GIT_JOB_LOG_CACHE_DIR

	// Dir starts the .env search (for testing). Defaults to the working
	// directory.
	Dir string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the git-job-log CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "git-job-log",
		Short: "Record when jobs ran, in a git repository",
		Long: `Record when hierarchically named jobs ran, using a git repository as the
durable log, and show which jobs are stale relative to their prerequisites.

Jobs are "/"-separated identifiers such as home/yard/lawn/mow. Running the
command with no subcommand lists every job's last run.

The remote is taken from --repo, the GIT_JOB_LOG_REPO environment variable,
or the first .env file found in the working directory or its ancestors.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				f := &OutputFormatter{Format: "text", Writer: cmd.ErrOrStderr()}
				return f.Fail(ExitCommandError, ErrCodeGeneric,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats), nil, nil)
			}
			setupLogging(opts.Verbose, cmd.ErrOrStderr())
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "show git commands and responses")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Repo, "repo", "", "remote run log repository (default from GIT_JOB_LOG_REPO)")
	cmd.PersistentFlags().StringVar(&opts.CacheDir, "cache-dir", "", "local cache root (default ~/.git_job_log)")

	// Add subcommands
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewLogCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewGraphCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// setupLogging installs the default slog logger: warnings and errors on
// stderr, everything including git commands under --verbose.
func setupLogging(verbose bool, w io.Writer) {
	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
