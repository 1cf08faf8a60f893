package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/USEPA/git-job-log/internal/config"
	"github.com/USEPA/git-job-log/internal/journal"
	"github.com/USEPA/git-job-log/internal/store"
)

// session is the configuration, journal and store a command works with.
type session struct {
	cfg     *config.Config
	journal *journal.Journal
	store   *store.Store
}

// loadConfig resolves the configuration from flags, environment and .env.
func loadConfig(opts *RootOptions, f *OutputFormatter) (*config.Config, error) {
	cfg, err := config.Load(config.Options{
		Repo:     opts.Repo,
		CacheDir: opts.CacheDir,
		Dir:      opts.Dir,
	})
	if errors.Is(err, config.ErrConfigNotFound) {
		return nil, f.Fail(ExitCommandError, ErrCodeConfig, "no run log configured", err, nil)
	}
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeConfig, "failed to load configuration", err, nil)
	}
	if cfg.EnvFile != "" {
		f.VerboseLog("Using %s", cfg.EnvFile)
	}
	return cfg, nil
}

// openJournal opens the attempt journal under the cache root.
func openJournal(cfg *config.Config, f *OutputFormatter) (*journal.Journal, error) {
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeOpen, "failed to create cache directory", err, nil)
	}
	j, err := journal.Open(filepath.Join(cfg.CacheDir, journal.FileName))
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeOpen, "failed to open journal", err, nil)
	}
	return j, nil
}

// openSession binds to the configured remote with the journal recording
// every LogRun attempt.
func openSession(ctx context.Context, opts *RootOptions, f *OutputFormatter) (*session, error) {
	cfg, err := loadConfig(opts, f)
	if err != nil {
		return nil, err
	}

	j, err := openJournal(cfg, f)
	if err != nil {
		return nil, err
	}

	f.VerboseLog("Opening run log %s", cfg.Repo)
	s, err := store.Open(ctx, store.Options{
		Remote:   cfg.Repo,
		CacheDir: cfg.CacheDir,
		Recorder: j,
	})
	if err != nil {
		j.Close()
		return nil, f.Fail(ExitCommandError, ErrCodeOpen, fmt.Sprintf("failed to open run log %s", cfg.Repo), err, nil)
	}
	f.VerboseLog("Replica at %s", s.Local())

	return &session{cfg: cfg, journal: j, store: s}, nil
}

// reportSync tells verbose users when the last read came from the local
// replica because the remote could not be reached.
func (s *session) reportSync(f *OutputFormatter) {
	if err := s.store.SyncErr(); store.IsSyncError(err) {
		f.VerboseLog("Remote unreachable, showing last known state: %v", err)
	}
}

func (s *session) Close() {
	if err := s.journal.Close(); err != nil {
		slog.Error("error closing journal", "error", err)
	}
}

// commandContext returns the command's context, or Background when the
// command was executed without one.
func commandContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
