package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/USEPA/git-job-log/internal/jobid"
)

const (
	// RunFile is the name of the per-job run file.
	RunFile = jobid.RunFile

	// Branch is the branch every replica works on.
	Branch = "main"

	// DataDir is the default cache root under the user's home directory.
	DataDir = ".git_job_log"

	remoteName   = "origin"
	remoteBranch = remoteName + "/" + Branch
)

// Options configures Open.
type Options struct {
	// Remote is the repository address: a URL or a local path.
	Remote string

	// CacheDir is the cache root. Defaults to ~/.git_job_log.
	CacheDir string

	// Recorder, if set, receives every LogRun attempt.
	Recorder AttemptRecorder

	// Now overrides the wall clock (for testing).
	Now func() time.Time

	// NewRunID overrides run ID generation (for testing).
	// Defaults to UUIDv7.
	NewRunID func() string
}

// Store is a binding to one remote run log.
type Store struct {
	remote   string
	local    string
	recorder AttemptRecorder
	now      func() time.Time
	sleep    func(time.Duration)
	newRunID func() string

	// syncErr is the failure of the most recent synchronize, nil after a
	// successful one.
	syncErr error
}

// DefaultCacheDir returns ~/.git_job_log.
func DefaultCacheDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, DataDir), nil
}

// LocalPath returns the replica directory for remote under cacheDir:
// <cacheDir>/repos/<hex sha256(remote)>.
func LocalPath(cacheDir, remote string) string {
	sum := sha256.Sum256([]byte(remote))
	return filepath.Join(cacheDir, "repos", hex.EncodeToString(sum[:]))
}

// Open binds to a remote, creating the local replica on first use.
//
// The replica is cloned from the remote. If cloning fails (for example the
// remote does not exist yet) an empty repository is initialized with the
// remote configured as origin. Either way the replica ends up on Branch.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Remote == "" {
		return nil, errors.New("open store: remote address is required")
	}

	cacheDir := opts.CacheDir
	if cacheDir == "" {
		dir, err := DefaultCacheDir()
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		cacheDir = dir
	}

	s := &Store{
		remote:   opts.Remote,
		local:    LocalPath(cacheDir, opts.Remote),
		recorder: opts.Recorder,
		now:      opts.Now,
		sleep:    time.Sleep,
		newRunID: opts.NewRunID,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newRunID == nil {
		s.newRunID = func() string { return uuid.Must(uuid.NewV7()).String() }
	}

	if err := s.ensureReplica(ctx); err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return s, nil
}

// Remote returns the bound remote address.
func (s *Store) Remote() string {
	return s.remote
}

// Local returns the replica directory.
func (s *Store) Local() string {
	return s.local
}

func (s *Store) ensureReplica(ctx context.Context) error {
	if _, err := os.Stat(filepath.Join(s.local, ".git")); err == nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.local), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	if _, err := runGit(ctx, "", "clone", s.remote, s.local); err != nil {
		slog.Debug("clone failed, initializing empty replica", "remote", s.remote, "error", err)
		if err := os.MkdirAll(s.local, 0o755); err != nil {
			return fmt.Errorf("create replica: %w", err)
		}
		if _, err := s.git(ctx, "init"); err != nil {
			return err
		}
		if _, err := s.git(ctx, "remote", "add", remoteName, s.remote); err != nil {
			return err
		}
	}

	if _, err := s.git(ctx, "rev-parse", "--verify", "--quiet", remoteBranch); err == nil {
		if _, err := s.git(ctx, "checkout", "-B", Branch, remoteBranch); err != nil {
			return err
		}
	} else if _, err := s.git(ctx, "symbolic-ref", "HEAD", "refs/heads/"+Branch); err != nil {
		return err
	}

	return s.ensureIdentity(ctx)
}

// ensureIdentity gives the replica a committer identity when git has none
// configured.
func (s *Store) ensureIdentity(ctx context.Context) error {
	defaults := map[string]string{
		"user.name":  "git-job-log",
		"user.email": "git-job-log@localhost",
	}
	for _, key := range []string{"user.name", "user.email"} {
		if _, err := s.git(ctx, "config", key); err == nil {
			continue
		}
		if _, err := s.git(ctx, "config", key, defaults[key]); err != nil {
			return err
		}
	}
	return nil
}

// synchronize fetches and hard-resets the replica to the remote tip,
// discarding local drift.
func (s *Store) synchronize(ctx context.Context) error {
	steps := [][]string{
		{"fetch", remoteName},
		{"reset", "--hard", remoteBranch},
		{"clean", "-fd"},
	}
	for _, args := range steps {
		if _, err := s.git(ctx, args...); err != nil {
			return &Error{Code: ErrCodeSyncFailed, Message: "synchronize with " + s.remote, Err: err}
		}
	}
	return nil
}

// syncBestEffort synchronizes, serving the local replica when that fails.
func (s *Store) syncBestEffort(ctx context.Context) {
	s.syncErr = s.synchronize(ctx)
	if s.syncErr != nil {
		slog.Warn("synchronize failed, using local replica", "remote", s.remote, "error", s.syncErr)
	}
}

// SyncErr returns the failure of the most recent synchronize with the
// remote, or nil if it succeeded. A non-nil result means the last read was
// served from the local replica and may be behind the remote.
func (s *Store) SyncErr() error {
	return s.syncErr
}

// hasCommits reports whether the replica's HEAD points at a commit.
func (s *Store) hasCommits(ctx context.Context) bool {
	_, err := s.git(ctx, "rev-parse", "--verify", "--quiet", "HEAD")
	return err == nil
}
