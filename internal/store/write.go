package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/USEPA/git-job-log/internal/jobid"
)

// maxClockWait bounds how long LogRun waits for its commit second to pass
// the previous run of a job. Larger gaps mean the previous commit came from
// a skewed clock; LogRun then stamps one second after it instead.
const maxClockWait = 2 * time.Second

// LogResult describes a recorded run.
type LogResult struct {
	RunID     string
	Commit    string
	Timestamp time.Time
	Jobs      []jobid.ID
}

// LogRun records that every job in jobs ran now, as one commit.
//
// The replica is synchronized, each job's run file is rewritten with the
// encoded payload, and the commit is pushed to origin/main. Afterwards the
// remote is re-read; a job that is missing or whose timestamp did not
// advance fails the call with a *VerificationError.
func (s *Store) LogRun(ctx context.Context, jobs []jobid.ID, payload Payload) (*LogResult, error) {
	jobs = dedupe(jobs)
	if len(jobs) == 0 {
		return nil, &Error{Code: ErrCodeInvalidJob, Message: "no jobs to log"}
	}

	attempt := Attempt{
		ID:        s.newRunID(),
		Remote:    s.remote,
		Jobs:      jobs,
		StartedAt: s.now(),
	}
	result, err := s.logRun(ctx, attempt.ID, jobs, payload)
	s.record(ctx, attempt, result, err)
	return result, err
}

func (s *Store) logRun(ctx context.Context, runID string, jobs []jobid.ID, payload Payload) (*LogResult, error) {
	s.syncBestEffort(ctx)

	before, err := s.lastRuns(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot before log: %w", err)
	}

	content := payload.Encode()
	when := s.commitTime(jobs, before)

	for _, job := range jobs {
		if err := s.writeRunFile(job, content); err != nil {
			return nil, err
		}
	}

	if _, err := s.git(ctx, "add", "-A"); err != nil {
		return nil, err
	}

	// Git's internal date format: unix seconds and a numeric offset.
	stamp := fmt.Sprintf("%d %s", when.Unix(), when.Format("-0700"))
	env := []string{"GIT_AUTHOR_DATE=" + stamp, "GIT_COMMITTER_DATE=" + stamp}
	if _, err := s.gitEnv(ctx, env, "-c", "commit.gpgsign=false", "commit", "--quiet", "-m", commitMessage(runID, jobs)); err != nil {
		return nil, err
	}

	out, err := s.git(ctx, "rev-parse", "HEAD")
	if err != nil {
		return nil, err
	}
	result := &LogResult{
		RunID:     runID,
		Commit:    strings.TrimSpace(out),
		Timestamp: when,
		Jobs:      jobs,
	}

	var pushErr error
	if _, err := s.git(ctx, "push", "--quiet", "--set-upstream", remoteName, Branch); err != nil {
		slog.Error("push failed", "remote", s.remote, "run_id", runID, "error", err)
		pushErr = err
	}

	after, err := s.LastRuns(ctx)
	if err != nil {
		return result, fmt.Errorf("verify log: %w", err)
	}
	if err := verifyAdvanced(jobs, before, after); err != nil {
		var ve *VerificationError
		if errors.As(err, &ve) {
			ve.Cause = pushErr
		}
		slog.Error("run not recorded", "run_id", runID, "error", err)
		return result, err
	}
	if pushErr != nil {
		return result, &Error{Code: ErrCodePushFailed, Message: "push to " + s.remote, Err: pushErr}
	}

	slog.Debug("run logged", "run_id", runID, "commit", result.Commit, "jobs", len(jobs))
	return result, nil
}

// commitTime picks the commit instant: now, truncated to git's one-second
// resolution, and strictly after every previous run of the target jobs.
func (s *Store) commitTime(jobs []jobid.ID, before map[jobid.ID]RunRecord) time.Time {
	var latest time.Time
	for _, job := range jobs {
		if rec, ok := before[job]; ok && rec.Timestamp.After(latest) {
			latest = rec.Timestamp
		}
	}

	when := s.now().Truncate(time.Second)
	if when.After(latest) {
		return when
	}

	next := latest.Add(time.Second)
	if wait := next.Sub(s.now()); wait <= maxClockWait {
		s.sleep(wait)
		if when = s.now().Truncate(time.Second); when.After(latest) {
			return when
		}
	} else {
		slog.Warn("previous run is in the future, clock skew?", "previous", latest)
	}
	return next.In(when.Location())
}

// writeRunFile writes content to the job's run file. Identical content gets
// a rerun marker so the file still changes.
func (s *Store) writeRunFile(job jobid.ID, content []byte) error {
	dir := filepath.Join(s.local, filepath.FromSlash(string(job)))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &Error{Code: ErrCodeInvalidJob, Message: "create job directory for " + string(job), Err: err}
	}

	p := filepath.Join(dir, RunFile)
	existing, err := os.ReadFile(p)
	switch {
	case err == nil && bytes.Equal(existing, content):
		content = appendRerunMarker(content, s.now())
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return &Error{Code: ErrCodeInvalidJob, Message: "read run file for " + string(job), Err: err}
	}

	if err := os.WriteFile(p, content, 0o644); err != nil {
		return &Error{Code: ErrCodeInvalidJob, Message: "write run file for " + string(job), Err: err}
	}
	return nil
}

func verifyAdvanced(jobs []jobid.ID, before, after map[jobid.ID]RunRecord) error {
	var ve VerificationError
	for _, job := range jobs {
		now, ok := after[job]
		if !ok {
			ve.Missing = append(ve.Missing, job)
			continue
		}
		if prev, ok := before[job]; ok && !now.Timestamp.After(prev.Timestamp) {
			ve.NotAdvanced = append(ve.NotAdvanced, job)
		}
	}
	if len(ve.Missing) == 0 && len(ve.NotAdvanced) == 0 {
		return nil
	}
	return &ve
}

func commitMessage(runID string, jobs []jobid.ID) string {
	var b strings.Builder
	b.WriteString("log run: ")
	b.WriteString(strings.Join(jobid.Strings(jobs), " "))
	b.WriteString("\n\n")
	for _, job := range jobs {
		fmt.Fprintf(&b, "- %s\n", job)
	}
	fmt.Fprintf(&b, "\nRun-Id: %s\n", runID)
	return b.String()
}

func dedupe(jobs []jobid.ID) []jobid.ID {
	seen := make(map[jobid.ID]bool, len(jobs))
	out := make([]jobid.ID, 0, len(jobs))
	for _, job := range jobs {
		if job == "" || seen[job] {
			continue
		}
		seen[job] = true
		out = append(out, job)
	}
	return out
}
