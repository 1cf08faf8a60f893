package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/USEPA/git-job-log/internal/jobid"
)

// RunRecord is the last recorded run of a job.
type RunRecord struct {
	Job jobid.ID

	// Timestamp is the commit time of the latest commit touching the job's
	// run file. Zero when Never is true.
	Timestamp time.Time

	// Never is true when the job has no committed run file.
	Never bool

	Payload Payload
}

// Present reports whether the job has ever been logged.
func (r RunRecord) Present() bool {
	return !r.Never
}

// runFilePath is the slash-separated path of a job's run file relative to
// the replica root.
func runFilePath(job jobid.ID) string {
	return path.Join(string(job), RunFile)
}

// LastRan returns the last run of job.
//
// Unless batch is true the replica is synchronized first, so a single
// lookup reflects the remote. Batch callers synchronize once themselves.
// A job with no run file yields a record with Never set.
func (s *Store) LastRan(ctx context.Context, job jobid.ID, batch bool) (RunRecord, error) {
	if !batch {
		s.syncBestEffort(ctx)
	}
	return s.lastRan(ctx, job)
}

func (s *Store) lastRan(ctx context.Context, job jobid.ID) (RunRecord, error) {
	rec := RunRecord{Job: job, Never: true}
	rel := runFilePath(job)

	data, err := os.ReadFile(filepath.Join(s.local, filepath.FromSlash(rel)))
	if errors.Is(err, fs.ErrNotExist) {
		return rec, nil
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("read run file for %s: %w", job, err)
	}

	out, err := s.git(ctx, "log", "-1", "--format=%cI", "--", rel)
	if err != nil {
		if !s.hasCommits(ctx) {
			return rec, nil
		}
		return RunRecord{}, fmt.Errorf("last run of %s: %w", job, err)
	}

	stamp := strings.TrimSpace(out)
	if stamp == "" {
		// Written but never committed.
		return rec, nil
	}
	ts, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return RunRecord{}, fmt.Errorf("parse commit time %q for %s: %w", stamp, job, err)
	}

	rec.Timestamp = ts
	rec.Never = false
	rec.Payload = DecodePayload(data)
	return rec, nil
}

// LastRuns returns the last run of every logged job.
//
// The replica is synchronized once; every tracked run file at the branch
// tip is then resolved. Jobs that were never logged are absent, callers
// must default them.
func (s *Store) LastRuns(ctx context.Context) (map[jobid.ID]RunRecord, error) {
	s.syncBestEffort(ctx)
	return s.lastRuns(ctx)
}

func (s *Store) lastRuns(ctx context.Context) (map[jobid.ID]RunRecord, error) {
	jobs, err := s.trackedJobs(ctx)
	if err != nil {
		return nil, err
	}

	runs := make(map[jobid.ID]RunRecord, len(jobs))
	for _, job := range jobs {
		rec, err := s.lastRan(ctx, job)
		if err != nil {
			return nil, err
		}
		if rec.Never {
			continue
		}
		runs[job] = rec
	}
	return runs, nil
}

// trackedJobs lists jobs whose run file is tracked by git.
func (s *Store) trackedJobs(ctx context.Context) ([]jobid.ID, error) {
	out, err := s.git(ctx, "ls-files", "-z")
	if err != nil {
		return nil, fmt.Errorf("list tracked files: %w", err)
	}

	var jobs []jobid.ID
	for _, p := range strings.Split(out, "\x00") {
		if path.Base(p) != RunFile {
			continue
		}
		dir := path.Dir(p)
		if dir == "." {
			continue
		}
		job, err := jobid.Parse(dir)
		if err != nil {
			slog.Debug("skipping run file outside job layout", "path", p, "error", err)
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// RunTimes returns the last-run timestamp of every logged job.
func (s *Store) RunTimes(ctx context.Context) (map[jobid.ID]time.Time, error) {
	runs, err := s.LastRuns(ctx)
	if err != nil {
		return nil, err
	}
	times := make(map[jobid.ID]time.Time, len(runs))
	for job, rec := range runs {
		times[job] = rec.Timestamp
	}
	return times, nil
}
