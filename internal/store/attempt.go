package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/USEPA/git-job-log/internal/jobid"
)

// Outcome is the result of a LogRun attempt.
type Outcome string

const (
	OutcomeLogged             Outcome = "logged"
	OutcomeVerificationFailed Outcome = "verification_failed"
	OutcomeFailed             Outcome = "failed"
)

// Attempt describes one LogRun call, successful or not.
type Attempt struct {
	ID        string
	Remote    string
	Jobs      []jobid.ID
	StartedAt time.Time

	// Commit is the local commit hash, empty if no commit was made.
	Commit  string
	Outcome Outcome

	// FailedJobs lists jobs that failed verification.
	FailedJobs []jobid.ID
	Error      string
}

// AttemptRecorder receives LogRun attempts. Errors it returns are logged,
// never propagated to the LogRun caller.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, a Attempt) error
}

func (s *Store) record(ctx context.Context, a Attempt, result *LogResult, err error) {
	if result != nil {
		a.Commit = result.Commit
	}
	switch {
	case err == nil:
		a.Outcome = OutcomeLogged
	case IsVerificationError(err):
		var ve *VerificationError
		errors.As(err, &ve)
		a.Outcome = OutcomeVerificationFailed
		a.FailedJobs = ve.Jobs()
		a.Error = err.Error()
	default:
		a.Outcome = OutcomeFailed
		a.Error = err.Error()
	}

	if s.recorder == nil {
		return
	}
	if recErr := s.recorder.RecordAttempt(ctx, a); recErr != nil {
		slog.Warn("failed to record log attempt", "run_id", a.ID, "error", recErr)
	}
}
