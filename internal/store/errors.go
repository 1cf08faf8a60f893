package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/USEPA/git-job-log/internal/jobid"
)

// ErrorCode categorizes store errors.
type ErrorCode string

const (
	// ErrCodeGitFailed indicates a git subprocess exited with an error.
	ErrCodeGitFailed ErrorCode = "GIT_FAILED"

	// ErrCodeSyncFailed indicates fetch or reset against the remote failed.
	ErrCodeSyncFailed ErrorCode = "SYNC_FAILED"

	// ErrCodePushFailed indicates the push of a run commit failed.
	ErrCodePushFailed ErrorCode = "PUSH_FAILED"

	// ErrCodeInvalidJob indicates a job list or run file could not be used.
	ErrCodeInvalidJob ErrorCode = "INVALID_JOB"
)

// Error is a coded store error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// GitError carries the arguments and stderr of a failed git command.
type GitError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *GitError) Error() string {
	msg := fmt.Sprintf("git %s: %v", strings.Join(e.Args, " "), e.Err)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

func (e *GitError) Unwrap() error {
	return e.Err
}

// VerificationError reports jobs whose run was not durably recorded.
//
// After LogRun pushes, it re-reads the remote. Jobs absent from that
// listing are Missing; jobs present but whose timestamp did not move past
// the pre-write snapshot are NotAdvanced. Either means another writer won
// the race or the push silently failed.
type VerificationError struct {
	Missing     []jobid.ID
	NotAdvanced []jobid.ID

	// Cause is the push error, if the push itself failed.
	Cause error
}

// Error implements the error interface.
func (e *VerificationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing after push: %s", strings.Join(jobid.Strings(e.Missing), ", ")))
	}
	if len(e.NotAdvanced) > 0 {
		parts = append(parts, fmt.Sprintf("timestamp not advanced: %s", strings.Join(jobid.Strings(e.NotAdvanced), ", ")))
	}
	msg := "run commit verification failed: " + strings.Join(parts, "; ")
	if e.Cause != nil {
		msg += fmt.Sprintf(" (push: %v)", e.Cause)
	}
	return msg
}

func (e *VerificationError) Unwrap() error {
	return e.Cause
}

// Jobs returns every failing job, missing ones first.
func (e *VerificationError) Jobs() []jobid.ID {
	out := make([]jobid.ID, 0, len(e.Missing)+len(e.NotAdvanced))
	out = append(out, e.Missing...)
	return append(out, e.NotAdvanced...)
}

// IsVerificationError reports whether err is or wraps a *VerificationError.
func IsVerificationError(err error) bool {
	var ve *VerificationError
	return errors.As(err, &ve)
}

// IsSyncError reports whether err is a synchronize failure.
func IsSyncError(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == ErrCodeSyncFailed
	}
	return false
}
