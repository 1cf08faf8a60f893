// Package store records job runs in a git repository.
//
// Each job owns exactly one run file, <job>/RUN, inside a local replica of
// a remote repository. Logging a run rewrites that file and commits it; the
// time of the most recent commit touching the file is the job's last-run
// timestamp. The git history is the audit log.
//
// # Replica
//
// The replica lives at LocalPath(cacheDir, remote), a directory named by
// the SHA-256 of the remote address, so every binding to the same remote
// reuses one working copy. The replica always works on branch "main".
//
// # Concurrency
//
// Writers follow a last-writer-wins discipline:
//
//  1. fetch and hard-reset to origin/main
//  2. write run files, commit, push
//  3. re-query and verify every logged job's timestamp advanced
//
// A writer that lost a race fails step 3 with a *VerificationError rather
// than reporting success. There is no in-process locking; a Store must not
// be shared between goroutines.
//
// # Clock resolution
//
// Git stores commit times in whole seconds. LogRun therefore waits for the
// next second when a target job was already committed in the current one,
// which keeps repeated runs of a job strictly ordered.
package store
