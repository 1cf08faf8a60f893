// Package journal keeps a local SQLite record of LogRun attempts.
//
// The git history already records successful runs. The journal adds what
// git cannot: attempts that failed verification, which jobs failed, and
// the error text, so "did my log actually land?" has an answer after the
// terminal scrolls away. Journal implements store.AttemptRecorder.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/USEPA/git-job-log/internal/jobid"
	"github.com/USEPA/git-job-log/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is stamped into PRAGMA user_version. Open refuses a
// journal stamped with a later version.
const schemaVersion = 1

// FileName is the journal's file name under the cache root.
const FileName = "journal.db"

// timeLayout sorts lexically in chronological order for UTC times.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Journal stores LogRun attempts.
type Journal struct {
	db *sql.DB
}

// Open creates or opens a journal database at path.
// Applies required pragmas and migrations automatically.
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// RecordAttempt stores a LogRun attempt. Recording the same attempt ID
// twice keeps the latest outcome.
func (j *Journal) RecordAttempt(ctx context.Context, a store.Attempt) error {
	jobsJSON, err := marshalJobs(a.Jobs)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	failedJSON, err := marshalJobs(a.FailedJobs)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO attempts
		(id, remote, jobs, started_at, commit_hash, outcome, failed_jobs, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			commit_hash = excluded.commit_hash,
			outcome     = excluded.outcome,
			failed_jobs = excluded.failed_jobs,
			error       = excluded.error
	`,
		a.ID,
		a.Remote,
		jobsJSON,
		a.StartedAt.UTC().Format(timeLayout),
		a.Commit,
		string(a.Outcome),
		failedJSON,
		a.Error,
	)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

// Recent returns up to limit attempts against remote, newest first.
// An empty remote matches every remote. Returns an empty slice (not nil)
// when nothing was recorded.
func (j *Journal) Recent(ctx context.Context, remote string, limit int) ([]store.Attempt, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, remote, jobs, started_at, commit_hash, outcome, failed_jobs, error
		FROM attempts
		WHERE ? = '' OR remote = ?
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, remote, remote, limit)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	attempts := []store.Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return attempts, nil
}

func scanAttempt(rows *sql.Rows) (store.Attempt, error) {
	var (
		a                          store.Attempt
		jobsJSON, failedJSON, when string
		outcome                    string
	)
	if err := rows.Scan(&a.ID, &a.Remote, &jobsJSON, &when, &a.Commit, &outcome, &failedJSON, &a.Error); err != nil {
		return store.Attempt{}, fmt.Errorf("scan attempt: %w", err)
	}

	started, err := time.Parse(timeLayout, when)
	if err != nil {
		return store.Attempt{}, fmt.Errorf("parse started_at %q: %w", when, err)
	}
	a.StartedAt = started
	a.Outcome = store.Outcome(outcome)

	if a.Jobs, err = unmarshalJobs(jobsJSON); err != nil {
		return store.Attempt{}, err
	}
	if a.FailedJobs, err = unmarshalJobs(failedJSON); err != nil {
		return store.Attempt{}, err
	}
	return a, nil
}

func marshalJobs(jobs []jobid.ID) (string, error) {
	if len(jobs) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(jobid.Strings(jobs))
	if err != nil {
		return "", fmt.Errorf("marshal jobs: %w", err)
	}
	return string(data), nil
}

func unmarshalJobs(data string) ([]jobid.ID, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var ss []string
	if err := json.Unmarshal([]byte(data), &ss); err != nil {
		return nil, fmt.Errorf("unmarshal jobs: %w", err)
	}
	out := make([]jobid.ID, len(ss))
	for i, s := range ss {
		out[i] = jobid.ID(s)
	}
	return out, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema checks the stored schema version, creates tables if they
// don't exist, and stamps the version.
func applySchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > schemaVersion {
		return fmt.Errorf("journal schema version %d is newer than supported version %d", version, schemaVersion)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (j *Journal) verifyPragma(name, expected string) error {
	var value string
	if err := j.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
