package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/USEPA/git-job-log/internal/jobid"
	"github.com/USEPA/git-job-log/internal/testutil"
)

func TestLogRun_RoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		payload Payload
		kind    PayloadKind
		raw     string
		value   any
	}{
		{"absent", Payload{}, KindText, "", nil},
		{"empty text", Text(""), KindText, "", nil},
		{"text", Text("mowed front and back"), KindText, "mowed front and back", nil},
		{"multiline text", Text("line one\nline two\n"), KindText, "line one\nline two\n", nil},
		{
			"mapping",
			Structured(map[string]any{"mower": "push", "passes": 2, "areas": []any{"front", "back"}}),
			KindStructured,
			"",
			map[string]any{"mower": "push", "passes": 2, "areas": []any{"front", "back"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := createTestStore(t)
			ctx := context.Background()
			job := jobid.MustParse("home/yard/lawn/mow")

			_, err := s.LogRun(ctx, []jobid.ID{job}, tt.payload)
			require.NoError(t, err)

			rec, err := s.LastRan(ctx, job, false)
			require.NoError(t, err)
			require.True(t, rec.Present())
			assert.Equal(t, job, rec.Job)
			assert.Equal(t, tt.kind, rec.Payload.Kind())
			if tt.kind == KindStructured {
				assert.Equal(t, tt.value, rec.Payload.Value())
			} else {
				assert.Equal(t, tt.raw, rec.Payload.Raw())
			}
		})
	}
}

func TestLogRun_WritesRunFileLayout(t *testing.T) {
	s, _ := createTestStore(t)
	_, err := s.LogRun(context.Background(), ids("home/yard/fence/paint"), Text("white"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(s.Local(), "home", "yard", "fence", "paint", RunFile))
	require.NoError(t, err)
	assert.Equal(t, "white", string(data))
}

func TestLogRun_IdenticalPayloadStillCommits(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()
	job := jobid.MustParse("home/yard/lawn/mow")

	first, err := s.LogRun(ctx, []jobid.ID{job}, Text("same"))
	require.NoError(t, err)
	rec1, err := s.LastRan(ctx, job, false)
	require.NoError(t, err)

	second, err := s.LogRun(ctx, []jobid.ID{job}, Text("same"))
	require.NoError(t, err)
	rec2, err := s.LastRan(ctx, job, false)
	require.NoError(t, err)

	assert.NotEqual(t, first.Commit, second.Commit)
	assert.True(t, rec2.Timestamp.After(rec1.Timestamp), "%v should be after %v", rec2.Timestamp, rec1.Timestamp)
	assert.Equal(t, "same", rec2.Payload.Raw())

	// A third identical run drops the marker again and still advances.
	_, err = s.LogRun(ctx, []jobid.ID{job}, Text("same"))
	require.NoError(t, err)
	rec3, err := s.LastRan(ctx, job, false)
	require.NoError(t, err)
	assert.True(t, rec3.Timestamp.After(rec2.Timestamp))
	assert.Equal(t, "same", rec3.Payload.Raw())
}

func TestLogRun_BatchSharesTimestamp(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	jobs := ids("a/b", "b/c", "b/c/d")
	result, err := s.LogRun(ctx, jobs, Payload{})
	require.NoError(t, err)
	assert.Equal(t, jobs, result.Jobs)

	runs, err := s.LastRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 3)

	for _, job := range jobs {
		rec, ok := runs[job]
		require.True(t, ok, "missing %s", job)
		assert.True(t, rec.Timestamp.Equal(runs[jobs[0]].Timestamp))
		assert.True(t, rec.Timestamp.Equal(result.Timestamp))
	}
}

func TestLogRun_DuplicateJobsCollapse(t *testing.T) {
	s, _ := createTestStore(t)
	result, err := s.LogRun(context.Background(), ids("a/b", "a/b", "c"), Text("x"))
	require.NoError(t, err)
	assert.Equal(t, ids("a/b", "c"), result.Jobs)
}

func TestLogRun_NoJobs(t *testing.T) {
	s, _ := createTestStore(t)
	_, err := s.LogRun(context.Background(), nil, Text("x"))

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrCodeInvalidJob, se.Code)
}

func TestLogRun_RespectsRealDelay(t *testing.T) {
	if testing.Short() {
		t.Skip("sleeps for two seconds")
	}
	remote := testutil.NewRemote(t)
	s, err := Open(context.Background(), Options{Remote: remote, CacheDir: testutil.CacheDir(t)})
	require.NoError(t, err)

	ctx := context.Background()
	job := jobid.MustParse("home/yard/lawn/mow")
	const delay = 2 * time.Second

	_, err = s.LogRun(ctx, []jobid.ID{job}, Text("one"))
	require.NoError(t, err)
	rec1, err := s.LastRan(ctx, job, false)
	require.NoError(t, err)

	time.Sleep(delay)

	_, err = s.LogRun(ctx, []jobid.ID{job}, Text("two"))
	require.NoError(t, err)
	rec2, err := s.LastRan(ctx, job, false)
	require.NoError(t, err)

	diff := rec2.Timestamp.Sub(rec1.Timestamp)
	assert.GreaterOrEqual(t, diff, delay)
	assert.Less(t, diff, delay+2*time.Second)
}

func TestLogRun_SecondWriterSeesFirst(t *testing.T) {
	remote := testutil.NewRemote(t)
	ctx := context.Background()

	a, _ := createTestStoreFor(t, remote, testutil.CacheDir(t))
	b, clockB := createTestStoreFor(t, remote, testutil.CacheDir(t))

	_, err := a.LogRun(ctx, ids("shared/job"), Text("from a"))
	require.NoError(t, err)

	clockB.Advance(10 * time.Second)
	_, err = b.LogRun(ctx, ids("other/job"), Text("from b"))
	require.NoError(t, err)

	runs, err := a.LastRuns(ctx)
	require.NoError(t, err)
	assert.Contains(t, runs, jobid.MustParse("shared/job"))
	assert.Contains(t, runs, jobid.MustParse("other/job"))
	assert.Equal(t, "from b", runs[jobid.MustParse("other/job")].Payload.Raw())
}

func TestLogRun_UnreachableRemoteFails(t *testing.T) {
	testutil.RequireGit(t)
	remote := filepath.Join(t.TempDir(), "missing.git")
	s, _ := createTestStoreFor(t, remote, testutil.CacheDir(t))

	_, err := s.LogRun(context.Background(), ids("a/b"), Text("x"))
	require.Error(t, err)

	var se *Error
	require.True(t, errors.As(err, &se) || IsVerificationError(err), "unexpected error: %v", err)
}

func TestLogRun_RecordsAttempt(t *testing.T) {
	remote := testutil.NewRemote(t)
	rec := &recordingRecorder{}
	clock := testutil.NewFakeClock(testEpoch)

	s, err := Open(context.Background(), Options{
		Remote:   remote,
		CacheDir: testutil.CacheDir(t),
		Recorder: rec,
		Now:      clock.Now,
		NewRunID: func() string { return "run-0001" },
	})
	require.NoError(t, err)
	s.sleep = clock.Sleep

	result, err := s.LogRun(context.Background(), ids("a/b", "c/d"), Text("x"))
	require.NoError(t, err)

	require.Len(t, rec.attempts, 1)
	got := rec.attempts[0]
	assert.Equal(t, "run-0001", got.ID)
	assert.Equal(t, "run-0001", result.RunID)
	assert.Equal(t, remote, got.Remote)
	assert.Equal(t, ids("a/b", "c/d"), got.Jobs)
	assert.Equal(t, OutcomeLogged, got.Outcome)
	assert.Equal(t, result.Commit, got.Commit)
	assert.Empty(t, got.Error)
}

func TestLogRun_RecorderErrorIgnored(t *testing.T) {
	remote := testutil.NewRemote(t)
	rec := &recordingRecorder{err: errors.New("disk full")}

	s, err := Open(context.Background(), Options{Remote: remote, CacheDir: testutil.CacheDir(t), Recorder: rec})
	require.NoError(t, err)

	_, err = s.LogRun(context.Background(), ids("a/b"), Text("x"))
	assert.NoError(t, err)
	assert.Len(t, rec.attempts, 1)
}

func TestCommitTime(t *testing.T) {
	clock := testutil.NewFakeClock(testEpoch.Add(300 * time.Millisecond))
	s := &Store{now: clock.Now, sleep: clock.Sleep}
	job := jobid.MustParse("a/b")

	// Nothing logged before: current second.
	assert.Equal(t, testEpoch, s.commitTime([]jobid.ID{job}, nil))

	// Previous run in the same second: waits for the next one.
	before := map[jobid.ID]RunRecord{job: {Job: job, Timestamp: testEpoch}}
	got := s.commitTime([]jobid.ID{job}, before)
	assert.Equal(t, testEpoch.Add(time.Second), got)
	assert.True(t, clock.Now().After(testEpoch.Add(time.Second)) || clock.Now().Equal(testEpoch.Add(time.Second)))

	// Previous run far in the future: no waiting, one second after it.
	future := clock.Now().Add(time.Hour).Truncate(time.Second)
	start := clock.Now()
	before = map[jobid.ID]RunRecord{job: {Job: job, Timestamp: future}}
	assert.Equal(t, future.Add(time.Second), s.commitTime([]jobid.ID{job}, before))
	assert.Equal(t, start, clock.Now())
}

func TestVerifyAdvanced(t *testing.T) {
	a, b, c := jobid.MustParse("a"), jobid.MustParse("b"), jobid.MustParse("c")
	t0 := testEpoch
	t1 := testEpoch.Add(time.Second)

	before := map[jobid.ID]RunRecord{
		a: {Job: a, Timestamp: t0},
		b: {Job: b, Timestamp: t0},
	}
	after := map[jobid.ID]RunRecord{
		a: {Job: a, Timestamp: t1},
		b: {Job: b, Timestamp: t0},
	}

	err := verifyAdvanced([]jobid.ID{a, b, c}, before, after)
	require.Error(t, err)
	require.True(t, IsVerificationError(err))

	var ve *VerificationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []jobid.ID{c}, ve.Missing)
	assert.Equal(t, []jobid.ID{b}, ve.NotAdvanced)
	assert.Equal(t, []jobid.ID{c, b}, ve.Jobs())
	assert.Contains(t, err.Error(), "missing after push: c")
	assert.Contains(t, err.Error(), "timestamp not advanced: b")

	assert.NoError(t, verifyAdvanced([]jobid.ID{a}, before, after))
}

func TestCommitMessage(t *testing.T) {
	msg := commitMessage("run-1", ids("a/b", "c"))
	assert.Contains(t, msg, "log run: a/b c\n")
	assert.Contains(t, msg, "- a/b\n")
	assert.Contains(t, msg, "Run-Id: run-1\n")
}
