package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/USEPA/git-job-log/internal/jobid"
	"github.com/USEPA/git-job-log/internal/testutil"
)

var testEpoch = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

// createTestStore binds a store to a fresh bare remote with a fake clock.
func createTestStore(t *testing.T) (*Store, *testutil.FakeClock) {
	t.Helper()
	remote := testutil.NewRemote(t)
	return createTestStoreFor(t, remote, testutil.CacheDir(t))
}

// createTestStoreFor binds a store to an existing remote and cache root.
func createTestStoreFor(t *testing.T, remote, cacheDir string) (*Store, *testutil.FakeClock) {
	t.Helper()
	clock := testutil.NewFakeClock(testEpoch)
	s, err := Open(context.Background(), Options{
		Remote:   remote,
		CacheDir: cacheDir,
		Now:      clock.Now,
	})
	require.NoError(t, err)
	s.sleep = clock.Sleep
	return s, clock
}

func ids(ss ...string) []jobid.ID {
	out := make([]jobid.ID, len(ss))
	for i, s := range ss {
		out[i] = jobid.MustParse(s)
	}
	return out
}

// recordingRecorder collects attempts in memory.
type recordingRecorder struct {
	mu       sync.Mutex
	attempts []Attempt
	err      error
}

func (r *recordingRecorder) RecordAttempt(_ context.Context, a Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, a)
	return r.err
}
