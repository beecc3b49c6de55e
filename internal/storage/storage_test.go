package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestJobLifecycle(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.RecordJobQueued(JobRecord{
		ID:           "job-1",
		Status:       "queued",
		ManifestPath: "/spool/run.yaml",
		Window:       "(0, 0, 256, 256)",
	}))
	require.NoError(t, s.RecordJobStart("job-1"))
	require.NoError(t, s.RecordJobResult("job-1", "completed", ""))

	recs, err := s.RecentJobs(10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "completed", recs[0].Status)
	assert.Equal(t, "/spool/run.yaml", recs[0].ManifestPath)
	assert.NotNil(t, recs[0].StartedAt)
	assert.NotNil(t, recs[0].CompletedAt)
}

func TestTaskResults(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.RecordTaskResult(TaskResultRecord{
		JobID:    "job-1",
		TaskID:   "nuclei",
		ScaleRow: 2,
		ScaleCol: 2,
		Channels: 1,
		Images:   3,
	}))

	recs, err := s.TaskResults("job-1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "nuclei", recs[0].TaskID)
	assert.Equal(t, 2.0, recs[0].ScaleRow)
	assert.Equal(t, 3, recs[0].Images)
}

func TestReadFailureLedger(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.RecordReadFailure("/data/d.tif", "(0, 0, 16, 16)", "truncated read"))

	var n int
	require.NoError(t, s.DB.QueryRow(`SELECT COUNT(*) FROM read_failures;`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestNilStoreIsNoop(t *testing.T) {
	var s *Store
	assert.NoError(t, s.RecordJobQueued(JobRecord{}))
	assert.NoError(t, s.RecordJobStart("x"))
	assert.NoError(t, s.RecordJobResult("x", "failed", "boom"))
	assert.NoError(t, s.Close())
}
