package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"segtile/internal/storage"
)

func testServer(t *testing.T) (*Server, *storage.Store) {
	t.Helper()
	store, err := storage.New(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewServer(":0", store, nil, slog.Default()), store
}

func TestHandleHealth(t *testing.T) {
	s, _ := testServer(t)

	r := mux.NewRouter()
	s.setupRoutes(r)

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestHandleJobs(t *testing.T) {
	s, store := testServer(t)
	require.NoError(t, store.RecordJobQueued(storage.JobRecord{
		ID:           "job-1",
		Status:       "queued",
		ManifestPath: "/spool/run.yaml",
		Window:       "(0, 0, 128, 128)",
	}))

	r := mux.NewRouter()
	s.setupRoutes(r)

	req := httptest.NewRequest("GET", "/jobs", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var recs []storage.JobRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "job-1", recs[0].ID)
}

func TestHandleTaskResults(t *testing.T) {
	s, store := testServer(t)
	require.NoError(t, store.RecordTaskResult(storage.TaskResultRecord{
		JobID:    "job-1",
		TaskID:   "nuclei",
		ScaleRow: 1,
		ScaleCol: 1,
		Channels: 2,
		Images:   4,
	}))

	r := mux.NewRouter()
	s.setupRoutes(r)

	req := httptest.NewRequest("GET", "/jobs/job-1/tasks", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var recs []storage.TaskResultRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "nuclei", recs[0].TaskID)
}
