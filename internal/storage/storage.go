// Package storage persists the extraction run ledger in SQLite.
package storage

import (
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps SQLite-backed persistence for extraction jobs and results.
type Store struct {
	DB *sql.DB
}

// New opens (or creates) the database at path and ensures schema.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Store{DB: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS extract_jobs (
            id TEXT PRIMARY KEY,
            status TEXT NOT NULL,
            manifest_path TEXT,
            window TEXT,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            started_at TIMESTAMP,
            completed_at TIMESTAMP,
            error_message TEXT
        );`,
		`CREATE TABLE IF NOT EXISTS task_results (
            job_id TEXT,
            task_id TEXT,
            scale_row REAL,
            scale_col REAL,
            channels INTEGER,
            images INTEGER,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS read_failures (
            path TEXT,
            window TEXT,
            error TEXT,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE INDEX IF NOT EXISTS idx_task_results_job_id ON task_results(job_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.DB.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying DB.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// JobRecord captures persisted job info.
type JobRecord struct {
	ID           string
	Status       string
	ManifestPath string
	Window       string
	Error        string
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// TaskResultRecord captures one prepared task's outcome.
type TaskResultRecord struct {
	JobID    string
	TaskID   string
	ScaleRow float64
	ScaleCol float64
	Channels int
	Images   int
}

// RecordJobQueued inserts a pending job.
func (s *Store) RecordJobQueued(rec JobRecord) error {
	if s == nil {
		return nil
	}
	_, err := s.DB.Exec(`INSERT OR REPLACE INTO extract_jobs (id, status, manifest_path, window) VALUES (?, ?, ?, ?);`,
		rec.ID, rec.Status, rec.ManifestPath, rec.Window)
	return err
}

// RecordJobStart marks a job as running.
func (s *Store) RecordJobStart(id string) error {
	if s == nil {
		return nil
	}
	_, err := s.DB.Exec(`UPDATE extract_jobs SET status='running', started_at=CURRENT_TIMESTAMP WHERE id=?;`, id)
	return err
}

// RecordJobResult finalizes a job with status and error message.
func (s *Store) RecordJobResult(id string, status string, errMsg string) error {
	if s == nil {
		return nil
	}
	_, err := s.DB.Exec(`UPDATE extract_jobs SET status=?, completed_at=CURRENT_TIMESTAMP, error_message=? WHERE id=?;`,
		status, errMsg, id)
	return err
}

// RecordTaskResult persists one prepared task's scale and sizes.
func (s *Store) RecordTaskResult(rec TaskResultRecord) error {
	if s == nil {
		return nil
	}
	_, err := s.DB.Exec(`INSERT INTO task_results (job_id, task_id, scale_row, scale_col, channels, images) VALUES (?, ?, ?, ?, ?, ?);`,
		rec.JobID, rec.TaskID, rec.ScaleRow, rec.ScaleCol, rec.Channels, rec.Images)
	return err
}

// RecordReadFailure logs an exhausted tile read for later diagnosis.
func (s *Store) RecordReadFailure(path, window, errMsg string) error {
	if s == nil {
		return nil
	}
	_, err := s.DB.Exec(`INSERT INTO read_failures (path, window, error) VALUES (?, ?, ?);`,
		path, window, errMsg)
	return err
}

// RecentJobs returns the latest jobs up to limit.
func (s *Store) RecentJobs(limit int) ([]JobRecord, error) {
	if s == nil {
		return nil, errors.New("store not initialized")
	}
	rows, err := s.DB.Query(`SELECT id, status, manifest_path, window, created_at, started_at, completed_at, error_message FROM extract_jobs ORDER BY created_at DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []JobRecord
	for rows.Next() {
		var rec JobRecord
		var created time.Time
		var started, completed sql.NullTime
		var errorMsg sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Status, &rec.ManifestPath, &rec.Window, &created, &started, &completed, &errorMsg); err != nil {
			return nil, err
		}
		rec.CreatedAt = created
		if started.Valid {
			rec.StartedAt = &started.Time
		}
		if completed.Valid {
			rec.CompletedAt = &completed.Time
		}
		if errorMsg.Valid {
			rec.Error = errorMsg.String
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// TaskResults returns the prepared-task records for one job.
func (s *Store) TaskResults(jobID string) ([]TaskResultRecord, error) {
	if s == nil {
		return nil, errors.New("store not initialized")
	}
	rows, err := s.DB.Query(`SELECT job_id, task_id, scale_row, scale_col, channels, images FROM task_results WHERE job_id=? ORDER BY created_at;`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []TaskResultRecord
	for rows.Next() {
		var rec TaskResultRecord
		if err := rows.Scan(&rec.JobID, &rec.TaskID, &rec.ScaleRow, &rec.ScaleCol, &rec.Channels, &rec.Images); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
