// Package history persists finished jobs to a local SQLite database so
// completed and failed downloads survive restarts.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/seeeba07/Universal-Video-Downloader/internal/model"
)

// Entry is one persisted terminal job.
type Entry struct {
	ID         int64           `json:"id"`
	JobID      string          `json:"job_id"`
	SourceURL  string          `json:"source_url"`
	Title      string          `json:"title"`
	Mode       string          `json:"mode"`
	Status     model.JobStatus `json:"status"`
	OutputPath string          `json:"output_path,omitempty"`
	ErrorKind  string          `json:"error_kind,omitempty"`
	Error      string          `json:"error,omitempty"`
	RetryCount int             `json:"retry_count"`
	FinishedAt time.Time       `json:"finished_at"`
}

// Store is the SQLite-backed history database.
type Store struct {
	db *sql.DB
}

// Open creates or opens the history database at dbPath, creating parent
// directories and running migrations as needed.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping history db: %w", err)
	}

	// SQLite does not support concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	for i, m := range migrations() {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("history migration %d: %w", i+1, err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores one terminal job. Non-terminal jobs are ignored so the
// store can be wired directly as a queue listener.
func (s *Store) Record(job *model.Job) error {
	if !job.Status.IsTerminal() {
		return nil
	}

	var errKind, errMsg string
	if job.LastError != nil {
		errKind = string(job.LastError.Kind)
		errMsg = job.LastError.Message
	}
	finished := job.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT INTO history (job_id, source_url, title, mode, status, output_path, error_kind, error, retry_count, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, job.ID, job.SourceURL, job.Title, string(job.Mode), string(job.Status),
		job.OutputPath, errKind, errMsg, job.RetryCount, finished.Unix())
	if err != nil {
		return fmt.Errorf("record history entry: %w", err)
	}
	return nil
}

// List returns the most recent entries, newest first. limit <= 0 means a
// default page of 100.
func (s *Store) List(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`
		SELECT id, job_id, source_url, title, mode, status, output_path, error_kind, error, retry_count, finished_at
		FROM history ORDER BY finished_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var status, mode string
		var finished int64
		if err := rows.Scan(&e.ID, &e.JobID, &e.SourceURL, &e.Title, &mode, &status,
			&e.OutputPath, &e.ErrorKind, &e.Error, &e.RetryCount, &finished); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		e.Status = model.JobStatus(status)
		e.Mode = mode
		e.FinishedAt = time.Unix(finished, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats counts entries per terminal status.
func (s *Store) Stats() (completed, failed, cancelled int64, err error) {
	count := func(status model.JobStatus) (n int64) {
		_ = s.db.QueryRow("SELECT COUNT(*) FROM history WHERE status = ?", string(status)).Scan(&n)
		return
	}
	if err = s.db.QueryRow("SELECT 1").Err(); err != nil {
		return
	}
	return count(model.StatusCompleted), count(model.StatusFailed), count(model.StatusCancelled), nil
}

// Clear removes every entry and returns the number deleted.
func (s *Store) Clear() (int64, error) {
	res, err := s.db.Exec("DELETE FROM history")
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	return res.RowsAffected()
}
