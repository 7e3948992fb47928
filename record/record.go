// Package record keeps a history of suite runs in a SQLite database.
package record

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/cachecheck/cache"
)

// ErrClosed is returned when recording into a closed recorder.
var ErrClosed = errors.New("recorder is closed")

// CaseRecord is one case's result as stored in the history.
type CaseRecord struct {
	S, E, B int
	Trace   string
	// Status is one of Pass, Fail, Skip, Error.
	Status        string
	StatsMatch    bool
	OutcomesMatch bool
	// Divergence is the first differing access, or -1.
	Divergence int
	Reference  cache.Stats
	Candidate  cache.Stats
	Error      string
	Duration   time.Duration
}

// Recorder receives case results as a suite runs.
type Recorder interface {
	// RecordCase buffers one result.
	RecordCase(r CaseRecord) error
	// Flush writes the buffered results.
	Flush() error
	// Close flushes and releases the recorder.
	Close() error
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	started TEXT NOT NULL,
	candidate TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS cases (
	run_id TEXT NOT NULL REFERENCES runs(id),
	s INTEGER, e INTEGER, b INTEGER,
	trace TEXT,
	status TEXT,
	stats_match INTEGER,
	outcomes_match INTEGER,
	divergence INTEGER,
	ref_hits INTEGER, ref_misses INTEGER, ref_evictions INTEGER,
	ref_dirty_in_cache INTEGER, ref_dirty_evicted INTEGER,
	cand_hits INTEGER, cand_misses INTEGER, cand_evictions INTEGER,
	cand_dirty_in_cache INTEGER, cand_dirty_evicted INTEGER,
	error TEXT,
	duration_ns INTEGER
);`

const insertCase = `INSERT INTO cases VALUES (
	?, ?, ?, ?, ?, ?, ?, ?, ?,
	?, ?, ?, ?, ?,
	?, ?, ?, ?, ?,
	?, ?)`

// SQLiteRecorder appends one run to a SQLite database. Results are buffered
// and written in a single transaction per flush.
type SQLiteRecorder struct {
	*sql.DB

	mu        sync.Mutex
	runID     string
	batchSize int
	entries   []CaseRecord
	closed    bool
}

// NewSQLiteRecorder opens (or creates) the database at path and starts a new
// run for the named candidate. The buffer is flushed at process exit through
// atexit.
func NewSQLiteRecorder(path, candidate string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables in %s: %w", path, err)
	}

	r := &SQLiteRecorder{
		DB:        db,
		runID:     xid.New().String(),
		batchSize: 1000,
	}

	_, err = db.Exec(`INSERT INTO runs VALUES (?, ?, ?)`,
		r.runID, time.Now().UTC().Format(time.RFC3339), candidate)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to start run: %w", err)
	}

	atexit.Register(func() { _ = r.Flush() })

	return r, nil
}

// RunID identifies the run being recorded.
func (r *SQLiteRecorder) RunID() string {
	return r.runID
}

// RecordCase buffers a result, flushing once the buffer is full.
func (r *SQLiteRecorder) RecordCase(c CaseRecord) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	r.entries = append(r.entries, c)
	full := len(r.entries) >= r.batchSize
	r.mu.Unlock()

	if full {
		return r.Flush()
	}
	return nil
}

// Flush writes all buffered results.
func (r *SQLiteRecorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || len(r.entries) == 0 {
		return nil
	}

	tx, err := r.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(insertCase)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, c := range r.entries {
		ref := c.Reference.Values()
		cand := c.Candidate.Values()
		_, err := stmt.Exec(
			r.runID, c.S, c.E, c.B, c.Trace, c.Status,
			c.StatsMatch, c.OutcomesMatch, c.Divergence,
			ref[0], ref[1], ref[2], ref[3], ref[4],
			cand[0], cand[1], cand[2], cand[3], cand[4],
			c.Error, c.Duration.Nanoseconds(),
		)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert case: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	r.entries = nil

	return nil
}

// Close flushes the buffer and closes the database.
func (r *SQLiteRecorder) Close() error {
	if err := r.Flush(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	return r.DB.Close()
}
