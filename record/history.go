package record

import (
	"database/sql"
	"fmt"
	"os"
	"time"
)

// RunSummary counts the results of one recorded run.
type RunSummary struct {
	ID        string
	Started   time.Time
	Candidate string
	Cases     int
	Passed    int
	Failed    int
	Skipped   int
	Errored   int
}

// OK reports whether every case of the run passed.
func (s RunSummary) OK() bool {
	return s.Cases > 0 && s.Passed == s.Cases
}

const listRuns = `
SELECT r.id, r.started, r.candidate,
	COUNT(c.run_id),
	COALESCE(SUM(c.status = 'Pass'), 0),
	COALESCE(SUM(c.status = 'Fail'), 0),
	COALESCE(SUM(c.status = 'Skip'), 0),
	COALESCE(SUM(c.status = 'Error'), 0)
FROM runs r LEFT JOIN cases c ON c.run_id = r.id
GROUP BY r.id
ORDER BY r.started, r.id`

// ListRuns reads the summary of every run stored at path, oldest first.
func ListRuns(path string) ([]RunSummary, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("history database: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = db.Close() }()

	rows, err := db.Query(listRuns)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []RunSummary
	for rows.Next() {
		var (
			s       RunSummary
			started string
		)
		err := rows.Scan(&s.ID, &started, &s.Candidate,
			&s.Cases, &s.Passed, &s.Failed, &s.Skipped, &s.Errored)
		if err != nil {
			return nil, fmt.Errorf("failed to read run: %w", err)
		}

		s.Started, err = time.Parse(time.RFC3339, started)
		if err != nil {
			return nil, fmt.Errorf("run %s has a bad start time %q: %w", s.ID, started, err)
		}

		runs = append(runs, s)
	}

	return runs, rows.Err()
}
