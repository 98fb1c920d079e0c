// Package audit persists the governance self-assessment trail: one row per
// law application, queryable for recent activity and per-domain success
// rates. It is a feedback/audit surface only, never control flow.
package audit

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite assessment database.
type Store struct {
	db *sql.DB
}

// Assessment is one recorded law application.
type Assessment struct {
	Timestamp float64 `json:"timestamp"`
	Domain    string  `json:"domain"`
	Success   bool    `json:"success"`
}

// DomainRate aggregates applications and successes for one domain.
type DomainRate struct {
	Domain       string  `json:"domain"`
	Applications int     `json:"applications"`
	SuccessRate  float64 `json:"success_rate"`
}

// Open opens (or creates) the assessment database at the given path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit db: %w", err)
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenMemory opens an in-memory assessment store for testing.
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory audit db: %w", err)
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("failed to set pragma %q: %w", p, err)
		}
	}

	const schema = `
CREATE TABLE IF NOT EXISTS assessments (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	ts      REAL NOT NULL,
	domain  TEXT NOT NULL,
	success INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_assessments_domain ON assessments(domain);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create audit schema: %w", err)
	}
	return nil
}

// Record appends one assessment.
func (s *Store) Record(domain string, success bool) error {
	ts := float64(time.Now().UnixNano()) / float64(time.Second)
	if _, err := s.db.Exec(
		"INSERT INTO assessments (ts, domain, success) VALUES (?, ?, ?)",
		ts, domain, success,
	); err != nil {
		return fmt.Errorf("failed to record assessment: %w", err)
	}
	return nil
}

// Recent returns the newest n assessments, newest first.
func (s *Store) Recent(n int) ([]Assessment, error) {
	rows, err := s.db.Query(
		"SELECT ts, domain, success FROM assessments ORDER BY id DESC LIMIT ?", n)
	if err != nil {
		return nil, fmt.Errorf("failed to query assessments: %w", err)
	}
	defer rows.Close()

	var out []Assessment
	for rows.Next() {
		var a Assessment
		if err := rows.Scan(&a.Timestamp, &a.Domain, &a.Success); err != nil {
			return nil, fmt.Errorf("failed to scan assessment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DomainRates returns per-domain application counts and success rates.
func (s *Store) DomainRates() ([]DomainRate, error) {
	rows, err := s.db.Query(`
SELECT domain, COUNT(*), AVG(success)
FROM assessments GROUP BY domain ORDER BY COUNT(*) DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query domain rates: %w", err)
	}
	defer rows.Close()

	var out []DomainRate
	for rows.Next() {
		var r DomainRate
		if err := rows.Scan(&r.Domain, &r.Applications, &r.SuccessRate); err != nil {
			return nil, fmt.Errorf("failed to scan domain rate: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}
