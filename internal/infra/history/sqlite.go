// Package history persists apply-cycle outcomes to a SQLite database so the
// status surface can show what recent scene edits did to the console.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/wjensen/x32-scene-monitor/internal/monitor"
)

const (
	// CurrentSchemaVersion is the current database schema version.
	CurrentSchemaVersion = "1"

	// DefaultDBPath is the default path for the history database.
	DefaultDBPath = "data/history.db"
)

// Store is the SQLite-backed cycle history.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// NewStore creates a history store instance. Open must be called before
// use.
func NewStore(path string) *Store {
	if path == "" {
		path = DefaultDBPath
	}
	return &Store{path: path}
}

// Open opens the database and initializes the schema.
func (s *Store) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", s.path+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s.db = db

	if err := s.initSchema(); err != nil {
		s.db.Close()
		s.db = nil
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Info().Str("path", s.path).Msg("History database opened")
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cycles (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		file TEXT NOT NULL,
		changes INTEGER DEFAULT 0,
		sent INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		skipped INTEGER DEFAULT 0,
		removed INTEGER DEFAULT 0,
		warnings INTEGER DEFAULT 0,
		duration_ms INTEGER DEFAULT 0,
		created_at TEXT DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS cycle_failures (
		cycle_id TEXT NOT NULL,
		reason TEXT NOT NULL,
		FOREIGN KEY (cycle_id) REFERENCES cycles(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS history_meta (
		key TEXT PRIMARY KEY,
		value TEXT,
		updated_at TEXT DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_cycles_started ON cycles(started_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO history_meta (key, value, updated_at) VALUES ('schema_version', ?, CURRENT_TIMESTAMP)`,
		CurrentSchemaVersion,
	)
	return err
}

// RecordCycle persists one finished apply cycle. Implements
// monitor.Recorder.
func (s *Store) RecordCycle(rec monitor.CycleRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return fmt.Errorf("history database not open")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO cycles (id, started_at, file, changes, sent, failed, skipped, removed, warnings, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.StartedAt.UTC().Format(time.RFC3339Nano), rec.File,
		rec.Changes, rec.Sent, rec.Failed, rec.Skipped, rec.Removed, rec.Warnings,
		rec.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("inserting cycle: %w", err)
	}

	for _, reason := range rec.Failures {
		if _, err := tx.Exec(
			`INSERT INTO cycle_failures (cycle_id, reason) VALUES (?, ?)`,
			rec.ID, reason,
		); err != nil {
			return fmt.Errorf("inserting cycle failure: %w", err)
		}
	}

	return tx.Commit()
}

// RecentCycles returns up to limit cycles, newest first.
func (s *Store) RecentCycles(limit int) ([]monitor.CycleRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil, fmt.Errorf("history database not open")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT id, started_at, file, changes, sent, failed, skipped, removed, warnings, duration_ms
		 FROM cycles ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []monitor.CycleRecord
	for rows.Next() {
		var rec monitor.CycleRecord
		var started string
		var durationMS int64
		if err := rows.Scan(&rec.ID, &started, &rec.File, &rec.Changes, &rec.Sent,
			&rec.Failed, &rec.Skipped, &rec.Removed, &rec.Warnings, &durationMS); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339Nano, started); err == nil {
			rec.StartedAt = t
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range recs {
		failures, err := s.cycleFailures(recs[i].ID)
		if err != nil {
			return nil, err
		}
		recs[i].Failures = failures
	}
	return recs, nil
}

func (s *Store) cycleFailures(cycleID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT reason FROM cycle_failures WHERE cycle_id = ?`, cycleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reasons []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		reasons = append(reasons, r)
	}
	return reasons, rows.Err()
}
