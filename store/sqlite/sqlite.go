// Package sqlite contains a SQLite-backed implementation of core.ResultStore
// for deployments that prefer a single database file over a directory tree.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kdcokenny/opencode-background-agents/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS results (
	scope        TEXT NOT NULL,
	id           TEXT NOT NULL,
	title        TEXT NOT NULL,
	summary      TEXT NOT NULL,
	worker_kind  TEXT NOT NULL,
	state        TEXT NOT NULL,
	started_at   TEXT NOT NULL,
	completed_at TEXT,
	transcript   TEXT NOT NULL,
	PRIMARY KEY (scope, id)
);
CREATE INDEX IF NOT EXISTS idx_results_scope ON results(scope);
`

// Store persists result records in a SQLite database. Records are keyed by
// (scope, id); Put replaces any previous row for the same key.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at path and ensures the
// schema exists. Parent directories are created as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// Serialized writes; the engine resolves delegations concurrently.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

// NewFromDB wraps an existing database handle, ensuring the schema exists.
func NewFromDB(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("sqlite: initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Put stores (or replaces) the record under (scope, rec.ID).
func (s *Store) Put(ctx context.Context, scope string, rec core.ResultRecord) error {
	var completed sql.NullString
	if !rec.CompletedAt.IsZero() {
		completed = sql.NullString{String: rec.CompletedAt.UTC().Format(time.RFC3339Nano), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO results (scope, id, title, summary, worker_kind, state, started_at, completed_at, transcript)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		scope, rec.ID, rec.Title, rec.Summary, rec.WorkerKind, string(rec.State),
		rec.StartedAt.UTC().Format(time.RFC3339Nano), completed, rec.Transcript,
	)
	if err != nil {
		return fmt.Errorf("sqlite: put record %s: %w", rec.ID, err)
	}
	return nil
}

// Get returns the record for (scope, id) or core.ErrNotFound.
func (s *Store) Get(ctx context.Context, scope, id string) (core.ResultRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, summary, worker_kind, state, started_at, completed_at, transcript
		 FROM results WHERE scope = ? AND id = ?`, scope, id)
	rec, err := scanRecord(row.Scan)
	if err == sql.ErrNoRows {
		return core.ResultRecord{}, core.ErrNotFound
	}
	if err != nil {
		return core.ResultRecord{}, fmt.Errorf("sqlite: get record %s: %w", id, err)
	}
	return rec, nil
}

// List returns all of the scope's records ordered by id.
func (s *Store) List(ctx context.Context, scope string) ([]core.ResultRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, summary, worker_kind, state, started_at, completed_at, transcript
		 FROM results WHERE scope = ? ORDER BY id`, scope)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list scope %s: %w", scope, err)
	}
	defer rows.Close()

	recs := []core.ResultRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan record: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate scope %s: %w", scope, err)
	}
	return recs, nil
}

// Delete removes the record for (scope, id) or returns core.ErrNotFound.
func (s *Store) Delete(ctx context.Context, scope, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM results WHERE scope = ? AND id = ?", scope, id)
	if err != nil {
		return fmt.Errorf("sqlite: delete record %s: %w", id, err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return core.ErrNotFound
	}
	return nil
}

func scanRecord(scan func(dest ...any) error) (core.ResultRecord, error) {
	var (
		rec       core.ResultRecord
		state     string
		started   string
		completed sql.NullString
	)
	if err := scan(&rec.ID, &rec.Title, &rec.Summary, &rec.WorkerKind, &state, &started, &completed, &rec.Transcript); err != nil {
		return core.ResultRecord{}, err
	}
	rec.State = core.State(state)
	if t, err := time.Parse(time.RFC3339Nano, started); err == nil {
		rec.StartedAt = t
	}
	if completed.Valid {
		if t, err := time.Parse(time.RFC3339Nano, completed.String); err == nil {
			rec.CompletedAt = t
		}
	}
	return rec, nil
}

var _ core.ResultStore = (*Store)(nil)
