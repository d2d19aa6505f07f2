// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists completed research runs in a SQLite database and
// offers full-text search over accumulated learnings.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Finance-LLMs/deep-research/pkg/types"
)

const defaultDBPath = "research/runs.db"

// Run is one persisted research run.
type Run struct {
	ID          int64
	Query       string
	Breadth     int
	Depth       int
	Mode        string
	Report      string
	Answer      string
	CreatedAt   time.Time
	Learnings   []string
	VisitedURLs []string
	Provenance  []types.ProvenanceRecord
}

// Store manages the research run SQLite database.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the run database at cfg.Path, creating parent
// directories and the schema as needed.
func NewStore(cfg types.StoreConfig) (*Store, error) {
	path := cfg.Path
	if path == "" {
		path = defaultDBPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			query TEXT NOT NULL,
			breadth INTEGER NOT NULL,
			depth INTEGER NOT NULL,
			mode TEXT NOT NULL,
			report TEXT,
			answer TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS learnings (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			content TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_learnings_run_id ON learnings(run_id)`,
		`CREATE TABLE IF NOT EXISTS visited_urls (
			run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			url TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_visited_urls_run_id ON visited_urls(run_id)`,
		`CREATE TABLE IF NOT EXISTS provenance (
			run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			learning TEXT NOT NULL,
			source_url TEXT NOT NULL,
			snippet TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_provenance_run_id ON provenance(run_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='learnings_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE learnings_fts USING fts5(content, content=learnings, content_rowid=rowid)`,
			`CREATE TRIGGER learnings_ai AFTER INSERT ON learnings BEGIN
				INSERT INTO learnings_fts(rowid, content) VALUES (new.rowid, new.content);
			END`,
			`CREATE TRIGGER learnings_ad AFTER DELETE ON learnings BEGIN
				INSERT INTO learnings_fts(learnings_fts, rowid, content) VALUES('delete', old.rowid, old.content);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS table: %w", err)
			}
		}
	}
	return nil
}

// SaveRun persists a completed run and returns its assigned ID.
func (s *Store) SaveRun(run Run) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := tx.Exec(
		`INSERT INTO runs (query, breadth, depth, mode, report, answer, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.Query, run.Breadth, run.Depth, run.Mode, run.Report, run.Answer,
		createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading run id: %w", err)
	}

	for i, l := range run.Learnings {
		if _, err := tx.Exec(
			`INSERT INTO learnings (run_id, position, content) VALUES (?, ?, ?)`,
			id, i, l,
		); err != nil {
			return 0, fmt.Errorf("inserting learning: %w", err)
		}
	}
	for i, u := range run.VisitedURLs {
		if _, err := tx.Exec(
			`INSERT INTO visited_urls (run_id, position, url) VALUES (?, ?, ?)`,
			id, i, u,
		); err != nil {
			return 0, fmt.Errorf("inserting visited url: %w", err)
		}
	}
	for i, p := range run.Provenance {
		if _, err := tx.Exec(
			`INSERT INTO provenance (run_id, position, learning, source_url, snippet)
			 VALUES (?, ?, ?, ?, ?)`,
			id, i, p.Learning, p.SourceURL, p.Snippet,
		); err != nil {
			return 0, fmt.Errorf("inserting provenance record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing run: %w", err)
	}
	return id, nil
}

// RunSummary is the header of a persisted run, without child rows.
type RunSummary struct {
	ID        int64
	Query     string
	Breadth   int
	Depth     int
	Mode      string
	CreatedAt time.Time
	Learnings int
}

// ListRuns returns all runs, newest first.
func (s *Store) ListRuns() ([]RunSummary, error) {
	rows, err := s.db.Query(
		`SELECT r.id, r.query, r.breadth, r.depth, r.mode, r.created_at,
			(SELECT count(*) FROM learnings l WHERE l.run_id = r.id)
		 FROM runs r ORDER BY r.id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var summaries []RunSummary
	for rows.Next() {
		var rs RunSummary
		var created string
		if err := rows.Scan(&rs.ID, &rs.Query, &rs.Breadth, &rs.Depth, &rs.Mode, &created, &rs.Learnings); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if t, parseErr := time.Parse(time.RFC3339, created); parseErr == nil {
			rs.CreatedAt = t
		}
		summaries = append(summaries, rs)
	}
	return summaries, rows.Err()
}

// GetRun loads one run with its learnings, visited URLs, and provenance.
func (s *Store) GetRun(id int64) (Run, error) {
	var run Run
	var created string
	err := s.db.QueryRow(
		`SELECT id, query, breadth, depth, mode, report, answer, created_at
		 FROM runs WHERE id = ?`, id,
	).Scan(&run.ID, &run.Query, &run.Breadth, &run.Depth, &run.Mode, &run.Report, &run.Answer, &created)
	if err == sql.ErrNoRows {
		return Run{}, fmt.Errorf("run %d not found", id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("loading run %d: %w", id, err)
	}
	if t, parseErr := time.Parse(time.RFC3339, created); parseErr == nil {
		run.CreatedAt = t
	}

	run.Learnings, err = s.stringColumn(
		`SELECT content FROM learnings WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return Run{}, err
	}
	run.VisitedURLs, err = s.stringColumn(
		`SELECT url FROM visited_urls WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return Run{}, err
	}

	rows, err := s.db.Query(
		`SELECT learning, source_url, snippet FROM provenance WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return Run{}, fmt.Errorf("loading provenance: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p types.ProvenanceRecord
		if err := rows.Scan(&p.Learning, &p.SourceURL, &p.Snippet); err != nil {
			return Run{}, fmt.Errorf("scanning provenance record: %w", err)
		}
		run.Provenance = append(run.Provenance, p)
	}
	return run, rows.Err()
}

// LearningHit is one full-text match across stored learnings.
type LearningHit struct {
	RunID    int64
	RunQuery string
	Learning string
}

// SearchLearnings runs an FTS query over all stored learnings and returns
// matches ranked by relevance.
func (s *Store) SearchLearnings(query string, limit int) ([]LearningHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("search query is empty")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT l.run_id, r.query, l.content
		 FROM learnings_fts f
		 JOIN learnings l ON l.rowid = f.rowid
		 JOIN runs r ON r.id = l.run_id
		 WHERE learnings_fts MATCH ?
		 ORDER BY rank LIMIT ?`,
		ftsQuoteQuery(query), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching learnings: %w", err)
	}
	defer rows.Close()

	var hits []LearningHit
	for rows.Next() {
		var h LearningHit
		if err := rows.Scan(&h.RunID, &h.RunQuery, &h.Learning); err != nil {
			return nil, fmt.Errorf("scanning search hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (s *Store) stringColumn(query string, id int64) ([]string, error) {
	rows, err := s.db.Query(query, id)
	if err != nil {
		return nil, fmt.Errorf("loading run rows: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ftsQuoteQuery quotes each whitespace-separated term so FTS5 operators in
// user input cannot break the query syntax.
func ftsQuoteQuery(query string) string {
	terms := strings.Fields(query)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(terms, " ")
}
