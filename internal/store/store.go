package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"entityscout/internal/logging"
	"entityscout/internal/pipeline"
)

// ResearchStore persists research runs, verified sources, and extracted
// entities to SQLite.
type ResearchStore struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
}

// NewResearchStore initializes the SQLite database at the given path.
func NewResearchStore(path string) (*ResearchStore, error) {
	logging.Store("Initializing ResearchStore at path: %s", path)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
	}

	s := &ResearchStore{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	logging.StoreDebug("Database schema initialized")
	return s, nil
}

// initialize creates the required tables.
func (s *ResearchStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		query TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS sources (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		url TEXT NOT NULL,
		credibility_score REAL NOT NULL,
		relevance_score REAL NOT NULL,
		word_count INTEGER NOT NULL DEFAULT 0,
		trusted INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(run_id, url)
	);
	CREATE INDEX IF NOT EXISTS idx_sources_run ON sources(run_id);

	CREATE TABLE IF NOT EXISTS entities (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		priority_score REAL NOT NULL DEFAULT 0.5,
		metrics TEXT,
		source_urls TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(run_id, name)
	);
	CREATE INDEX IF NOT EXISTS idx_entities_run ON entities(run_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// BeginRun records the query that started a run. Subsequent saves
// reference the run by ID.
func (s *ResearchStore) BeginRun(ctx context.Context, runID, query string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, query) VALUES (?, ?)
		 ON CONFLICT(run_id) DO NOTHING`,
		runID, query)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// SaveSources upserts verified sources for a run and returns their row IDs.
// Re-saving the same URL within a run updates its scores instead of
// inserting a duplicate.
func (s *ResearchStore) SaveSources(ctx context.Context, runID string, sources []pipeline.ScoredSource) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sources (run_id, url, credibility_score, relevance_score, word_count, trusted)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, url) DO UPDATE SET
			credibility_score = excluded.credibility_score,
			relevance_score = excluded.relevance_score,
			word_count = excluded.word_count,
			trusted = excluded.trusted
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	ids := make([]int64, 0, len(sources))
	for _, src := range sources {
		trusted := 0
		if src.Trusted {
			trusted = 1
		}
		wordCount := len(strings.Fields(src.Text))
		if _, err := stmt.ExecContext(ctx, runID, src.URL, src.Credibility, src.Relevance, wordCount, trusted); err != nil {
			return nil, fmt.Errorf("failed to save source %s: %w", src.URL, err)
		}
		var id int64
		if err := tx.QueryRowContext(ctx,
			`SELECT id FROM sources WHERE run_id = ? AND url = ?`,
			runID, src.URL).Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to resolve source ID for %s: %w", src.URL, err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit sources: %w", err)
	}
	logging.Store("Saved %d sources for run %s", len(ids), runID)
	return ids, nil
}

// SaveEntities upserts the aggregated entities for a run. Metrics and
// source URLs are stored as JSON columns.
func (s *ResearchStore) SaveEntities(ctx context.Context, runID string, entities []pipeline.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entities (run_id, name, description, priority_score, metrics, source_urls)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, name) DO UPDATE SET
			description = excluded.description,
			priority_score = excluded.priority_score,
			metrics = excluded.metrics,
			source_urls = excluded.source_urls
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, ent := range entities {
		metricsJSON, err := json.Marshal(ent.Metrics)
		if err != nil {
			return fmt.Errorf("failed to marshal metrics for %s: %w", ent.Name, err)
		}
		urlsJSON, err := json.Marshal(ent.SourceURLs)
		if err != nil {
			return fmt.Errorf("failed to marshal source URLs for %s: %w", ent.Name, err)
		}
		if _, err := stmt.ExecContext(ctx, runID, ent.Name, ent.Description, ent.PriorityScore, string(metricsJSON), string(urlsJSON)); err != nil {
			return fmt.Errorf("failed to save entity %s: %w", ent.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit entities: %w", err)
	}
	logging.Store("Saved %d entities for run %s", len(entities), runID)
	return nil
}

// LoadEntities returns the persisted entities for a run, highest
// priority first.
func (s *ResearchStore) LoadEntities(ctx context.Context, runID string) ([]pipeline.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, description, priority_score, metrics, source_urls
		FROM entities WHERE run_id = ?
		ORDER BY priority_score DESC, name ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	var entities []pipeline.Entity
	for rows.Next() {
		var ent pipeline.Entity
		var metricsJSON, urlsJSON sql.NullString
		if err := rows.Scan(&ent.Name, &ent.Description, &ent.PriorityScore, &metricsJSON, &urlsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		if metricsJSON.Valid && metricsJSON.String != "" {
			if err := json.Unmarshal([]byte(metricsJSON.String), &ent.Metrics); err != nil {
				logging.StoreDebug("Skipping malformed metrics for %s: %v", ent.Name, err)
			}
		}
		if urlsJSON.Valid && urlsJSON.String != "" {
			if err := json.Unmarshal([]byte(urlsJSON.String), &ent.SourceURLs); err != nil {
				logging.StoreDebug("Skipping malformed source URLs for %s: %v", ent.Name, err)
			}
		}
		entities = append(entities, ent)
	}
	return entities, rows.Err()
}

// RunSummary describes one persisted research run.
type RunSummary struct {
	RunID       string
	Query       string
	CreatedAt   time.Time
	SourceCount int
	EntityCount int
}

// ListRuns returns recent runs, newest first.
func (s *ResearchStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.run_id, r.query, r.created_at,
			(SELECT COUNT(*) FROM sources s WHERE s.run_id = r.run_id),
			(SELECT COUNT(*) FROM entities e WHERE e.run_id = r.run_id)
		FROM runs r
		ORDER BY r.created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var run RunSummary
		if err := rows.Scan(&run.RunID, &run.Query, &run.CreatedAt, &run.SourceCount, &run.EntityCount); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Close releases the database handle.
func (s *ResearchStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
