package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/wearevision/wav-btl-ingest/internal/wav"
)

// Run is one journaled pipeline run for a slug.
type Run struct {
	ID        string
	Slug      string
	State     string
	ErrorKind string
	ErrorMsg  string
	StartedAt time.Time
	UpdatedAt time.Time
}

// Journal records pipeline run state and caches classification results in a
// local SQLite database.
type Journal struct {
	db *sql.DB
	mu sync.RWMutex
}

// OpenJournal opens (or creates) the journal database at dbPath.
func OpenJournal(dbPath string) (*Journal, error) {
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	j := &Journal{db: db}
	if err := j.init(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) init() error {
	runsQuery := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		slug TEXT NOT NULL,
		state TEXT NOT NULL,
		error_kind TEXT,
		error_msg TEXT,
		started_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`
	if _, err := j.db.Exec(runsQuery); err != nil {
		return fmt.Errorf("failed to create runs table: %w", err)
	}

	cacheQuery := `
	CREATE TABLE IF NOT EXISTS classification_cache (
		image_hash TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := j.db.Exec(cacheQuery); err != nil {
		return fmt.Errorf("failed to create classification_cache table: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// StartRun creates a journal entry for a new pipeline run and returns its ID.
func (j *Journal) StartRun(slug, state string) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := time.Now()
	id := uuid.New().String()

	_, err := j.db.Exec(
		`INSERT INTO runs (id, slug, state, started_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, slug, state, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create run: %w", err)
	}
	return id, nil
}

// RecordState updates the state of a run, optionally with the error that
// terminated it.
func (j *Journal) RecordState(runID, state, errorKind, errorMsg string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(
		`UPDATE runs SET state = ?, error_kind = ?, error_msg = ?, updated_at = ? WHERE id = ?`,
		state, nullable(errorKind), nullable(errorMsg), time.Now(), runID,
	)
	if err != nil {
		return fmt.Errorf("failed to record run state: %w", err)
	}
	return nil
}

// SetSlug replaces a run's provisional slug once the generated record minted
// the final one.
func (j *Journal) SetSlug(runID, slug string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(
		`UPDATE runs SET slug = ?, updated_at = ? WHERE id = ?`,
		slug, time.Now(), runID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run slug: %w", err)
	}
	return nil
}

// LatestRun returns the most recent run for a slug.
// Returns nil, nil if none exists.
func (j *Journal) LatestRun(slug string) (*Run, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var run Run
	var errorKind, errorMsg sql.NullString
	err := j.db.QueryRow(
		`SELECT id, slug, state, error_kind, error_msg, started_at, updated_at
		 FROM runs WHERE slug = ? ORDER BY started_at DESC LIMIT 1`,
		slug,
	).Scan(&run.ID, &run.Slug, &run.State, &errorKind, &errorMsg, &run.StartedAt, &run.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	run.ErrorKind = errorKind.String
	run.ErrorMsg = errorMsg.String
	return &run, nil
}

// GetClassification retrieves a cached classification by image-set hash.
// Returns nil, nil if no cache entry exists.
func (j *Journal) GetClassification(hash string) (*wav.Classification, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var data string
	err := j.db.QueryRow(
		`SELECT data FROM classification_cache WHERE image_hash = ?`,
		hash,
	).Scan(&data)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query classification cache: %w", err)
	}

	var cls wav.Classification
	if err := json.Unmarshal([]byte(data), &cls); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached classification: %w", err)
	}
	return &cls, nil
}

// SetClassification stores a classification result keyed by image-set hash.
func (j *Journal) SetClassification(hash string, cls *wav.Classification) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := json.Marshal(cls)
	if err != nil {
		return fmt.Errorf("failed to marshal classification: %w", err)
	}

	_, err = j.db.Exec(`
		INSERT INTO classification_cache (image_hash, data)
		VALUES (?, ?)
		ON CONFLICT(image_hash) DO UPDATE SET
			data = excluded.data,
			created_at = CURRENT_TIMESTAMP
	`, hash, string(data))
	if err != nil {
		return fmt.Errorf("failed to cache classification: %w", err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
