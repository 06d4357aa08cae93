package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a record is not found.
var ErrNotFound = errors.New("record not found")

// New opens the SQLite database at path. Foreign keys and the busy timeout are set
// in the DSN so every pooled connection gets them.
func New(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return db, nil
}

func dsn(path string) string {
	q := url.Values{}
	q.Set("_foreign_keys", "on")
	q.Set("_busy_timeout", "5000")
	q.Set("_journal_mode", "WAL")
	return "file:" + path + "?" + q.Encode()
}

// Migrate creates the documents, chunks, turns, turn_sources and processed_cache tables.
// It is idempotent.
func Migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			hash TEXT NOT NULL UNIQUE,
			chunk_count INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			heading_path TEXT,
			text TEXT NOT NULL,
			FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE,
			UNIQUE (document_id, chunk_index)
		);`,
		`CREATE TABLE IF NOT EXISTS turns (
			id TEXT PRIMARY KEY,
			question TEXT NOT NULL,
			answer TEXT NOT NULL,
			list_mode INTEGER NOT NULL DEFAULT 0,
			diagnostics TEXT,
			created_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS turn_sources (
			turn_id TEXT NOT NULL,
			pool TEXT NOT NULL,
			position INTEGER NOT NULL,
			original_index INTEGER NOT NULL,
			display_index INTEGER NOT NULL,
			locator TEXT,
			title TEXT,
			excerpt TEXT,
			score REAL,
			chunk_index INTEGER,
			url TEXT,
			PRIMARY KEY (turn_id, pool, position),
			FOREIGN KEY (turn_id) REFERENCES turns(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS processed_cache (
			key TEXT PRIMARY KEY,
			result TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);`,
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	for _, stmt := range schema {
		if _, err := tx.Exec(stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return tx.Commit()
}
