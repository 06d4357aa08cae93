package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_cache_store.go -package=mocks groundchat/internal/storage CacheStore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"groundchat/internal/citation"
)

// CacheStore persists processed answers keyed by citation.CacheKey.
type CacheStore interface {
	// Get returns ErrNotFound on a miss.
	Get(ctx context.Context, key string) (*citation.Result, error)
	// Put stores or replaces the result for key.
	Put(ctx context.Context, key string, res citation.Result) error
}

// CacheRepo implements CacheStore on SQLite.
type CacheRepo struct {
	db *sql.DB
}

// NewCacheRepo creates a new CacheRepo.
func NewCacheRepo(db *sql.DB) *CacheRepo {
	return &CacheRepo{db: db}
}

// cachedResult carries the diagnostics, which citation.Result leaves out of its JSON form.
type cachedResult struct {
	Text        string                  `json:"text"`
	KBSources   []citation.EvidenceItem `json:"kb_sources"`
	WebSources  []citation.EvidenceItem `json:"web_sources"`
	Diagnostics citation.Diagnostics    `json:"diagnostics"`
}

// Get loads a cached result.
func (r *CacheRepo) Get(ctx context.Context, key string) (*citation.Result, error) {
	var raw string
	err := r.db.QueryRowContext(ctx, "SELECT result FROM processed_cache WHERE key = ?", key).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}

	var c cachedResult
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("failed to decode cached result: %w", err)
	}
	return &citation.Result{
		Text:        c.Text,
		KBSources:   c.KBSources,
		WebSources:  c.WebSources,
		Diagnostics: c.Diagnostics,
	}, nil
}

// Put stores res under key, replacing any previous entry.
func (r *CacheRepo) Put(ctx context.Context, key string, res citation.Result) error {
	raw, err := json.Marshal(cachedResult{
		Text:        res.Text,
		KBSources:   res.KBSources,
		WebSources:  res.WebSources,
		Diagnostics: res.Diagnostics,
	})
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO processed_cache (key, result, created_at) VALUES (?, ?, ?)",
		key, string(raw), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to store cached result: %w", err)
	}
	return nil
}
