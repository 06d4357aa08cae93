package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_turn_store.go -package=mocks groundchat/internal/storage TurnStore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"groundchat/internal/citation"
)

// TurnStore defines the interface for persisted answers.
type TurnStore interface {
	// Save inserts a turn and its sources atomically, assigning ID and CreatedAt.
	Save(ctx context.Context, turn *TurnRecord) error
	// GetByID returns ErrNotFound if the turn does not exist.
	GetByID(ctx context.Context, id string) (*TurnRecord, error)
}

// TurnRepo implements TurnStore on SQLite.
type TurnRepo struct {
	db *sql.DB
}

// NewTurnRepo creates a new TurnRepo.
func NewTurnRepo(db *sql.DB) *TurnRepo {
	return &TurnRepo{db: db}
}

// Save inserts the turn row and one turn_sources row per cited item.
func (r *TurnRepo) Save(ctx context.Context, turn *TurnRecord) error {
	diag, err := json.Marshal(turn.Diagnostics)
	if err != nil {
		return fmt.Errorf("failed to encode diagnostics: %w", err)
	}

	id := uuid.New().String()
	createdAt := time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO turns (id, question, answer, list_mode, diagnostics, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		id, turn.Question, turn.Answer, turn.ListMode, string(diag), createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO turn_sources
		(turn_id, pool, position, original_index, display_index, locator, title, excerpt, score, chunk_index, url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare source insert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	// kb and web lists are stored under their own group so meta items in list mode
	// come back on the kb side.
	for group, items := range map[string][]citation.EvidenceItem{"kb": turn.KBSources, "web": turn.WebSources} {
		for pos, it := range items {
			var score sql.NullFloat64
			if it.Score != nil {
				score = sql.NullFloat64{Float64: *it.Score, Valid: true}
			}
			_, err := stmt.ExecContext(ctx,
				id, group+":"+string(it.Pool), pos, it.OriginalIndex, it.DisplayIndex,
				it.Locator, it.Title, it.Excerpt, score, it.ChunkIndex, it.URL,
			)
			if err != nil {
				return fmt.Errorf("failed to insert turn source: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit turn: %w", err)
	}

	turn.ID = id
	turn.CreatedAt = createdAt
	return nil
}

// GetByID loads a turn with its sources in display order.
func (r *TurnRepo) GetByID(ctx context.Context, id string) (*TurnRecord, error) {
	var turn TurnRecord
	var diag sql.NullString
	err := r.db.QueryRowContext(ctx,
		"SELECT id, question, answer, list_mode, diagnostics, created_at FROM turns WHERE id = ?",
		id,
	).Scan(&turn.ID, &turn.Question, &turn.Answer, &turn.ListMode, &diag, &turn.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query turn: %w", err)
	}
	if diag.Valid && diag.String != "" {
		if err := json.Unmarshal([]byte(diag.String), &turn.Diagnostics); err != nil {
			return nil, fmt.Errorf("failed to decode diagnostics: %w", err)
		}
	}

	rows, err := r.db.QueryContext(ctx, `SELECT pool, original_index, display_index, locator, title, excerpt, score, chunk_index, url
		FROM turn_sources WHERE turn_id = ? ORDER BY pool, position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query turn sources: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	turn.KBSources = []citation.EvidenceItem{}
	turn.WebSources = []citation.EvidenceItem{}
	for rows.Next() {
		var (
			group                           string
			it                              citation.EvidenceItem
			locator, title, excerpt, rawURL sql.NullString
			score                           sql.NullFloat64
			chunkIndex                      sql.NullInt64
		)
		if err := rows.Scan(&group, &it.OriginalIndex, &it.DisplayIndex, &locator, &title, &excerpt, &score, &chunkIndex, &rawURL); err != nil {
			return nil, fmt.Errorf("failed to scan turn source: %w", err)
		}
		it.Locator = locator.String
		it.Title = title.String
		it.Excerpt = excerpt.String
		it.URL = rawURL.String
		it.ChunkIndex = int(chunkIndex.Int64)
		if score.Valid {
			s := score.Float64
			it.Score = &s
		}

		side, pool, ok := strings.Cut(group, ":")
		if !ok {
			return nil, fmt.Errorf("invalid source group %q", group)
		}
		it.Pool = citation.Pool(pool)
		if side == "web" {
			turn.WebSources = append(turn.WebSources, it)
		} else {
			turn.KBSources = append(turn.KBSources, it)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return &turn, nil
}
