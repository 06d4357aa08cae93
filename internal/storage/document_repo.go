package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_document_store.go -package=mocks groundchat/internal/storage DocumentStore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DocumentStore defines the interface for document storage operations.
type DocumentStore interface {
	// Create inserts a document, assigning its ID and creation time.
	Create(ctx context.Context, doc *DocumentRecord) error
	// GetByID returns ErrNotFound if the document does not exist.
	GetByID(ctx context.Context, id string) (*DocumentRecord, error)
	// GetByHash returns ErrNotFound if no document has the given content hash.
	GetByHash(ctx context.Context, hash string) (*DocumentRecord, error)
	// List returns every document in ingestion order.
	List(ctx context.Context) ([]DocumentRecord, error)
	// Delete removes a document and its chunks.
	Delete(ctx context.Context, id string) error
}

// DocumentRepo implements DocumentStore on SQLite.
type DocumentRepo struct {
	db *sql.DB
}

// NewDocumentRepo creates a new DocumentRepo.
func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

// Create inserts a document. doc.ID and doc.CreatedAt are set on success.
func (r *DocumentRepo) Create(ctx context.Context, doc *DocumentRecord) error {
	id := uuid.New().String()
	createdAt := time.Now().UTC()

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO documents (id, filename, hash, chunk_count, created_at) VALUES (?, ?, ?, ?, ?)",
		id, doc.Filename, doc.Hash, doc.ChunkCount, createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	doc.ID = id
	doc.CreatedAt = createdAt
	return nil
}

// GetByID gets a document by its ID.
func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*DocumentRecord, error) {
	return r.getOne(ctx, "SELECT id, filename, hash, chunk_count, created_at FROM documents WHERE id = ?", id)
}

// GetByHash gets a document by its content hash.
func (r *DocumentRepo) GetByHash(ctx context.Context, hash string) (*DocumentRecord, error) {
	return r.getOne(ctx, "SELECT id, filename, hash, chunk_count, created_at FROM documents WHERE hash = ?", hash)
}

func (r *DocumentRepo) getOne(ctx context.Context, query string, arg any) (*DocumentRecord, error) {
	var doc DocumentRecord
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&doc.ID, &doc.Filename, &doc.Hash, &doc.ChunkCount, &doc.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", err)
	}
	return &doc, nil
}

// List returns every document ordered by ingestion time.
// Returns an empty slice if there are no documents.
func (r *DocumentRepo) List(ctx context.Context) ([]DocumentRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, filename, hash, chunk_count, created_at FROM documents ORDER BY created_at, rowid",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	docs := []DocumentRecord{}
	for rows.Next() {
		var doc DocumentRecord
		if err := rows.Scan(&doc.ID, &doc.Filename, &doc.Hash, &doc.ChunkCount, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return docs, nil
}

// Delete removes a document. Its chunks are removed by the cascade.
func (r *DocumentRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
