package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_ingester.go -package=mocks groundchat/internal/service Ingester
//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_document_service.go -package=mocks -mock_names=DocumentService=MockDocumentService groundchat/internal/service DocumentService

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"groundchat/internal/contextutil"
	"groundchat/internal/indexer"
	"groundchat/internal/storage"
)

// MaxDocumentBytes bounds the size of one uploaded document.
const MaxDocumentBytes = 10 << 20

// Ingester stores documents in the knowledge base.
// This interface is defined from the service layer's perspective (consumer-first).
type Ingester interface {
	Ingest(ctx context.Context, filename string, content []byte) (*storage.DocumentRecord, bool, error)
	Remove(ctx context.Context, documentID string) error
}

// Document is a knowledge-base document.
type Document struct {
	ID         string
	Filename   string
	Hash       string
	ChunkCount int
	CreatedAt  time.Time
}

// DocumentService manages the knowledge-base documents.
type DocumentService interface {
	// Ingest adds a document. created is false when identical content already exists.
	Ingest(ctx context.Context, filename string, content []byte) (doc Document, created bool, err error)
	// List returns every document in ingestion order, the order list mode numbers them in.
	List(ctx context.Context) ([]Document, error)
	// Get returns one document.
	Get(ctx context.Context, id string) (Document, error)
	// Delete removes a document with its chunks and vectors.
	Delete(ctx context.Context, id string) error
}

// documentService implements DocumentService.
type documentService struct {
	ingester  Ingester
	documents storage.DocumentStore
}

// NewDocumentService creates a new DocumentService.
func NewDocumentService(ingester Ingester, documents storage.DocumentStore) DocumentService {
	return &documentService{
		ingester:  ingester,
		documents: documents,
	}
}

func (s *documentService) Ingest(ctx context.Context, filename string, content []byte) (Document, bool, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if strings.TrimSpace(filename) == "" {
		return Document{}, false, invalidField("filename", "cannot be empty")
	}
	if len(content) == 0 {
		return Document{}, false, invalidField("content", "cannot be empty")
	}
	if len(content) > MaxDocumentBytes {
		return Document{}, false, invalidField("content", "exceeds %d bytes", MaxDocumentBytes)
	}

	rec, created, err := s.ingester.Ingest(ctx, filename, content)
	if errors.Is(err, indexer.ErrEmptyDocument) {
		return Document{}, false, invalidField("content", "has no indexable text")
	}
	if err != nil {
		logger.ErrorContext(ctx, "failed to ingest document", "filename", filename, "error", err)
		return Document{}, false, WrapError(err, "failed to ingest document")
	}
	return documentFromRecord(rec), created, nil
}

func (s *documentService) List(ctx context.Context) ([]Document, error) {
	recs, err := s.documents.List(ctx)
	if err != nil {
		return nil, WrapError(err, "failed to list documents")
	}
	docs := make([]Document, len(recs))
	for i := range recs {
		docs[i] = documentFromRecord(&recs[i])
	}
	return docs, nil
}

func (s *documentService) Get(ctx context.Context, id string) (Document, error) {
	rec, err := s.documents.GetByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return Document{}, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Document{}, WrapError(err, "failed to get document")
	}
	return documentFromRecord(rec), nil
}

func (s *documentService) Delete(ctx context.Context, id string) error {
	err := s.ingester.Remove(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return WrapError(err, "failed to delete document")
	}
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "document deleted", "document_id", id)
	return nil
}

func documentFromRecord(rec *storage.DocumentRecord) Document {
	return Document{
		ID:         rec.ID,
		Filename:   rec.Filename,
		Hash:       rec.Hash,
		ChunkCount: rec.ChunkCount,
		CreatedAt:  rec.CreatedAt,
	}
}
