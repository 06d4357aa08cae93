package indexer

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"groundchat/internal/contextutil"
	"groundchat/internal/llm"
	"groundchat/internal/storage"
	"groundchat/internal/vectorstore"
)

// embedBatchSize bounds the number of texts sent in one embeddings request.
const embedBatchSize = 32

// ErrEmptyDocument is returned when a document yields no chunks.
var ErrEmptyDocument = errors.New("document has no indexable content")

// Pipeline ingests documents into SQLite and Qdrant.
type Pipeline struct {
	documents   storage.DocumentStore
	chunks      storage.ChunkStore
	embedder    llm.Embedder
	vectorStore vectorstore.VectorStore
	collection  string
	chunker     *GoldmarkChunker
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	documents storage.DocumentStore,
	chunks storage.ChunkStore,
	embedder llm.Embedder,
	vectorStore vectorstore.VectorStore,
	collection string,
) *Pipeline {
	return &Pipeline{
		documents:   documents,
		chunks:      chunks,
		embedder:    embedder,
		vectorStore: vectorStore,
		collection:  collection,
		chunker:     NewGoldmarkChunker(),
	}
}

// Ingest chunks, embeds and stores one document. A document whose content hash is
// already stored is returned as is with created set to false.
func (p *Pipeline) Ingest(ctx context.Context, filename string, content []byte) (doc *storage.DocumentRecord, created bool, err error) {
	logger := contextutil.LoggerFromContext(ctx)

	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." || filename == "/" {
		return nil, false, fmt.Errorf("filename is required")
	}

	hash := fmt.Sprintf("%x", sha256.Sum256(content))

	existing, err := p.documents.GetByHash(ctx, hash)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to check existing document: %w", err)
	}
	if existing != nil {
		logger.DebugContext(ctx, "skipping known document", "filename", filename, "document_id", existing.ID)
		return existing, false, nil
	}

	title, chunks := p.chunker.ChunkMarkdown(content, filename)
	if len(chunks) == 0 {
		return nil, false, ErrEmptyDocument
	}

	embeddings, err := p.embed(ctx, chunks)
	if err != nil {
		return nil, false, err
	}

	doc = &storage.DocumentRecord{
		Filename:   filename,
		Hash:       hash,
		ChunkCount: len(chunks),
	}
	if err := p.documents.Create(ctx, doc); err != nil {
		return nil, false, fmt.Errorf("failed to create document: %w", err)
	}

	if err := p.store(ctx, doc, chunks, embeddings); err != nil {
		// chunks go with the document through the cascade
		if delErr := p.documents.Delete(ctx, doc.ID); delErr != nil {
			logger.ErrorContext(ctx, "failed to roll back document", "document_id", doc.ID, "error", delErr)
		}
		return nil, false, err
	}

	logger.InfoContext(ctx, "ingested document", "filename", filename, "document_id", doc.ID, "chunks", len(chunks), "title", title)
	return doc, true, nil
}

func (p *Pipeline) embed(ctx context.Context, chunks []Chunk) ([][]float32, error) {
	embeddings := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(chunks))
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}

		batch, err := p.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to generate embeddings: %w", err)
		}
		if len(batch) != len(texts) {
			return nil, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(texts), len(batch))
		}
		embeddings = append(embeddings, batch...)
	}
	return embeddings, nil
}

func (p *Pipeline) store(ctx context.Context, doc *storage.DocumentRecord, chunks []Chunk, embeddings [][]float32) error {
	points := make([]vectorstore.Point, len(chunks))
	for i, chunk := range chunks {
		chunkID := uuid.New().String()

		record := &storage.ChunkRecord{
			ID:          chunkID,
			DocumentID:  doc.ID,
			ChunkIndex:  chunk.Index,
			HeadingPath: chunk.HeadingPath,
			Text:        chunk.Text,
		}
		if err := p.chunks.Insert(ctx, record); err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}

		payload := vectorstore.ChunkPayload{
			DocumentID:  doc.ID,
			Filename:    doc.Filename,
			ChunkIndex:  chunk.Index,
			HeadingPath: chunk.HeadingPath,
			Content:     chunk.Text,
		}
		points[i] = vectorstore.Point{ID: chunkID, Vec: embeddings[i], Meta: payload.Meta()}
	}

	if err := p.vectorStore.Upsert(ctx, p.collection, points); err != nil {
		return fmt.Errorf("failed to upsert vectors: %w", err)
	}
	return nil
}

// Remove deletes a document with its chunks and vectors.
func (p *Pipeline) Remove(ctx context.Context, documentID string) error {
	ids, err := p.chunks.ListIDsByDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("failed to list chunk IDs: %w", err)
	}
	if len(ids) > 0 {
		if err := p.vectorStore.Delete(ctx, p.collection, ids); err != nil {
			return fmt.Errorf("failed to delete vectors: %w", err)
		}
	}
	if err := p.documents.Delete(ctx, documentID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}
