// Package rag retrieves the knowledge-base evidence pool and builds the grounded prompt.
package rag

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_retriever.go -package=mocks groundchat/internal/rag Retriever

import (
	"context"
	"fmt"

	"groundchat/internal/citation"
	"groundchat/internal/contextutil"
	"groundchat/internal/llm"
	"groundchat/internal/storage"
	"groundchat/internal/vectorstore"
)

const (
	// DefaultK is the kb pool size when the caller does not choose one.
	DefaultK = 5
	// MaxK bounds the kb pool size.
	MaxK = 20
	// oversample is the factor of extra candidates fetched before reranking.
	oversample = 2
)

// Retriever produces the kb pool for a question.
type Retriever interface {
	// Retrieve returns up to k chunks numbered from 1 in relevance order.
	// A non-empty documentIDs restricts the search to those documents.
	Retrieve(ctx context.Context, question string, k int, documentIDs []string) ([]citation.KBInput, error)
}

// VectorRetriever embeds the question, searches Qdrant and reranks with a lexical blend.
type VectorRetriever struct {
	embedder    llm.Embedder
	vectorStore vectorstore.VectorStore
	collection  string
	chunks      storage.ChunkStore
}

// NewVectorRetriever creates a new VectorRetriever.
func NewVectorRetriever(embedder llm.Embedder, vectorStore vectorstore.VectorStore, collection string, chunks storage.ChunkStore) *VectorRetriever {
	return &VectorRetriever{
		embedder:    embedder,
		vectorStore: vectorStore,
		collection:  collection,
		chunks:      chunks,
	}
}

type candidate struct {
	pointID string
	payload vectorstore.ChunkPayload
	text    string
	vector  float32
	final   float32
}

// Retrieve implements Retriever.
func (r *VectorRetriever) Retrieve(ctx context.Context, question string, k int, documentIDs []string) ([]citation.KBInput, error) {
	logger := contextutil.LoggerFromContext(ctx)

	k = ClampK(k)

	embeddings, err := r.embedder.EmbedTexts(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned for question")
	}

	results, err := r.vectorStore.Search(ctx, r.collection, embeddings[0], k*oversample,
		vectorstore.Filter{DocumentIDs: documentIDs})
	if err != nil {
		return nil, fmt.Errorf("failed to search vector store: %w", err)
	}

	seen := make(map[string]bool, len(results))
	candidates := make([]candidate, 0, len(results))
	for _, res := range results {
		if seen[res.PointID] {
			continue
		}
		seen[res.PointID] = true

		payload, err := vectorstore.ChunkPayloadFromMeta(res.Meta)
		if err != nil {
			logger.WarnContext(ctx, "skipping point with invalid payload", "point_id", res.PointID, "error", err)
			continue
		}

		// SQLite holds the authoritative chunk text; the payload copy covers points
		// whose row is gone.
		text := payload.Content
		chunk, err := r.chunks.GetByID(ctx, res.PointID)
		switch {
		case err == nil:
			text = chunk.Text
		case text == "":
			logger.WarnContext(ctx, "failed to fetch chunk text", "chunk_id", res.PointID, "error", err)
			continue
		}

		candidates = append(candidates, candidate{
			pointID: res.PointID,
			payload: payload,
			text:    text,
			vector:  res.Score,
		})
	}
	candidates = rerank(newLexicalQuery(question), candidates, k)

	pool := make([]citation.KBInput, 0, len(candidates))
	for i, c := range candidates {
		pool = append(pool, citation.KBInput{
			Index:      i + 1,
			Filename:   c.payload.Filename,
			DocumentID: c.payload.DocumentID,
			Similarity: float64(c.vector),
			Content:    c.text,
			ChunkIndex: c.payload.ChunkIndex,
		})
	}

	logger.DebugContext(ctx, "kb pool retrieved",
		"k", k,
		"search_results", len(results),
		"pool_size", len(pool),
	)
	return pool, nil
}

// ClampK applies DefaultK to non-positive values and caps at MaxK.
func ClampK(k int) int {
	if k <= 0 {
		return DefaultK
	}
	if k > MaxK {
		return MaxK
	}
	return k
}
