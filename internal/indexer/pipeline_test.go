package indexer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"go.uber.org/mock/gomock"

	llm_mocks "groundchat/internal/llm/mocks"
	"groundchat/internal/storage"
	storage_mocks "groundchat/internal/storage/mocks"
	"groundchat/internal/vectorstore"
	vectorstore_mocks "groundchat/internal/vectorstore/mocks"
)

func init() {
	// Suppress log output during tests
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type pipelineMocks struct {
	documents   *storage_mocks.MockDocumentStore
	chunks      *storage_mocks.MockChunkStore
	embedder    *llm_mocks.MockEmbedder
	vectorStore *vectorstore_mocks.MockVectorStore
}

func newTestPipeline(t *testing.T) (*Pipeline, pipelineMocks) {
	ctrl := gomock.NewController(t)
	m := pipelineMocks{
		documents:   storage_mocks.NewMockDocumentStore(ctrl),
		chunks:      storage_mocks.NewMockChunkStore(ctrl),
		embedder:    llm_mocks.NewMockEmbedder(ctrl),
		vectorStore: vectorstore_mocks.NewMockVectorStore(ctrl),
	}
	return NewPipeline(m.documents, m.chunks, m.embedder, m.vectorStore, "test-collection"), m
}

func fakeEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 1}
	}
	return out, nil
}

const testDocument = "# Regolamento\n\nL'iscrizione si effettua entro il 30 settembre di ogni anno accademico."

func TestPipeline_Ingest(t *testing.T) {
	p, m := newTestPipeline(t)
	ctx := context.Background()

	m.documents.EXPECT().GetByHash(ctx, gomock.Any()).Return(nil, storage.ErrNotFound)
	m.embedder.EXPECT().EmbedTexts(ctx, gomock.Len(1)).DoAndReturn(fakeEmbeddings)
	m.documents.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, doc *storage.DocumentRecord) error {
		if doc.Filename != "regolamento.md" || doc.ChunkCount != 1 || len(doc.Hash) != 64 {
			t.Errorf("Create() doc = %+v", doc)
		}
		doc.ID = "doc-1"
		return nil
	})
	m.chunks.EXPECT().Insert(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, c *storage.ChunkRecord) error {
		if c.DocumentID != "doc-1" || c.ChunkIndex != 0 || c.HeadingPath != "# Regolamento" || c.ID == "" {
			t.Errorf("Insert() chunk = %+v", c)
		}
		return nil
	})
	m.vectorStore.EXPECT().Upsert(ctx, "test-collection", gomock.Len(1)).DoAndReturn(func(_ context.Context, _ string, points []vectorstore.Point) error {
		payload, err := vectorstore.ChunkPayloadFromMeta(points[0].Meta)
		if err != nil {
			t.Fatalf("ChunkPayloadFromMeta() error = %v", err)
		}
		if payload.DocumentID != "doc-1" || payload.Filename != "regolamento.md" || !strings.Contains(payload.Content, "30 settembre") {
			t.Errorf("payload = %+v", payload)
		}
		return nil
	})

	doc, created, err := p.Ingest(ctx, "uploads/regolamento.md", []byte(testDocument))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if !created || doc.ID != "doc-1" {
		t.Errorf("Ingest() = %+v, %v", doc, created)
	}
}

func TestPipeline_Ingest_KnownHash(t *testing.T) {
	p, m := newTestPipeline(t)
	ctx := context.Background()

	existing := &storage.DocumentRecord{ID: "doc-1", Filename: "regolamento.md"}
	m.documents.EXPECT().GetByHash(ctx, gomock.Any()).Return(existing, nil)

	doc, created, err := p.Ingest(ctx, "regolamento.md", []byte(testDocument))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if created || doc != existing {
		t.Errorf("Ingest() = %+v, %v, want existing document", doc, created)
	}
}

func TestPipeline_Ingest_Errors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		filename string
		content  string
		setup    func(m pipelineMocks)
		wantErr  error
	}{
		{
			name:     "missing filename",
			filename: " ",
			content:  testDocument,
			setup:    func(pipelineMocks) {},
		},
		{
			name:     "empty document",
			filename: "empty.md",
			content:  "\n\n",
			setup: func(m pipelineMocks) {
				m.documents.EXPECT().GetByHash(ctx, gomock.Any()).Return(nil, storage.ErrNotFound)
			},
			wantErr: ErrEmptyDocument,
		},
		{
			name:     "hash lookup fails",
			filename: "a.md",
			content:  testDocument,
			setup: func(m pipelineMocks) {
				m.documents.EXPECT().GetByHash(ctx, gomock.Any()).Return(nil, errors.New("db down"))
			},
		},
		{
			name:     "embedding fails before any write",
			filename: "a.md",
			content:  testDocument,
			setup: func(m pipelineMocks) {
				m.documents.EXPECT().GetByHash(ctx, gomock.Any()).Return(nil, storage.ErrNotFound)
				m.embedder.EXPECT().EmbedTexts(ctx, gomock.Any()).Return(nil, errors.New("embedder down"))
			},
		},
		{
			name:     "embedding count mismatch",
			filename: "a.md",
			content:  testDocument,
			setup: func(m pipelineMocks) {
				m.documents.EXPECT().GetByHash(ctx, gomock.Any()).Return(nil, storage.ErrNotFound)
				m.embedder.EXPECT().EmbedTexts(ctx, gomock.Any()).Return([][]float32{}, nil)
			},
		},
		{
			name:     "vector upsert fails rolls back",
			filename: "a.md",
			content:  testDocument,
			setup: func(m pipelineMocks) {
				m.documents.EXPECT().GetByHash(ctx, gomock.Any()).Return(nil, storage.ErrNotFound)
				m.embedder.EXPECT().EmbedTexts(ctx, gomock.Any()).DoAndReturn(fakeEmbeddings)
				m.documents.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, doc *storage.DocumentRecord) error {
					doc.ID = "doc-1"
					return nil
				})
				m.chunks.EXPECT().Insert(ctx, gomock.Any()).Return(nil)
				m.vectorStore.EXPECT().Upsert(ctx, "test-collection", gomock.Any()).Return(errors.New("qdrant down"))
				m.documents.EXPECT().Delete(ctx, "doc-1").Return(nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, m := newTestPipeline(t)
			tt.setup(m)

			doc, created, err := p.Ingest(ctx, tt.filename, []byte(tt.content))
			if err == nil {
				t.Fatal("Ingest() error = nil, want error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Ingest() error = %v, want %v", err, tt.wantErr)
			}
			if doc != nil || created {
				t.Errorf("Ingest() = %+v, %v, want nil, false", doc, created)
			}
		})
	}
}

func TestPipeline_Ingest_BatchesEmbeddings(t *testing.T) {
	p, m := newTestPipeline(t)
	ctx := context.Background()

	var b strings.Builder
	b.WriteString("# Big\n\n")
	for i := 0; i < embedBatchSize+5; i++ {
		b.WriteString("## Section\n\n")
		b.WriteString(strings.Repeat("parola ", 100))
		b.WriteString("\n\n")
	}

	m.documents.EXPECT().GetByHash(ctx, gomock.Any()).Return(nil, storage.ErrNotFound)
	gomock.InOrder(
		m.embedder.EXPECT().EmbedTexts(ctx, gomock.Len(embedBatchSize)).DoAndReturn(fakeEmbeddings),
		m.embedder.EXPECT().EmbedTexts(ctx, gomock.Len(5)).DoAndReturn(fakeEmbeddings),
	)
	m.documents.EXPECT().Create(ctx, gomock.Any()).Return(nil)
	m.chunks.EXPECT().Insert(ctx, gomock.Any()).Return(nil).Times(embedBatchSize + 5)
	m.vectorStore.EXPECT().Upsert(ctx, "test-collection", gomock.Len(embedBatchSize+5)).Return(nil)

	if _, _, err := p.Ingest(ctx, "big.md", []byte(b.String())); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
}

func TestPipeline_Remove(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes vectors then document", func(t *testing.T) {
		p, m := newTestPipeline(t)
		gomock.InOrder(
			m.chunks.EXPECT().ListIDsByDocument(ctx, "doc-1").Return([]string{"c1", "c2"}, nil),
			m.vectorStore.EXPECT().Delete(ctx, "test-collection", []string{"c1", "c2"}).Return(nil),
			m.documents.EXPECT().Delete(ctx, "doc-1").Return(nil),
		)
		if err := p.Remove(ctx, "doc-1"); err != nil {
			t.Fatalf("Remove() error = %v", err)
		}
	})

	t.Run("unknown document", func(t *testing.T) {
		p, m := newTestPipeline(t)
		m.chunks.EXPECT().ListIDsByDocument(ctx, "nope").Return([]string{}, nil)
		m.documents.EXPECT().Delete(ctx, "nope").Return(storage.ErrNotFound)

		if err := p.Remove(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Remove() error = %v, want ErrNotFound", err)
		}
	})
}
