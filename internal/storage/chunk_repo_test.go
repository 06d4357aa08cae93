package storage

import (
	"context"
	"errors"
	"testing"
)

func createTestDocument(t *testing.T, repo *DocumentRepo, filename string) *DocumentRecord {
	t.Helper()
	doc := &DocumentRecord{Filename: filename, Hash: "hash-" + filename}
	if err := repo.Create(context.Background(), doc); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return doc
}

func TestChunkRepo_Insert(t *testing.T) {
	db := newTestDB(t)
	doc := createTestDocument(t, NewDocumentRepo(db), "guide.md")
	repo := NewChunkRepo(db)

	tests := []struct {
		name    string
		chunk   *ChunkRecord
		wantErr bool
	}{
		{
			name:  "valid chunk",
			chunk: &ChunkRecord{ID: "chunk-1", DocumentID: doc.ID, ChunkIndex: 0, HeadingPath: "# Heading", Text: "Chunk text"},
		},
		{
			name:  "empty text",
			chunk: &ChunkRecord{ID: "chunk-2", DocumentID: doc.ID, ChunkIndex: 1},
		},
		{
			name:    "unknown document",
			chunk:   &ChunkRecord{ID: "chunk-3", DocumentID: "missing", ChunkIndex: 0, Text: "x"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _ = db.Exec("DELETE FROM chunks")

			err := repo.Insert(context.Background(), tt.chunk)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Insert() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Errorf("Insert() unexpected error: %v", err)
			}
		})
	}
}

func TestChunkRepo_ListIDsByDocument_OrderedByIndex(t *testing.T) {
	db := newTestDB(t)
	doc := createTestDocument(t, NewDocumentRepo(db), "guide.md")
	repo := NewChunkRepo(db)
	ctx := context.Background()

	chunks := []*ChunkRecord{
		{ID: "chunk-3", DocumentID: doc.ID, ChunkIndex: 2, Text: "Text 3"},
		{ID: "chunk-1", DocumentID: doc.ID, ChunkIndex: 0, Text: "Text 1"},
		{ID: "chunk-2", DocumentID: doc.ID, ChunkIndex: 1, Text: "Text 2"},
	}
	for _, chunk := range chunks {
		if err := repo.Insert(ctx, chunk); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	ids, err := repo.ListIDsByDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("ListIDsByDocument() error = %v", err)
	}
	expected := []string{"chunk-1", "chunk-2", "chunk-3"}
	if len(ids) != len(expected) {
		t.Fatalf("ListIDsByDocument() returned %d IDs, want %d", len(ids), len(expected))
	}
	for i, id := range ids {
		if id != expected[i] {
			t.Errorf("ListIDsByDocument() ID[%d] = %v, want %v", i, id, expected[i])
		}
	}

	none, err := repo.ListIDsByDocument(ctx, "non-existent")
	if err != nil {
		t.Fatalf("ListIDsByDocument() error = %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("ListIDsByDocument() for unknown document = %v, want empty slice", none)
	}
}

func TestChunkRepo_DeleteByDocument(t *testing.T) {
	db := newTestDB(t)
	doc := createTestDocument(t, NewDocumentRepo(db), "guide.md")
	repo := NewChunkRepo(db)
	ctx := context.Background()

	for i, id := range []string{"a", "b"} {
		if err := repo.Insert(ctx, &ChunkRecord{ID: id, DocumentID: doc.ID, ChunkIndex: i, Text: id}); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	if err := repo.DeleteByDocument(ctx, doc.ID); err != nil {
		t.Fatalf("DeleteByDocument() error = %v", err)
	}
	ids, err := repo.ListIDsByDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("ListIDsByDocument() error = %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("DeleteByDocument() left %d chunks", len(ids))
	}

	if err := repo.DeleteByDocument(ctx, "non-existent"); err != nil {
		t.Errorf("DeleteByDocument() with unknown document should not error, got: %v", err)
	}
}

func TestChunkRepo_GetByID(t *testing.T) {
	db := newTestDB(t)
	doc := createTestDocument(t, NewDocumentRepo(db), "guide.md")
	repo := NewChunkRepo(db)
	ctx := context.Background()

	want := &ChunkRecord{ID: "c1", DocumentID: doc.ID, ChunkIndex: 0, HeadingPath: "# Intro", Text: "hello"}
	if err := repo.Insert(ctx, want); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "c1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if *got != *want {
		t.Errorf("GetByID() = %+v, want %+v", got, want)
	}

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}
