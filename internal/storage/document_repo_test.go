package storage

import (
	"context"
	"errors"
	"testing"
)

func TestDocumentRepo_CreateAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := NewDocumentRepo(db)
	ctx := context.Background()

	doc := &DocumentRecord{Filename: "Regolamento.pdf", Hash: "abc", ChunkCount: 3}
	if err := repo.Create(ctx, doc); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if doc.ID == "" {
		t.Fatal("Create() did not assign an ID")
	}
	if doc.CreatedAt.IsZero() {
		t.Error("Create() did not set CreatedAt")
	}

	got, err := repo.GetByID(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Filename != "Regolamento.pdf" || got.ChunkCount != 3 || got.Hash != "abc" {
		t.Errorf("GetByID() = %+v", got)
	}

	byHash, err := repo.GetByHash(ctx, "abc")
	if err != nil {
		t.Fatalf("GetByHash() error = %v", err)
	}
	if byHash.ID != doc.ID {
		t.Errorf("GetByHash() ID = %v, want %v", byHash.ID, doc.ID)
	}

	if err := repo.Create(ctx, &DocumentRecord{Filename: "copy.pdf", Hash: "abc"}); err == nil {
		t.Error("Create() with duplicate hash expected error, got nil")
	}
}

func TestDocumentRepo_NotFound(t *testing.T) {
	repo := NewDocumentRepo(newTestDB(t))
	ctx := context.Background()

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
	if _, err := repo.GetByHash(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByHash() error = %v, want ErrNotFound", err)
	}
	if err := repo.Delete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}

func TestDocumentRepo_ListInIngestionOrder(t *testing.T) {
	repo := NewDocumentRepo(newTestDB(t))
	ctx := context.Background()

	empty, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("List() on empty table = %v, want empty slice", empty)
	}

	names := []string{"c.pdf", "a.pdf", "b.pdf"}
	for _, name := range names {
		createTestDocument(t, repo, name)
	}

	docs, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(docs) != len(names) {
		t.Fatalf("List() returned %d documents, want %d", len(docs), len(names))
	}
	for i, doc := range docs {
		if doc.Filename != names[i] {
			t.Errorf("List()[%d] = %v, want %v", i, doc.Filename, names[i])
		}
	}
}

func TestDocumentRepo_DeleteCascadesChunks(t *testing.T) {
	db := newTestDB(t)
	docs := NewDocumentRepo(db)
	chunks := NewChunkRepo(db)
	ctx := context.Background()

	doc := createTestDocument(t, docs, "guide.md")
	if err := chunks.Insert(ctx, &ChunkRecord{ID: "c1", DocumentID: doc.ID, Text: "x"}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	if err := docs.Delete(ctx, doc.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := chunks.GetByID(ctx, "c1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("chunk survived document delete: err = %v", err)
	}
}
