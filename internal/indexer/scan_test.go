package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/mock/gomock"

	"groundchat/internal/storage"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		full := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatalf("Failed to create dir: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to create file: %v", err)
		}
	}
}

func TestScanDir(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"guide.md":              "# Guide",
		"policies/rules.MD":     "# Rules",
		"policies/faq.txt":      "FAQ",
		"notes/draft.markdown":  "# Draft",
		"image.png":             "png",
		".hidden.md":            "# Hidden",
		".cache/config.md":      "# Config",
		"archive/.trash/old.md": "# Old",
	})

	files, err := ScanDir(context.Background(), root)
	if err != nil {
		t.Fatalf("ScanDir() error = %v", err)
	}

	want := []string{"guide.md", "notes/draft.markdown", "policies/faq.txt", "policies/rules.MD"}
	if len(files) != len(want) {
		t.Fatalf("ScanDir() returned %d files, want %d: %+v", len(files), len(want), files)
	}
	for i, f := range files {
		if f.RelPath != want[i] {
			t.Errorf("files[%d].RelPath = %q, want %q", i, f.RelPath, want[i])
		}
		if f.AbsPath != filepath.Join(root, filepath.FromSlash(want[i])) {
			t.Errorf("files[%d].AbsPath = %q", i, f.AbsPath)
		}
	}
}

func TestScanDir_Errors(t *testing.T) {
	t.Run("missing root", func(t *testing.T) {
		if _, err := ScanDir(context.Background(), filepath.Join(t.TempDir(), "missing")); err == nil {
			t.Error("ScanDir() expected error for missing root")
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		root := t.TempDir()
		writeFiles(t, root, map[string]string{"a.md": "# A"})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := ScanDir(ctx, root); !errors.Is(err, context.Canceled) {
			t.Errorf("ScanDir() error = %v, want context.Canceled", err)
		}
	})
}

func TestPipeline_IngestDir(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"a.md":  testDocument,
		"b.md":  "# Known\n\nAlready stored content.",
		"c.txt": "Content that hits a broken database.",
	})

	p, m := newTestPipeline(t)
	ctx := context.Background()

	gomock.InOrder(
		m.documents.EXPECT().GetByHash(ctx, gomock.Any()).Return(nil, storage.ErrNotFound),
		m.embedder.EXPECT().EmbedTexts(ctx, gomock.Len(1)).DoAndReturn(fakeEmbeddings),
		m.documents.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, doc *storage.DocumentRecord) error {
			doc.ID = "doc-a"
			return nil
		}),
		m.chunks.EXPECT().Insert(ctx, gomock.Any()).Return(nil),
		m.vectorStore.EXPECT().Upsert(ctx, "test-collection", gomock.Len(1)).Return(nil),

		m.documents.EXPECT().GetByHash(ctx, gomock.Any()).Return(&storage.DocumentRecord{ID: "doc-b"}, nil),

		m.documents.EXPECT().GetByHash(ctx, gomock.Any()).Return(nil, errors.New("db down")),
	)

	res, err := p.IngestDir(ctx, root)
	if err != nil {
		t.Fatalf("IngestDir() error = %v", err)
	}
	if res != (DirResult{Created: 1, Known: 1, Failed: 1}) {
		t.Errorf("IngestDir() = %+v, want 1 created, 1 known, 1 failed", res)
	}
}

func TestPipeline_IngestDir_MissingRoot(t *testing.T) {
	p, _ := newTestPipeline(t)
	if _, err := p.IngestDir(context.Background(), filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("IngestDir() expected error for missing root")
	}
}
