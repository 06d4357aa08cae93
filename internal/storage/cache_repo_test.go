package storage

import (
	"context"
	"errors"
	"testing"

	"groundchat/internal/citation"
)

func TestCacheRepo(t *testing.T) {
	repo := NewCacheRepo(newTestDB(t))
	ctx := context.Background()

	if _, err := repo.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() on miss error = %v, want ErrNotFound", err)
	}

	res := citation.Result{
		Text:        "A [1].",
		KBSources:   []citation.EvidenceItem{{Pool: citation.PoolKB, OriginalIndex: 3, DisplayIndex: 1, Title: "FAQ.pdf"}},
		Diagnostics: citation.Diagnostics{Markers: 2, Removed: 1},
	}
	if err := repo.Put(ctx, "k", res); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := repo.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Text != res.Text || len(got.KBSources) != 1 || got.KBSources[0].Title != "FAQ.pdf" {
		t.Errorf("Get() = %+v", got)
	}
	if got.Diagnostics.Removed != 1 || got.Diagnostics.Markers != 2 {
		t.Errorf("Get() diagnostics = %+v, want them round-tripped", got.Diagnostics)
	}

	res.Text = "B"
	if err := repo.Put(ctx, "k", res); err != nil {
		t.Fatalf("Put() replace error = %v", err)
	}
	got, err = repo.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Text != "B" {
		t.Errorf("Get() after replace = %q, want B", got.Text)
	}
}
