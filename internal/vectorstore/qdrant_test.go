package vectorstore

import (
	"context"
	"testing"

	"github.com/qdrant/go-client/qdrant"
)

func TestGRPCAddress(t *testing.T) {
	tests := []struct {
		name     string
		urlStr   string
		wantErr  bool
		wantHost string
		wantPort int
	}{
		{name: "default http port", urlStr: "http://localhost:6333", wantHost: "localhost", wantPort: 6334},
		{name: "custom port", urlStr: "http://qdrant:9000", wantHost: "qdrant", wantPort: 9001},
		{name: "no port", urlStr: "http://localhost", wantHost: "localhost", wantPort: 6334},
		{name: "no hostname", urlStr: "http://:6333", wantHost: "localhost", wantPort: 6334},
		{name: "invalid URL", urlStr: "://invalid", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, port, err := grpcAddress(tt.urlStr)
			if tt.wantErr {
				if err == nil {
					t.Error("grpcAddress() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("grpcAddress() unexpected error: %v", err)
			}
			if host != tt.wantHost {
				t.Errorf("host = %v, want %v", host, tt.wantHost)
			}
			if port != tt.wantPort {
				t.Errorf("port = %v, want %v", port, tt.wantPort)
			}
		})
	}
}

func TestNewQdrantStore_InvalidURL(t *testing.T) {
	if _, err := NewQdrantStore("://invalid"); err == nil {
		t.Error("NewQdrantStore() with invalid URL should return error")
	}
}

func TestQdrantStore_EarlyReturns(t *testing.T) {
	// A store without a client must never reach it for these inputs.
	store := &QdrantStore{}
	ctx := context.Background()

	if err := store.Upsert(ctx, "kb", nil); err != nil {
		t.Errorf("Upsert() with no points error = %v", err)
	}
	if err := store.Delete(ctx, "kb", []string{}); err != nil {
		t.Errorf("Delete() with no IDs error = %v", err)
	}
	for _, k := range []int{0, -1} {
		if _, err := store.Search(ctx, "kb", []float32{1, 2}, k, Filter{}); err == nil {
			t.Errorf("Search() with k=%d should return error", k)
		}
	}
	if _, err := store.Search(ctx, "kb", nil, 3, Filter{}); err == nil {
		t.Error("Search() with empty query should return error")
	}
}

func TestBuildFilter(t *testing.T) {
	if f := buildFilter(Filter{}); f != nil {
		t.Errorf("buildFilter(zero) = %v, want nil", f)
	}

	f := buildFilter(Filter{DocumentIDs: []string{"d1", "d2"}})
	if f == nil {
		t.Fatal("buildFilter() returned nil")
	}
	if len(f.Should) != 2 || len(f.Must) != 0 {
		t.Fatalf("buildFilter() should = %d, must = %d", len(f.Should), len(f.Must))
	}
	field := f.Should[0].GetField()
	if field.GetKey() != KeyDocumentID || field.GetMatch().GetKeyword() != "d1" {
		t.Errorf("first condition = %v", f.Should[0])
	}
}

func TestChunkPayload_RoundTrip(t *testing.T) {
	in := ChunkPayload{
		DocumentID:  "d1",
		Filename:    "Regolamento.md",
		ChunkIndex:  4,
		HeadingPath: "# Regole > ## Art. 5",
		Content:     "Il termine è di 30 giorni.",
	}

	// Through the same conversion a search result goes through.
	meta := convertPayloadToMap(qdrant.NewValueMap(in.Meta()))
	out, err := ChunkPayloadFromMeta(meta)
	if err != nil {
		t.Fatalf("ChunkPayloadFromMeta() error = %v", err)
	}
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}

func TestChunkPayloadFromMeta_MissingDocument(t *testing.T) {
	if _, err := ChunkPayloadFromMeta(map[string]any{KeyFilename: "x"}); err == nil {
		t.Error("ChunkPayloadFromMeta() without document_id should return error")
	}
}

func TestConvertPayloadToMap(t *testing.T) {
	result := convertPayloadToMap(nil)
	if result == nil || len(result) != 0 {
		t.Errorf("convertPayloadToMap(nil) = %v, want empty map", result)
	}

	nested := convertPayloadToMap(qdrant.NewValueMap(map[string]any{
		"tags": []any{"a", "b"},
		"ok":   true,
	}))
	tags, ok := nested["tags"].([]any)
	if !ok || len(tags) != 2 || tags[0] != "a" {
		t.Errorf("tags = %v", nested["tags"])
	}
	if nested["ok"] != true {
		t.Errorf("ok = %v", nested["ok"])
	}
}

func TestToPointStructs(t *testing.T) {
	points := toPointStructs([]Point{
		{ID: "6f1c5c8e-0c1a-4b47-9d7e-3f1f2b0b8a11", Vec: []float32{1, 2}, Meta: map[string]any{KeyDocumentID: "d1"}},
		{ID: "0b7e2f4a-5d6c-4e8f-a1b2-c3d4e5f60718", Vec: []float32{3, 4}},
	})
	if len(points) != 2 {
		t.Fatalf("toPointStructs() returned %d points, want 2", len(points))
	}
	if points[0].GetId().GetUuid() != "6f1c5c8e-0c1a-4b47-9d7e-3f1f2b0b8a11" {
		t.Errorf("id = %v", points[0].GetId())
	}
	if points[0].GetPayload()[KeyDocumentID].GetStringValue() != "d1" {
		t.Errorf("payload = %v", points[0].GetPayload())
	}
	if points[1].GetPayload() != nil {
		t.Errorf("point without meta got payload %v", points[1].GetPayload())
	}
}

func TestToSearchResult(t *testing.T) {
	got := toSearchResult(&qdrant.ScoredPoint{
		Id:      qdrant.NewID("6f1c5c8e-0c1a-4b47-9d7e-3f1f2b0b8a11"),
		Score:   0.75,
		Payload: qdrant.NewValueMap(map[string]any{KeyFilename: "a.md"}),
	})
	if got.PointID != "6f1c5c8e-0c1a-4b47-9d7e-3f1f2b0b8a11" || got.Score != 0.75 || got.Meta[KeyFilename] != "a.md" {
		t.Errorf("toSearchResult() = %+v", got)
	}

	empty := toSearchResult(&qdrant.ScoredPoint{})
	if empty.PointID != "" || empty.Meta == nil {
		t.Errorf("toSearchResult(empty) = %+v, want empty id and non-nil meta", empty)
	}
}

func TestCollectionVectorSize(t *testing.T) {
	withSize := func(size uint64) *qdrant.CollectionInfo {
		return &qdrant.CollectionInfo{
			Config: &qdrant.CollectionConfig{
				Params: &qdrant.CollectionParams{
					VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{Size: size, Distance: qdrant.Distance_Cosine}),
				},
			},
		}
	}

	tests := []struct {
		name    string
		info    *qdrant.CollectionInfo
		want    int
		wantErr bool
	}{
		{name: "configured size", info: withSize(768), want: 768},
		{name: "zero size", info: withSize(0), wantErr: true},
		{name: "missing config", info: &qdrant.CollectionInfo{}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := collectionVectorSize(tt.info)
			if (err != nil) != tt.wantErr {
				t.Fatalf("collectionVectorSize() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("collectionVectorSize() = %d, want %d", got, tt.want)
			}
		})
	}
}
