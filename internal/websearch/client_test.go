package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestClient_Search(t *testing.T) {
	tests := []struct {
		name       string
		k          int
		serverResp func(w http.ResponseWriter, r *http.Request)
		wantTitles []string
		wantErr    bool
	}{
		{
			name: "numbers results in rank order",
			k:    5,
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				var req SearchRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					t.Errorf("decode request: %v", err)
				}
				if req.Query != "termine ricorso" || req.MaxResults != 5 {
					t.Errorf("request = %+v", req)
				}
				if r.Header.Get("Authorization") != "Bearer key" {
					t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
				}
				_ = json.NewEncoder(w).Encode(SearchResponse{Results: []SearchResult{
					{Title: "Primo", URL: "https://example.com/a", Content: "uno"},
					{Title: "Secondo", URL: "https://example.org/b", Content: "due"},
				}})
			},
			wantTitles: []string{"Primo", "Secondo"},
		},
		{
			name: "drops duplicates and empty URLs",
			k:    5,
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(SearchResponse{Results: []SearchResult{
					{Title: "A", URL: "https://www.example.com/a/"},
					{Title: "no url"},
					{Title: "A again", URL: "https://example.com/a?utm_source=x#top"},
					{Title: "", URL: "https://example.com/b"},
				}})
			},
			wantTitles: []string{"A", "https://example.com/b"},
		},
		{
			name: "limits to k",
			k:    1,
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(SearchResponse{Results: []SearchResult{
					{Title: "A", URL: "https://a.example"},
					{Title: "B", URL: "https://b.example"},
				}})
			},
			wantTitles: []string{"A"},
		},
		{
			name: "server error",
			k:    5,
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(tt.serverResp))
			defer server.Close()

			got, err := NewClient(server.URL, "key").Search(context.Background(), "termine ricorso", tt.k)
			if tt.wantErr {
				if err == nil {
					t.Error("Search() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Search() unexpected error: %v", err)
			}
			if len(got) != len(tt.wantTitles) {
				t.Fatalf("Search() returned %d results, want %d", len(got), len(tt.wantTitles))
			}
			for i, r := range got {
				if r.Index != i+1 {
					t.Errorf("result[%d].Index = %d, want %d", i, r.Index, i+1)
				}
				if r.Title != tt.wantTitles[i] {
					t.Errorf("result[%d].Title = %q, want %q", i, r.Title, tt.wantTitles[i])
				}
			}
		})
	}
}

func TestClient_Search_InvalidInput(t *testing.T) {
	c := NewClient("http://unused", "")
	if _, err := c.Search(context.Background(), "  ", 3); err == nil {
		t.Error("Search() with blank query should return error")
	}
	if _, err := c.Search(context.Background(), "q", 0); err == nil {
		t.Error("Search() with k=0 should return error")
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"HTTPS://WWW.Example.com/Path/", "https://example.com/Path"},
		{"https://example.com/a?utm_source=x&id=2#frag", "https://example.com/a?id=2"},
		{"https://example.com", "https://example.com"},
	}
	for _, tt := range tests {
		if got := NormalizeURL(tt.in); got != tt.want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncateRunes(t *testing.T) {
	long := strings.Repeat("è", maxSnippetRunes+10)
	got := truncateRunes(long, maxSnippetRunes)
	if utf8.RuneCountInString(got) != maxSnippetRunes+1 {
		t.Errorf("truncateRunes() length = %d runes", utf8.RuneCountInString(got))
	}
	if truncateRunes("short", 10) != "short" {
		t.Error("truncateRunes() changed a short string")
	}
}
