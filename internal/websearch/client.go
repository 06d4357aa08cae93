// Package websearch fetches the web evidence pool from a JSON search API.
package websearch

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_searcher.go -package=mocks groundchat/internal/websearch Searcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"groundchat/internal/citation"
	"groundchat/internal/contextutil"
)

// maxSnippetRunes bounds the excerpt kept per result.
const maxSnippetRunes = 1200

// Searcher returns web results numbered from 1 in rank order.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]citation.WebInput, error)
}

// Client queries a search endpoint that accepts {"query","max_results"} and answers
// {"results":[{"title","url","content"}]}.
type Client struct {
	URL    string
	APIKey string
	client *http.Client
}

// NewClient creates a new web search client.
func NewClient(url, apiKey string) *Client {
	return &Client{
		URL:    url,
		APIKey: apiKey,
		client: http.DefaultClient,
	}
}

// SearchRequest is the request payload.
type SearchRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

// SearchResult is one result as returned by the API.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// SearchResponse is the response payload.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

// Search runs query and returns at most k unique results. Results without a URL are
// skipped, duplicates (same normalized URL) keep their first rank.
func (c *Client) Search(ctx context.Context, query string, k int) ([]citation.WebInput, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty query")
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}

	body, err := json.Marshal(SearchRequest{Query: query, MaxResults: k})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.APIKey))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("bad status %d: %s", resp.StatusCode, string(raw))
	}

	var searchResp SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	results := make([]citation.WebInput, 0, len(searchResp.Results))
	seen := make(map[string]bool, len(searchResp.Results))
	for _, r := range searchResp.Results {
		if len(results) == k {
			break
		}
		if r.URL == "" {
			continue
		}
		key := NormalizeURL(r.URL)
		if seen[key] {
			continue
		}
		seen[key] = true

		title := strings.TrimSpace(r.Title)
		if title == "" {
			title = r.URL
		}
		results = append(results, citation.WebInput{
			Index:   len(results) + 1,
			Title:   title,
			URL:     r.URL,
			Content: truncateRunes(strings.TrimSpace(r.Content), maxSnippetRunes),
		})
	}

	logger.DebugContext(ctx, "web search completed", "returned", len(searchResp.Results), "kept", len(results))
	return results, nil
}

// NormalizeURL returns a comparison key for rawURL: lowercase scheme and host without
// "www.", no fragment, no trailing slash, tracking parameters removed. Unparseable URLs
// are returned unchanged.
func NormalizeURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")
	parsed.Fragment = ""

	if parsed.RawQuery != "" {
		q := parsed.Query()
		for _, param := range []string{
			"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content",
			"fbclid", "gclid", "msclkid",
		} {
			q.Del(param)
		}
		parsed.RawQuery = q.Encode()
	}
	parsed.Path = strings.TrimSuffix(parsed.Path, "/")

	return parsed.String()
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "…"
}
