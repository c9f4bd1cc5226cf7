// Package search is the client for the external web-search provider used by
// the search pre-step. Results are opaque input to the prompt assembler.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"lantern/internal/domain"
	"lantern/internal/domain/models"
)

const (
	// DefaultMaxResults bounds one search pre-step.
	DefaultMaxResults = 5
	// DefaultTimeout is the HTTP timeout for one search call.
	DefaultTimeout = 30 * time.Second

	maxResultsCap = 20
)

// Client defines the contract the pre-step orchestrator depends on.
// Implementations include Tavily-style JSON search APIs.
type Client interface {
	// Search runs a web search and returns ordered results.
	Search(ctx context.Context, query string, maxResults int) ([]models.SearchResult, error)
}

// HTTPClient implements Client against a Tavily-compatible search endpoint.
type HTTPClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// NewHTTPClient creates a search client for the given endpoint.
func NewHTTPClient(endpoint, apiKey string) *HTTPClient {
	return &HTTPClient{
		apiKey:   apiKey,
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// Search implements Client.
func (c *HTTPClient) Search(ctx context.Context, query string, maxResults int) ([]models.SearchResult, error) {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if maxResults > maxResultsCap {
		maxResults = maxResultsCap
	}

	// The provider expects the API key in the body, not in headers.
	payload := map[string]any{
		"api_key":     c.apiKey,
		"query":       query,
		"max_results": maxResults,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.UpstreamError{Status: resp.StatusCode, Body: string(body)}
	}

	var searchResp searchResponse
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}

	results := make([]models.SearchResult, len(searchResp.Results))
	for i, r := range searchResp.Results {
		results[i] = models.SearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Content,
		}
	}
	return results, nil
}

type searchResponse struct {
	Results []searchResult `json:"results"`
	Query   string         `json:"query"`
}

type searchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}
