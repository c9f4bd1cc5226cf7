// Package rag is the client for the external retrieval service. Indexing and
// embedding live in that service; this side only queries it and applies
// client-side category filtering.
package rag

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
	// DefaultTopK is the number of chunks retrieved per query.
	DefaultTopK = 3
	// DefaultThreshold drops matches below this similarity score.
	DefaultThreshold = 0.5
	// DefaultTimeout is the HTTP timeout for one retrieval call.
	DefaultTimeout = 30 * time.Second
)

// Client defines the retrieval contract the pre-step orchestrator depends on.
type Client interface {
	// Query retrieves the most relevant knowledge chunks for a question.
	Query(ctx context.Context, query string, opts QueryOptions) ([]models.RAGMatch, error)
}

// QueryOptions tune one retrieval call. Zero values use the service defaults.
type QueryOptions struct {
	TopK      int
	Threshold float64
	// Category keeps only matches tagged with this knowledge category.
	// Filtering happens client-side after retrieval.
	Category string
}

// HTTPClient implements Client against the retrieval service's query API.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient creates a retrieval client for the given service root.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

type queryRequest struct {
	Query     string  `json:"query"`
	TopK      int     `json:"top_k"`
	Threshold float64 `json:"threshold"`
}

type queryResponse struct {
	Context        []models.RAGMatch `json:"context"`
	Query          string            `json:"query"`
	RetrievedCount int               `json:"retrieved_count"`
}

// Query implements Client.
func (c *HTTPClient) Query(ctx context.Context, query string, opts QueryOptions) ([]models.RAGMatch, error) {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}

	payload, err := json.Marshal(queryRequest{
		Query:     query,
		TopK:      opts.TopK,
		Threshold: opts.Threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal retrieval request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/rag/query", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create retrieval request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("retrieval request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read retrieval response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.UpstreamError{Status: resp.StatusCode, Body: string(body)}
	}

	var queryResp queryResponse
	if err := json.Unmarshal(body, &queryResp); err != nil {
		return nil, fmt.Errorf("parse retrieval response: %w", err)
	}

	return FilterByCategory(queryResp.Context, opts.Category), nil
}

// FilterByCategory keeps only matches tagged with category, preserving
// order. An empty category keeps everything.
func FilterByCategory(matches []models.RAGMatch, category string) []models.RAGMatch {
	if category == "" {
		return matches
	}
	filtered := make([]models.RAGMatch, 0, len(matches))
	for _, m := range matches {
		if m.Metadata.Category == category {
			filtered = append(filtered, m)
		}
	}
	return filtered
}
