// Package llm is the client for OpenAI-compatible chat completion endpoints
// (llama.cpp server, Ollama, or any server speaking the same schema).
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"lantern/internal/domain"
	"lantern/internal/domain/models"
)

const (
	// DefaultTemperature is applied when the request carries none.
	DefaultTemperature = 0.7
	// DefaultMaxTokens is applied when the request carries none.
	DefaultMaxTokens = 2048
	// DefaultModel is what llama.cpp expects when a single model is loaded.
	DefaultModel = "default"

	// generateTimeout bounds the non-streaming form. Streams are bounded by
	// the caller's context instead.
	generateTimeout = 120 * time.Second

	connectTimeout = 10 * time.Second
)

// Options shape one completion request.
type Options struct {
	SystemPrompt string
	History      []models.ChatTurn
	Temperature  *float64
	MaxTokens    *int
}

// Client issues chat completion requests against one upstream endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client for the endpoint described by cfg.
func NewClient(cfg models.LLMConfig, logger *slog.Logger) *Client {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   model,
		// No overall timeout: streaming responses stay open for the full
		// generation. The request context is the cancellation path; only
		// the dial is bounded.
		httpClient: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
			},
		},
		logger: logger,
	}
}

// chatCompletionRequest is the OpenAI-compatible request schema.
type chatCompletionRequest struct {
	Model       string           `json:"model"`
	Messages    []models.Message `json:"messages"`
	Temperature float64          `json:"temperature"`
	MaxTokens   int              `json:"max_tokens"`
	Stream      bool             `json:"stream"`
}

// chunkDelta is one incremental payload. Reasoning is the secondary
// deliberation channel some models emit alongside content.
type chunkDelta struct {
	Content   string `json:"content"`
	Reasoning string `json:"reasoning"`
}

type chunkChoice struct {
	Delta   chunkDelta     `json:"delta"`
	Message models.Message `json:"message"`
}

type completionChunk struct {
	Choices []chunkChoice `json:"choices"`
}

// Stream issues a streaming completion and returns a lazy fragment sequence.
// Pre-stream failures (request construction, non-2xx status) are returned as
// errors; failures after the first byte become a trailing human-readable
// error fragment so partial output already rendered is never lost.
func (c *Client) Stream(ctx context.Context, prompt string, opts Options) (<-chan models.Fragment, error) {
	resp, err := c.post(ctx, prompt, opts, true)
	if err != nil {
		return nil, err
	}

	fragments := make(chan models.Fragment, 10) // buffered to keep the reader off the hot path

	go func() {
		defer close(fragments)
		defer func() { _ = resp.Body.Close() }()

		var lineBuf LineBuffer
		buf := make([]byte, 4096)

		for {
			n, readErr := resp.Body.Read(buf)
			if n > 0 {
				for _, line := range lineBuf.Feed(buf[:n]) {
					done, emitErr := c.emitLine(ctx, fragments, line)
					if done || emitErr != nil {
						return
					}
				}
			}
			if readErr != nil {
				if readErr == io.EOF || ctx.Err() != nil {
					// Graceful close or cooperative cancellation: the
					// consumer salvages whatever already arrived.
					return
				}
				c.logger.Error("upstream stream interrupted", "error", readErr)
				c.send(ctx, fragments, models.Fragment{
					Kind: models.FragmentContent,
					Text: fmt.Sprintf("\n\n[connection error: %v]", readErr),
				})
				return
			}
		}
	}()

	return fragments, nil
}

// emitLine parses one logical SSE line and emits its fragments. Returns
// done=true on the [DONE] terminator; err is non-nil only when the consumer
// context is cancelled.
func (c *Client) emitLine(ctx context.Context, out chan<- models.Fragment, line string) (done bool, err error) {
	if line == "" {
		return false, nil
	}
	payload, ok := CutData(line)
	if !ok {
		// Not a data line: SSE comments and any stray output are skipped.
		return false, nil
	}
	if payload == DoneSentinel {
		return true, nil
	}

	var chunk completionChunk
	if jsonErr := json.Unmarshal([]byte(payload), &chunk); jsonErr != nil {
		// Malformed payloads never abort the stream.
		c.logger.Warn("skipping unparsable stream line", "error", jsonErr)
		return false, nil
	}
	if len(chunk.Choices) == 0 {
		return false, nil
	}

	delta := chunk.Choices[0].Delta

	// Reasoning precedes content when one payload carries both. The
	// delimiters are applied here, at the source, so every consumer sees
	// reasoning as ordinary wrapped text.
	if delta.Reasoning != "" {
		if !c.send(ctx, out, models.Fragment{
			Kind: models.FragmentReasoning,
			Text: models.ThinkOpen + delta.Reasoning + models.ThinkClose,
		}) {
			return false, ctx.Err()
		}
	}
	if delta.Content != "" {
		if !c.send(ctx, out, models.Fragment{
			Kind: models.FragmentContent,
			Text: delta.Content,
		}) {
			return false, ctx.Err()
		}
	}
	return false, nil
}

func (c *Client) send(ctx context.Context, out chan<- models.Fragment, f models.Fragment) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- f:
		return true
	}
}

// Generate is the non-streaming convenience form.
func (c *Client) Generate(ctx context.Context, prompt string, opts Options) (*models.ChatTurn, error) {
	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	resp, err := c.post(ctx, prompt, opts, false)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read completion response: %w", err)
	}

	var chunk completionChunk
	if err := json.Unmarshal(body, &chunk); err != nil {
		return nil, fmt.Errorf("parse completion response: %w", err)
	}
	if len(chunk.Choices) == 0 {
		return nil, fmt.Errorf("completion response has no choices")
	}

	return &models.ChatTurn{
		Role:    "assistant",
		Content: chunk.Choices[0].Message.Content,
	}, nil
}

// post issues the chat completion request and verifies the status line.
func (c *Client) post(ctx context.Context, prompt string, opts Options, stream bool) (*http.Response, error) {
	payload := chatCompletionRequest{
		Model:       c.model,
		Messages:    c.buildMessages(prompt, opts),
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		Stream:      stream,
	}
	if opts.Temperature != nil {
		payload.Temperature = *opts.Temperature
	}
	if opts.MaxTokens != nil {
		payload.MaxTokens = *opts.MaxTokens
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal completion request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.logger.Info("calling chat completions",
		"url", url,
		"model", c.model,
		"stream", stream,
		"history", len(opts.History),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("completion request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		_ = resp.Body.Close()
		return nil, &domain.UpstreamError{Status: resp.StatusCode, Body: string(body)}
	}

	return resp, nil
}

// buildMessages assembles the message list: optional system message, each
// history entry in order, then the new user message.
func (c *Client) buildMessages(prompt string, opts Options) []models.Message {
	messages := make([]models.Message, 0, len(opts.History)+2)
	if opts.SystemPrompt != "" {
		messages = append(messages, models.Message{Role: "system", Content: opts.SystemPrompt})
	}
	for _, turn := range opts.History {
		messages = append(messages, models.Message{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, models.Message{Role: "user", Content: prompt})
	return messages
}
