// Package client is the consuming side of the relay: it reads the SSE
// response incrementally, reassembles display text, drives live metrics,
// and orchestrates the pre-steps that run before generation.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"lantern/internal/domain"
	"lantern/internal/llm"
)

// StreamError is the terminal failure carried by a relay error frame.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string { return e.Message }

// Is allows errors.Is() matching against the upstream sentinel: an error
// frame always originates from an upstream or pre-step failure on the relay.
func (e *StreamError) Is(target error) bool { return target == domain.ErrUpstream }

// relayFrame mirrors the wire payload of one relay SSE frame.
type relayFrame struct {
	Content string `json:"content"`
	Error   string `json:"error"`
}

// Consumer reads relay SSE responses.
type Consumer struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewConsumer creates a consumer for the relay chat endpoint.
func NewConsumer(endpoint string, logger *slog.Logger) *Consumer {
	return &Consumer{
		endpoint: endpoint,
		// No timeout: the stream stays open for the whole generation and
		// is bounded by the session context.
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// Stream posts req to the relay and consumes the SSE response, invoking
// onDelta for every content fragment as it arrives. It returns when the
// terminator arrives, an error frame arrives, or ctx is cancelled.
// Cancellation is reported as domain.ErrCancelled, never as a failure.
func (c *Consumer) Stream(ctx context.Context, req any, onDelta func(delta string)) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return domain.ErrCancelled
		}
		return fmt.Errorf("chat request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return &domain.UpstreamError{Status: resp.StatusCode, Body: string(body)}
	}

	return c.consume(ctx, resp.Body, onDelta)
}

// consume runs the frame loop over an open SSE body. Split out so tests can
// feed arbitrary byte streams without a server.
func (c *Consumer) consume(ctx context.Context, body io.Reader, onDelta func(delta string)) error {
	var lineBuf llm.LineBuffer
	buf := make([]byte, 4096)

	for {
		// Cooperative cancellation: cease reading further chunks. The
		// request context also tears down the underlying connection.
		select {
		case <-ctx.Done():
			return domain.ErrCancelled
		default:
		}

		n, readErr := body.Read(buf)
		if n > 0 {
			for _, line := range lineBuf.Feed(buf[:n]) {
				done, err := c.applyLine(line, onDelta)
				if err != nil || done {
					return err
				}
			}
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return domain.ErrCancelled
			}
			if readErr == io.EOF {
				// Upstream closed without a terminator; treat what we
				// have as complete rather than discarding it.
				return nil
			}
			return fmt.Errorf("read stream: %w", readErr)
		}
	}
}

// applyLine parses one logical line. done is true on the [DONE] terminator;
// a frame with an error field is the terminal failure for the turn.
func (c *Consumer) applyLine(line string, onDelta func(delta string)) (done bool, err error) {
	if line == "" {
		return false, nil
	}
	payload, ok := llm.CutData(line)
	if !ok {
		return false, nil
	}
	if payload == llm.DoneSentinel {
		return true, nil
	}

	var f relayFrame
	if jsonErr := json.Unmarshal([]byte(payload), &f); jsonErr != nil {
		// Malformed lines are skipped, never fatal.
		c.logger.Debug("skipping malformed relay frame", "error", jsonErr)
		return false, nil
	}
	if f.Error != "" {
		return true, &StreamError{Message: f.Error}
	}
	if f.Content != "" {
		onDelta(f.Content)
	}
	return false, nil
}
