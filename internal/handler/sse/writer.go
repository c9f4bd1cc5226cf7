// Package sse writes the relay's Server-Sent-Events wire format: one
// data: {"content": ...} frame per fragment, a data: {"error": ...} frame as
// a terminal failure, and a data: [DONE] terminator on graceful completion.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// frame is the JSON payload of one relay SSE frame. A frame carries either
// content or an error, never both; an error frame is terminal.
type frame struct {
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Writer emits relay frames over an SSE connection, flushing after every
// frame so tokens render as they arrive. Safe for concurrent use: keepalive
// comments may be written from a ticker goroutine while frames flow.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
}

// NewWriter wraps a ResponseWriter for SSE output. Fails when the writer
// cannot flush, since unflushed SSE defeats incremental rendering.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}
	return &Writer{w: w, flusher: flusher}, nil
}

// SetHeaders configures the response for SSE streaming. Must be called
// before the first write.
func SetHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
}

// WriteContent emits one content frame.
func (s *Writer) WriteContent(text string) error {
	return s.writeFrame(frame{Content: text})
}

// WriteError emits a terminal error frame. The consumer treats any frame
// with an error field as the end of the turn.
func (s *Writer) WriteError(msg string) error {
	return s.writeFrame(frame{Error: msg})
}

// WriteDone emits the stream terminator and flushes.
func (s *Writer) WriteDone() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprint(s.w, "data: [DONE]\n\n"); err != nil {
		return fmt.Errorf("write done frame: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// WriteKeepAlive writes an SSE comment (: keepalive) and flushes.
// Returns error if connection is closed or write fails.
func (s *Writer) WriteKeepAlive() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// SSE spec: Lines starting with : are comments (ignored by client)
	if _, err := fmt.Fprint(s.w, ": keepalive\n\n"); err != nil {
		return fmt.Errorf("write keepalive failed: %w", err)
	}
	s.flusher.Flush()
	return nil
}

func (s *Writer) writeFrame(f frame) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	s.flusher.Flush()
	return nil
}
