package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lantern/internal/domain"
	"lantern/internal/domain/models"
	"lantern/internal/metrics"
	"lantern/internal/rag"
)

type fakeSearch struct {
	results []models.SearchResult
	err     error
	calls   int
}

func (f *fakeSearch) Search(ctx context.Context, query string, maxResults int) ([]models.SearchResult, error) {
	f.calls++
	return f.results, f.err
}

type fakeRAG struct {
	matches  []models.RAGMatch
	err      error
	category string
}

func (f *fakeRAG) Query(ctx context.Context, query string, opts rag.QueryOptions) ([]models.RAGMatch, error) {
	f.category = opts.Category
	if f.err != nil {
		return nil, f.err
	}
	return rag.FilterByCategory(f.matches, opts.Category), nil
}

// relayStub serves a fixed frame sequence and counts hits.
func relayStub(t *testing.T, hits *atomic.Int32, frames ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, frame := range frames {
			fmt.Fprintf(w, "data: %s\n\n", frame)
			flusher.Flush()
		}
	}))
}

func TestRunTurnFreeChat(t *testing.T) {
	var hits atomic.Int32
	server := relayStub(t, &hits,
		`{"content":"Hello"}`,
		`{"content":" world"}`,
		`[DONE]`,
	)
	defer server.Close()

	o := NewOrchestrator(nil, nil, NewConsumer(server.URL, testLogger()), testLogger())
	session := NewSession(context.Background(), 4096, 0)

	var states []StepState
	turn, err := o.RunTurn(session, "Say hello", TurnOptions{
		LLMConfig: models.LLMConfig{BaseURL: "http://localhost:8080/v1"},
		OnStatus:  func(s StepState) { states = append(states, s) },
	})
	require.NoError(t, err)
	require.NotNil(t, turn)

	assert.Equal(t, "Hello world", turn.Content)
	assert.Equal(t, "assistant", turn.Role)
	assert.Empty(t, turn.Sources)
	assert.Empty(t, states, "free chat runs no pre-steps")

	snap := session.Metrics()
	assert.Equal(t, 3, snap.OutputTokens) // ceil(len("Hello world")/4)
}

func TestRunTurnSearchMode(t *testing.T) {
	var hits atomic.Int32
	server := relayStub(t, &hits, `{"content":"cited answer"}`, `[DONE]`)
	defer server.Close()

	searchClient := &fakeSearch{results: []models.SearchResult{
		{Title: "Result", URL: "https://r.example", Snippet: "text"},
	}}

	o := NewOrchestrator(searchClient, nil, NewConsumer(server.URL, testLogger()), testLogger())
	session := NewSession(context.Background(), 4096, 0)

	var states []StepState
	turn, err := o.RunTurn(session, "current events", TurnOptions{
		Mode:     models.ModeSearch,
		OnStatus: func(s StepState) { states = append(states, s) },
	})
	require.NoError(t, err)

	assert.Equal(t, []StepState{StateSearching, StateSearchDone}, states)
	assert.Equal(t, searchClient.results, turn.Sources, "sources attach to the completed turn")
	assert.Equal(t, "cited answer", turn.Content)
}

func TestRunTurnSearchNoResultsAbortsBeforeLLM(t *testing.T) {
	var hits atomic.Int32
	server := relayStub(t, &hits, `{"content":"never"}`, `[DONE]`)
	defer server.Close()

	o := NewOrchestrator(&fakeSearch{}, nil, NewConsumer(server.URL, testLogger()), testLogger())
	session := NewSession(context.Background(), 4096, 0)

	var states []StepState
	turn, err := o.RunTurn(session, "obscure query", TurnOptions{
		Mode:     models.ModeSearch,
		OnStatus: func(s StepState) { states = append(states, s) },
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNoResults)
	assert.Nil(t, turn)
	assert.Equal(t, []StepState{StateSearching, StateSearchFailed}, states)
	assert.Zero(t, hits.Load(), "the LLM must never be contacted after an empty search")
}

func TestRunTurnSearchWithoutProvider(t *testing.T) {
	o := NewOrchestrator(nil, nil, NewConsumer("unused", testLogger()), testLogger())
	session := NewSession(context.Background(), 4096, 0)

	_, err := o.RunTurn(session, "query", TurnOptions{Mode: models.ModeSearch})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRunTurnRAGEnabled(t *testing.T) {
	var hits atomic.Int32
	server := relayStub(t, &hits, `{"content":"grounded"}`, `[DONE]`)
	defer server.Close()

	ragClient := &fakeRAG{matches: []models.RAGMatch{
		{Content: "chunk", Metadata: models.RAGMetadata{Filename: "doc.md", Category: "go"}, Score: 0.9},
		{Content: "other", Metadata: models.RAGMetadata{Filename: "misc.md", Category: "misc"}, Score: 0.8},
	}}

	o := NewOrchestrator(nil, ragClient, NewConsumer(server.URL, testLogger()), testLogger())
	session := NewSession(context.Background(), 4096, 0)

	turn, err := o.RunTurn(session, "how do channels work", TurnOptions{
		RAGEnabled: true,
		Category:   "go",
	})
	require.NoError(t, err)

	assert.Equal(t, "go", ragClient.category, "category filter reaches the retrieval client")
	require.Len(t, turn.RAGSources, 1)
	assert.Equal(t, "doc.md", turn.RAGSources[0].Metadata.Filename)
}

func TestRunTurnCancelDuringPreStepSkipsGeneration(t *testing.T) {
	var hits atomic.Int32
	server := relayStub(t, &hits, `{"content":"never"}`, `[DONE]`)
	defer server.Close()

	session := NewSession(context.Background(), 4096, 0)
	searchClient := &cancellingSearch{session: session}

	o := NewOrchestrator(searchClient, nil, NewConsumer(server.URL, testLogger()), testLogger())
	turn, err := o.RunTurn(session, "query", TurnOptions{Mode: models.ModeSearch})

	assert.ErrorIs(t, err, domain.ErrCancelled)
	require.NotNil(t, turn)
	assert.Empty(t, turn.Content)
	assert.Zero(t, hits.Load(), "generation must not start after cancellation")
}

// cancellingSearch cancels its own session while the pre-step runs.
type cancellingSearch struct {
	session *Session
}

func (c *cancellingSearch) Search(ctx context.Context, query string, maxResults int) ([]models.SearchResult, error) {
	c.session.Cancel()
	return []models.SearchResult{{Title: "late", URL: "https://x", Snippet: "s"}}, nil
}

func TestRunTurnCancelMidStreamSalvages(t *testing.T) {
	session := NewSession(context.Background(), 4096, 0)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "data: {\"content\":\"partial answer\"}\n\n")
		flusher.Flush()
		<-r.Context().Done()
	}))
	defer server.Close()

	o := NewOrchestrator(nil, nil, NewConsumer(server.URL, testLogger()), testLogger())

	// Cancel as soon as the first delta lands, then verify the salvage.
	turn, err := o.RunTurn(session, "long question", TurnOptions{
		OnUpdate: func(text string, _ metrics.Snapshot) {
			if text == "partial answer" {
				session.Cancel()
			}
		},
	})
	assert.ErrorIs(t, err, domain.ErrCancelled)
	require.NotNil(t, turn)
	assert.Equal(t, "partial answer"+CancelledSuffix, turn.Content)
}

func TestRunTurnErrorFrame(t *testing.T) {
	var hits atomic.Int32
	server := relayStub(t, &hits, `{"content":"before"}`, `{"error":"model crashed"}`)
	defer server.Close()

	o := NewOrchestrator(nil, nil, NewConsumer(server.URL, testLogger()), testLogger())
	session := NewSession(context.Background(), 4096, 0)

	turn, err := o.RunTurn(session, "q", TurnOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.Nil(t, turn)
	// The partial text stays on the session even though the turn failed.
	assert.Equal(t, "before", session.Text())
}
