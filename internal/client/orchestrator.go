package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"lantern/internal/domain"
	"lantern/internal/domain/models"
	"lantern/internal/metrics"
	"lantern/internal/rag"
	"lantern/internal/search"
)

// StepState is the observable phase of a turn's pre-steps.
type StepState string

const (
	StateIdle           StepState = "idle"
	StateSearching      StepState = "searching"
	StateSearchDone     StepState = "search_done"
	StateSearchFailed   StepState = "search_failed"
	StateRetrieving     StepState = "retrieving"
	StateRetrieveDone   StepState = "retrieve_done"
	StateRetrieveFailed StepState = "retrieve_failed"
)

// TurnOptions configure one conversation turn.
type TurnOptions struct {
	Mode      models.ConversationMode
	LLMConfig models.LLMConfig
	History   []models.ChatTurn

	// RAGEnabled runs the retrieval pre-step regardless of mode.
	RAGEnabled bool
	// Category narrows retrieval to one knowledge tag when set.
	Category string

	// ContextWindow for usage metrics; 0 uses the default until a
	// capability probe has resolved the real figure.
	ContextWindow int

	// OnStatus observes pre-step transitions; OnUpdate observes every
	// content arrival with the text so far and fresh metrics. Both may be
	// nil.
	OnStatus func(state StepState)
	OnUpdate func(text string, snap metrics.Snapshot)
}

// Orchestrator runs the optional pre-steps and the generation for one turn,
// strictly in sequence: a pre-step failure aborts the turn before the LLM is
// ever contacted, and either step is a no-op when not requested.
type Orchestrator struct {
	search   search.Client // nil when web search is not configured
	rag      rag.Client    // nil when retrieval is not configured
	consumer *Consumer
	logger   *slog.Logger
}

// NewOrchestrator wires an orchestrator. Either pre-step client may be nil.
func NewOrchestrator(searchClient search.Client, ragClient rag.Client, consumer *Consumer, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		search:   searchClient,
		rag:      ragClient,
		consumer: consumer,
		logger:   logger,
	}
}

// RunTurn executes one full turn under the session's cancellation token and
// returns the completed assistant turn. A cancelled turn returns the
// salvaged partial turn alongside domain.ErrCancelled; pre-step and stream
// failures return a nil turn and the terminal error.
func (o *Orchestrator) RunTurn(session *Session, message string, opts TurnOptions) (*models.ChatTurn, error) {
	ctx := session.Context()
	notify := opts.OnStatus
	if notify == nil {
		notify = func(StepState) {}
	}

	var results []models.SearchResult
	if opts.Mode == models.ModeSearch {
		notify(StateSearching)
		found, err := o.runSearch(ctx, message)
		if err != nil {
			notify(StateSearchFailed)
			return nil, err
		}
		notify(StateSearchDone)
		results = found
	}

	var ragMatches []models.RAGMatch
	if opts.RAGEnabled || opts.Mode == models.ModeRAG {
		notify(StateRetrieving)
		matches, err := o.runRetrieval(ctx, message, opts.Category)
		if err != nil {
			notify(StateRetrieveFailed)
			return nil, err
		}
		notify(StateRetrieveDone)
		ragMatches = matches
	}

	// Cancellation during a pre-step must prevent generation entirely.
	if ctx.Err() != nil {
		turn, _ := session.Salvage()
		return &turn, domain.ErrCancelled
	}

	req := &models.ChatRequest{
		Message:       message,
		Mode:          opts.Mode,
		LLMConfig:     opts.LLMConfig,
		SearchResults: results,
		RAGContext:    ragMatches,
		History:       opts.History,
		UseRAG:        opts.RAGEnabled,
		Category:      opts.Category,
	}

	streamErr := o.consumer.Stream(ctx, req, func(delta string) {
		text, snap := session.Apply(delta)
		if opts.OnUpdate != nil {
			opts.OnUpdate(text, snap)
		}
	})

	switch {
	case streamErr == nil:
		turn, snap := session.Finish()
		turn.Sources = results
		turn.RAGSources = ragMatches
		if opts.OnUpdate != nil {
			opts.OnUpdate(turn.Content, snap)
		}
		return &turn, nil

	case errors.Is(streamErr, domain.ErrCancelled):
		turn, snap := session.Salvage()
		turn.Sources = results
		turn.RAGSources = ragMatches
		if opts.OnUpdate != nil {
			opts.OnUpdate(turn.Content, snap)
		}
		return &turn, domain.ErrCancelled

	default:
		return nil, streamErr
	}
}

// runSearch executes the web-search pre-step. Zero results abort the turn.
func (o *Orchestrator) runSearch(ctx context.Context, query string) ([]models.SearchResult, error) {
	if o.search == nil {
		return nil, &domain.ValidationError{Message: "search mode requires a configured search provider"}
	}

	results, err := o.search.Search(ctx, query, search.DefaultMaxResults)
	if err != nil {
		if ctx.Err() != nil {
			return nil, domain.ErrCancelled
		}
		return nil, fmt.Errorf("search pre-step failed: %w", err)
	}
	if len(results) == 0 {
		return nil, &domain.NoResultsError{Query: query}
	}

	o.logger.Info("search pre-step completed", "results", len(results))
	return results, nil
}

// runRetrieval executes the RAG pre-step. Zero matches are not a failure;
// the prompt assembler tells the model no knowledge was found.
func (o *Orchestrator) runRetrieval(ctx context.Context, query, category string) ([]models.RAGMatch, error) {
	if o.rag == nil {
		return nil, &domain.ValidationError{Message: "retrieval requires a configured RAG service"}
	}

	matches, err := o.rag.Query(ctx, query, rag.QueryOptions{Category: category})
	if err != nil {
		if ctx.Err() != nil {
			return nil, domain.ErrCancelled
		}
		return nil, fmt.Errorf("retrieval pre-step failed: %w", err)
	}

	o.logger.Info("retrieval pre-step completed", "matches", len(matches), "category", category)
	return matches, nil
}
