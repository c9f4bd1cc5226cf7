// Package relay adapts the upstream client's lazy fragment sequence into the
// wire-level SSE response served to browsers.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"lantern/internal/domain"
	"lantern/internal/domain/models"
	"lantern/internal/llm"
	"lantern/internal/observability"
	"lantern/internal/prompt"
	"lantern/internal/rag"
)

// FrameWriter is the wire surface the relay emits to. The SSE handler
// implements it over an HTTP response; tests implement it over a buffer.
type FrameWriter interface {
	WriteContent(text string) error
	WriteError(msg string) error
	WriteDone() error
}

// ClientFactory builds an upstream client for one turn's LLM config. The
// relay is stateless across requests; every turn carries its own endpoint.
type ClientFactory func(cfg models.LLMConfig, logger *slog.Logger) *llm.Client

// Service drives one relay turn: optional server-side retrieval, prompt
// assembly, upstream streaming, frame emission.
type Service struct {
	prompts   *prompt.Store
	ragClient rag.Client // nil when no retrieval service is configured
	newClient ClientFactory
	metrics   *observability.StreamingMetrics
	logger    *slog.Logger
}

// NewService wires a relay service. ragClient may be nil; retrieval is then
// only possible through request-supplied ragContext.
func NewService(
	prompts *prompt.Store,
	ragClient rag.Client,
	metrics *observability.StreamingMetrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		prompts:   prompts,
		ragClient: ragClient,
		newClient: llm.NewClient,
		metrics:   metrics,
		logger:    logger,
	}
}

// ValidateRequest checks a chat request before any streaming begins.
// Failures here surface as 4xx JSON bodies, never as SSE frames.
func (s *Service) ValidateRequest(req *models.ChatRequest) error {
	err := validation.ValidateStruct(req,
		validation.Field(&req.Message, validation.Required),
		validation.Field(&req.Mode, validation.In(
			models.ModeFree, models.ModeExplain, models.ModeIdea, models.ModeSearch, models.ModeRAG,
		)),
	)
	if err == nil {
		err = validation.ValidateStruct(&req.LLMConfig,
			validation.Field(&req.LLMConfig.BaseURL, validation.Required),
		)
	}
	if err != nil {
		return &domain.ValidationError{Message: err.Error()}
	}
	if req.Mode == models.ModeSearch && len(req.SearchResults) == 0 {
		return &domain.ValidationError{Message: "search mode requires search results"}
	}
	return nil
}

// Stream executes one relay turn against w. The returned error reports the
// terminal outcome for logging; every failure after validation has already
// been written to the wire as an error frame.
func (s *Service) Stream(ctx context.Context, req *models.ChatRequest, w FrameWriter) error {
	start := time.Now()
	status := "success"
	if s.metrics != nil {
		s.metrics.ActiveStreams.Inc()
		defer func() {
			s.metrics.ActiveStreams.Dec()
			s.metrics.RequestsTotal.WithLabelValues("chat", status).Inc()
			s.metrics.StreamDurationSeconds.WithLabelValues(status).Observe(time.Since(start).Seconds())
		}()
	}

	fragments, err := s.openStream(ctx, req)
	if err != nil {
		status = "error"
		s.logger.Error("relay setup failed", "mode", req.Mode, "error", err)
		if writeErr := w.WriteError(err.Error()); writeErr != nil {
			s.logger.Warn("failed to write error frame", "error", writeErr)
		}
		return err
	}

	first := true
	for fragment := range fragments {
		if first && s.metrics != nil {
			s.metrics.FirstFragmentSeconds.Observe(time.Since(start).Seconds())
		}
		first = false

		if err := w.WriteContent(fragment.Text); err != nil {
			// Client went away; stop pulling so the upstream read unwinds.
			status = "cancelled"
			s.logger.Info("client disconnected mid-stream", "error", err)
			return domain.ErrCancelled
		}
	}

	if ctx.Err() != nil {
		status = "cancelled"
		return domain.ErrCancelled
	}

	if err := w.WriteDone(); err != nil {
		status = "cancelled"
		return fmt.Errorf("write stream terminator: %w", err)
	}
	return nil
}

// Generate is the non-streaming form behind POST /api/chat/sync.
func (s *Service) Generate(ctx context.Context, req *models.ChatRequest) (*models.ChatTurn, error) {
	status := "success"
	if s.metrics != nil {
		defer func() {
			s.metrics.RequestsTotal.WithLabelValues("chat_sync", status).Inc()
		}()
	}

	assembled, cfg, err := s.prepare(ctx, req)
	if err != nil {
		status = "error"
		return nil, err
	}

	client := s.newClient(cfg, s.logger)
	turn, err := client.Generate(ctx, assembled.User, llm.Options{
		SystemPrompt: assembled.System,
		History:      req.History,
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxTokens,
	})
	if err != nil {
		status = "error"
		return nil, err
	}
	return turn, nil
}

// openStream runs retrieval and assembly, then opens the upstream stream.
func (s *Service) openStream(ctx context.Context, req *models.ChatRequest) (<-chan models.Fragment, error) {
	assembled, cfg, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	client := s.newClient(cfg, s.logger)
	return client.Stream(ctx, assembled.User, llm.Options{
		SystemPrompt: assembled.System,
		History:      req.History,
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxTokens,
	})
}

// prepare resolves prompts, runs the server-side retrieval pre-step when the
// request asks for it, and assembles the prompt pair.
func (s *Service) prepare(ctx context.Context, req *models.ChatRequest) (prompt.Assembled, models.LLMConfig, error) {
	prompts := s.resolvePrompts(req.SystemPrompts)

	matches := req.RAGContext
	wantsRetrieval := req.UseRAG || req.Mode == models.ModeRAG
	if wantsRetrieval && matches == nil {
		if s.ragClient == nil {
			return prompt.Assembled{}, req.LLMConfig, errors.New("retrieval requested but no retrieval service is configured")
		}
		retrieved, err := s.ragClient.Query(ctx, req.Message, rag.QueryOptions{Category: req.Category})
		if err != nil {
			return prompt.Assembled{}, req.LLMConfig, fmt.Errorf("retrieval pre-step failed: %w", err)
		}
		matches = retrieved
		s.logger.Info("retrieval pre-step completed", "matches", len(matches), "category", req.Category)
	}

	assembled, err := prompt.Assemble(req.Mode, req.Message, prompt.Inputs{
		Prompts:       prompts,
		SearchResults: req.SearchResults,
		RAGMatches:    matches,
	})
	if err != nil {
		return prompt.Assembled{}, req.LLMConfig, err
	}
	return assembled, req.LLMConfig, nil
}

// resolvePrompts layers per-request overrides over the stored templates.
func (s *Service) resolvePrompts(override *models.SystemPrompts) prompt.Prompts {
	prompts := s.prompts.Get()
	if override == nil {
		return prompts
	}
	if override.Common != "" {
		prompts.Common = override.Common
	}
	if override.Explain != "" {
		prompts.Explain = override.Explain
	}
	if override.Idea != "" {
		prompts.Idea = override.Idea
	}
	return prompts
}
