// Command chat is a terminal client for the relay: it runs the pre-steps,
// streams one answer, and reports token usage. Ctrl-C cancels the stream and
// keeps the partial answer.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"lantern/internal/capabilities"
	"lantern/internal/client"
	"lantern/internal/config"
	"lantern/internal/domain"
	"lantern/internal/domain/models"
	"lantern/internal/llm"
	"lantern/internal/metrics"
	"lantern/internal/rag"
	"lantern/internal/search"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	var (
		server   = flag.String("server", "http://localhost:"+cfg.Port, "relay server root")
		mode     = flag.String("mode", "", "conversation mode: explain, idea, search, rag (empty = free chat)")
		useRAG   = flag.Bool("rag", false, "run the retrieval pre-step in any mode")
		category = flag.String("category", "", "restrict retrieval to one knowledge category")
	)
	flag.Parse()

	message := strings.Join(flag.Args(), " ")
	if message == "" {
		fmt.Fprintln(os.Stderr, "usage: chat [flags] <message>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	logLevel := slog.LevelWarn
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	registry, err := capabilities.NewRegistry()
	if err != nil {
		log.Fatalf("Failed to load provider profiles: %v", err)
	}

	llmCfg := models.LLMConfig{
		BaseURL: cfg.LLMBaseURL,
		APIKey:  cfg.LLMAPIKey,
		Model:   cfg.LLMModel,
	}

	var searchClient search.Client
	if cfg.SearchEndpoint != "" {
		searchClient = search.NewHTTPClient(cfg.SearchEndpoint, cfg.SearchAPIKey)
	}
	var ragClient rag.Client
	if cfg.RAGBaseURL != "" {
		ragClient = rag.NewHTTPClient(cfg.RAGBaseURL)
	}

	consumer := client.NewConsumer(*server+"/api/chat", logger)
	orchestrator := client.NewOrchestrator(searchClient, ragClient, consumer, logger)

	// Resolve the context window up front so usage percentages are honest.
	profile := registry.Detect(cfg.LLMBaseURL)
	window := llm.ResolveContextSize(context.Background(), profile, llmCfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	session := client.NewSession(ctx, window, metrics.EstimateInputTokens(nil, message))

	var printed int
	turn, err := orchestrator.RunTurn(session, message, client.TurnOptions{
		Mode:       models.ConversationMode(*mode),
		LLMConfig:  llmCfg,
		RAGEnabled: *useRAG,
		Category:   *category,
		OnStatus: func(state client.StepState) {
			fmt.Fprintf(os.Stderr, "[%s]\n", state)
		},
		OnUpdate: func(text string, _ metrics.Snapshot) {
			fmt.Print(text[printed:])
			printed = len(text)
		},
	})

	switch {
	case err == nil:
	case errors.Is(err, domain.ErrCancelled):
		fmt.Println()
		fmt.Fprintln(os.Stderr, "cancelled; partial answer kept")
	default:
		fmt.Println()
		log.Fatalf("chat failed: %v", err)
	}

	fmt.Println()
	snap := session.Metrics()
	fmt.Fprintf(os.Stderr, "tokens: %d in / %d out (%.1f%% of %d) at %.1f tok/s in %dms\n",
		snap.InputTokens, snap.OutputTokens, snap.UsagePercent, snap.ContextWindow,
		snap.TokensPerSecond, snap.ElapsedMs)

	if turn != nil && len(turn.Sources) > 0 {
		fmt.Fprintln(os.Stderr, "sources:")
		for _, s := range turn.Sources {
			fmt.Fprintf(os.Stderr, "  - %s (%s)\n", s.Title, s.URL)
		}
	}
}
