package main

import (
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"lantern/internal/capabilities"
	"lantern/internal/config"
	"lantern/internal/handler"
	"lantern/internal/llm"
	"lantern/internal/middleware"
	"lantern/internal/observability"
	"lantern/internal/prompt"
	"lantern/internal/rag"
	"lantern/internal/relay"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}

	var logOutput io.Writer = os.Stdout
	if cfg.LogDir != "" {
		logFile, err := config.SetupLogFile(cfg.LogDir, cfg.LogMaxFiles)
		if err != nil {
			log.Fatalf("Failed to setup log file: %v", err)
		}
		defer logFile.Close()
		logOutput = io.MultiWriter(os.Stdout, logFile)
	}

	logger := slog.New(slog.NewJSONHandler(logOutput, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"llm_base_url", cfg.LLMBaseURL,
	)

	// Editable system prompts, hot-reloaded on file change
	promptStore, err := prompt.NewStore(cfg.SettingsPath, logger)
	if err != nil {
		log.Fatalf("Failed to load prompt settings: %v", err)
	}
	if err := promptStore.Watch(); err != nil {
		logger.Warn("prompt settings watch unavailable", "error", err)
	}
	defer func() { _ = promptStore.Close() }()

	// Retrieval is optional; without a service only request-supplied
	// context works.
	var ragClient rag.Client
	if cfg.RAGBaseURL != "" {
		ragClient = rag.NewHTTPClient(cfg.RAGBaseURL)
		logger.Info("retrieval service configured", "base_url", cfg.RAGBaseURL)
	}

	// Provider profiles for probe selection and fallback limits
	registry, err := capabilities.NewRegistry()
	if err != nil {
		log.Fatalf("Failed to load provider profiles: %v", err)
	}

	streamingMetrics := observability.NewStreamingMetrics(prometheus.DefaultRegisterer)

	relayService := relay.NewService(promptStore, ragClient, streamingMetrics, logger)

	probe := llm.NewModelsProbe(cfg.LLMBaseURL, cfg.LLMAPIKey, logger)

	chatHandler := handler.NewChatHandler(relayService, logger)
	modelsHandler := handler.NewModelsHandler(probe, registry, cfg.LLMBaseURL, logger)
	promptsHandler := handler.NewPromptsHandler(promptStore, logger)

	logger.Info("services initialized")

	// HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", modelsHandler.Health)

	// Chat routes
	mux.HandleFunc("POST /api/chat", chatHandler.Chat)
	mux.HandleFunc("POST /api/chat/sync", chatHandler.ChatSync)

	// Model routes
	mux.HandleFunc("GET /api/llm/model", modelsHandler.ModelInfo)
	mux.HandleFunc("GET /api/llm/providers", modelsHandler.Providers)

	// Prompt settings routes
	mux.HandleFunc("GET /api/admin/prompts", promptsHandler.Get)
	mux.HandleFunc("PUT /api/admin/prompts", promptsHandler.Update)

	// Prometheus metrics
	mux.Handle("GET /metrics", promhttp.Handler())

	// Middleware chain: CORS → Recovery → Routes
	var httpHandler http.Handler = mux
	httpHandler = middleware.Recovery(logger)(httpHandler)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
	})
	httpHandler = corsHandler.Handler(httpHandler)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disabled to allow long-lived SSE streams
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}
