package handler

import (
	"log/slog"
	"net/http"

	"lantern/internal/capabilities"
	"lantern/internal/httputil"
	"lantern/internal/llm"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// ModelsHandler serves model info and health endpoints for the configured
// default upstream.
type ModelsHandler struct {
	probe    *llm.ModelsProbe
	registry *capabilities.Registry
	baseURL  string
	logger   *slog.Logger
}

// NewModelsHandler creates a models handler backed by the given probe. The
// registry supplies provider identity and fallback limits.
func NewModelsHandler(probe *llm.ModelsProbe, registry *capabilities.Registry, baseURL string, logger *slog.Logger) *ModelsHandler {
	return &ModelsHandler{
		probe:    probe,
		registry: registry,
		baseURL:  baseURL,
		logger:   logger,
	}
}

type modelInfoResponse struct {
	*llm.ModelInfo
	Provider string `json:"provider"`
}

// ModelInfo handles GET /api/llm/model: summarizes the first entry of the
// upstream model listing, annotated with the detected provider family.
func (h *ModelsHandler) ModelInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.probe.ModelInfo(r.Context())
	if err != nil {
		h.logger.Error("model info probe failed", "error", err)
		httputil.RespondError(w, http.StatusServiceUnavailable,
			"LLM server unavailable; check that the LLM server is running and the connection URL is correct")
		return
	}

	profile := h.registry.Detect(h.baseURL)
	if info.ContextSize <= 0 {
		info.ContextSize = profile.DefaultContextWindow
	}
	httputil.RespondJSON(w, http.StatusOK, modelInfoResponse{
		ModelInfo: info,
		Provider:  profile.DisplayName,
	})
}

type healthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Upstream string `json:"upstream"`
}

// Health handles GET /health. The upstream field reports LLM reachability
// without failing the health check itself.
func (h *ModelsHandler) Health(w http.ResponseWriter, r *http.Request) {
	upstream := "connected"
	if _, err := h.probe.ModelInfo(r.Context()); err != nil {
		upstream = "unreachable"
	}

	httputil.RespondJSON(w, http.StatusOK, healthResponse{
		Status:   "healthy",
		Version:  Version,
		Upstream: upstream,
	})
}

// Providers handles GET /api/llm/providers: the known provider families in
// detection order.
func (h *ModelsHandler) Providers(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]any{
		"providers": h.registry.List(),
	})
}
