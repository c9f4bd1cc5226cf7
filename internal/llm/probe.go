package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const probeTimeout = 10 * time.Second

// ContextSizeProbe resolves the context window of the loaded model. Each
// provider family exposes the figure behind a different endpoint and shape;
// all variants share this one contract. A false return means the probe could
// not resolve a size and the caller keeps its default.
type ContextSizeProbe interface {
	TryContextSize(ctx context.Context) (int, bool)
}

// PropsProbe reads llama.cpp's GET /props endpoint, which reports the slot
// context size under default_generation_settings.n_ctx.
type PropsProbe struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewPropsProbe creates a probe for a llama.cpp server root.
func NewPropsProbe(baseURL string, logger *slog.Logger) *PropsProbe {
	return &PropsProbe{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: probeTimeout},
		logger:     logger,
	}
}

func (p *PropsProbe) TryContextSize(ctx context.Context) (int, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/props", nil)
	if err != nil {
		return 0, false
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Debug("props probe failed", "error", err)
		return 0, false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, false
	}

	var body struct {
		DefaultGenerationSettings struct {
			NCtx int `json:"n_ctx"`
		} `json:"default_generation_settings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, false
	}
	if body.DefaultGenerationSettings.NCtx <= 0 {
		return 0, false
	}
	return body.DefaultGenerationSettings.NCtx, true
}

// ShowProbe reads Ollama's POST /api/show endpoint. The context length hides
// in two places depending on version: a model_info key ending in
// ".context_length", or a "num_ctx" line in the parameters string.
type ShowProbe struct {
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewShowProbe creates a probe for an Ollama server root and model name.
func NewShowProbe(baseURL, model string, logger *slog.Logger) *ShowProbe {
	return &ShowProbe{
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: probeTimeout},
		logger:     logger,
	}
}

func (p *ShowProbe) TryContextSize(ctx context.Context) (int, bool) {
	payload, err := json.Marshal(map[string]string{"name": p.model})
	if err != nil {
		return 0, false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/show", bytes.NewReader(payload))
	if err != nil {
		return 0, false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Debug("show probe failed", "error", err)
		return 0, false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, false
	}

	var body struct {
		ModelInfo  map[string]any `json:"model_info"`
		Parameters string         `json:"parameters"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, false
	}

	for key, value := range body.ModelInfo {
		if !strings.HasSuffix(key, ".context_length") {
			continue
		}
		if n, ok := value.(float64); ok && n > 0 {
			return int(n), true
		}
	}

	if n, ok := parseNumCtx(body.Parameters); ok {
		return n, true
	}
	return 0, false
}

// parseNumCtx scans an Ollama parameters block for a "num_ctx <n>" line.
func parseNumCtx(parameters string) (int, bool) {
	for _, line := range strings.Split(parameters, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[0] == "num_ctx" {
			if n, err := strconv.Atoi(fields[1]); err == nil && n > 0 {
				return n, true
			}
		}
	}
	return 0, false
}

// ModelsProbe reads the OpenAI-compatible GET /models listing. llama.cpp
// annotates each entry with meta.n_ctx_train, the trained context size.
type ModelsProbe struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewModelsProbe creates a probe for an OpenAI-compatible base URL.
func NewModelsProbe(baseURL, apiKey string, logger *slog.Logger) *ModelsProbe {
	return &ModelsProbe{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: probeTimeout},
		logger:     logger,
	}
}

func (p *ModelsProbe) TryContextSize(ctx context.Context) (int, bool) {
	info, err := p.ModelInfo(ctx)
	if err != nil || info.ContextSize <= 0 {
		return 0, false
	}
	return info.ContextSize, true
}

// ModelInfo describes the currently loaded model as reported by GET /models.
type ModelInfo struct {
	ModelName           string `json:"modelName"`
	ModelPath           string `json:"modelPath"`
	Parameters          int64  `json:"parameters"`
	ParametersFormatted string `json:"parametersFormatted"`
	ContextSize         int    `json:"contextSize"`
}

// ModelInfo fetches the model listing and summarizes the first entry.
func (p *ModelsProbe) ModelInfo(ctx context.Context) (*ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return nil, err
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &modelsProbeError{status: resp.StatusCode}
	}

	var body struct {
		Data []struct {
			ID   string `json:"id"`
			Meta struct {
				NParams   int64 `json:"n_params"`
				NCtxTrain int   `json:"n_ctx_train"`
			} `json:"meta"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	if len(body.Data) == 0 {
		return nil, &modelsProbeError{status: http.StatusNotFound}
	}

	entry := body.Data[0]
	filename := entry.ID
	if i := strings.LastIndex(filename, "/"); i >= 0 {
		filename = filename[i+1:]
	}

	info := &ModelInfo{
		ModelName:           prettifyModelName(filename),
		ModelPath:           filename,
		Parameters:          entry.Meta.NParams,
		ParametersFormatted: formatParams(entry.Meta.NParams),
		ContextSize:         entry.Meta.NCtxTrain,
	}
	return info, nil
}

type modelsProbeError struct {
	status int
}

func (e *modelsProbeError) Error() string {
	return "models listing failed with status " + strconv.Itoa(e.status)
}

// prettifyModelName turns a gguf filename into a display name.
func prettifyModelName(filename string) string {
	name := strings.TrimSuffix(filename, ".gguf")
	if name == "" {
		return "Unknown Model"
	}

	replacer := strings.NewReplacer(
		"google-", "Google ",
		"google_", "Google ",
		"gemma", "Gemma",
		"-it", " Instruct",
		"_it", " Instruct",
		"-", " ",
		"_", " ",
	)
	return strings.TrimSpace(replacer.Replace(name))
}

// formatParams renders a parameter count like "4.5B".
func formatParams(n int64) string {
	if n <= 0 {
		return "Unknown"
	}
	return strconv.FormatFloat(float64(n)/1_000_000_000, 'f', 1, 64) + "B"
}
