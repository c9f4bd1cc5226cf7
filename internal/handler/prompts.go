package handler

import (
	"log/slog"
	"net/http"

	"lantern/internal/httputil"
	"lantern/internal/prompt"
)

// PromptsHandler serves the stored system-prompt templates.
type PromptsHandler struct {
	store  *prompt.Store
	logger *slog.Logger
}

// NewPromptsHandler creates a prompts handler.
func NewPromptsHandler(store *prompt.Store, logger *slog.Logger) *PromptsHandler {
	return &PromptsHandler{
		store:  store,
		logger: logger,
	}
}

// Get handles GET /api/admin/prompts.
func (h *PromptsHandler) Get(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, h.store.Get())
}

// Update handles PUT /api/admin/prompts. Empty fields fall back to the
// compiled-in defaults.
func (h *PromptsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var prompts prompt.Prompts
	if err := httputil.ParseJSON(w, r, &prompts); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Update(prompts); err != nil {
		h.logger.Error("prompt settings update failed", "error", err)
		httputil.RespondError(w, http.StatusInternalServerError, "failed to persist prompt settings")
		return
	}

	h.logger.Info("prompt settings updated")
	httputil.RespondJSON(w, http.StatusOK, h.store.Get())
}
