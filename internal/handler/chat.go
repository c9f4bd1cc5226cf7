package handler

import (
	"log/slog"
	"net/http"
	"time"

	"lantern/internal/domain/models"
	"lantern/internal/handler/sse"
	"lantern/internal/httputil"
	"lantern/internal/relay"
)

// keepAliveInterval spaces SSE comment frames during quiet stretches
// (retrieval pre-steps, slow prompt processing before the first token).
const keepAliveInterval = 15 * time.Second

// ChatHandler serves the relay's chat endpoints.
type ChatHandler struct {
	relay  *relay.Service
	logger *slog.Logger
}

// NewChatHandler creates a chat handler.
func NewChatHandler(relayService *relay.Service, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{
		relay:  relayService,
		logger: logger,
	}
}

// Chat handles POST /api/chat: validates the request, then streams the
// generation as SSE frames. Validation failures are plain JSON errors;
// anything after the stream opens becomes a terminal error frame.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.relay.ValidateRequest(&req); err != nil {
		respondDomainError(w, err)
		return
	}

	sse.SetHeaders(w)
	writer, err := sse.NewWriter(w)
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.logger.Info("chat stream opened",
		"mode", req.Mode,
		"history", len(req.History),
		"use_rag", req.UseRAG,
	)

	// Keepalives cover the window before the first fragment; the writer is
	// mutexed so the ticker can share it with the relay loop.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(keepAliveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := writer.WriteKeepAlive(); err != nil {
					return
				}
			}
		}
	}()

	if err := h.relay.Stream(r.Context(), &req, writer); err != nil {
		// Already reported on the wire; log the terminal outcome only.
		h.logger.Info("chat stream ended", "outcome", err.Error())
		return
	}
	h.logger.Info("chat stream completed")
}

// syncResponse is the body of a non-streaming completion.
type syncResponse struct {
	Content string `json:"content"`
	Done    bool   `json:"done"`
}

// ChatSync handles POST /api/chat/sync, the non-streaming convenience form.
func (h *ChatHandler) ChatSync(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.relay.ValidateRequest(&req); err != nil {
		respondDomainError(w, err)
		return
	}

	turn, err := h.relay.Generate(r.Context(), &req)
	if err != nil {
		h.logger.Error("sync generation failed", "error", err)
		respondDomainError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, syncResponse{Content: turn.Content, Done: true})
}
