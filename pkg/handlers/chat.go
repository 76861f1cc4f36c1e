package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hodlisma/hodlisma-engine/pkg/llm"
)

// ChatRequest for POST /api/chat
type ChatRequest struct {
	Messages []llm.Message `json:"messages"`
}

// ChatHandler serves the portfolio assistant.
type ChatHandler struct {
	chat   llm.ChatService
	logger *zap.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(chat llm.ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, logger: logger}
}

// RegisterRoutes registers the chat handler's routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.Chat)
}

// Chat handles POST /api/chat. Provider outages are answered with 503.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	result, err := h.chat.Chat(r.Context(), req.Messages)
	switch {
	case err == nil:
		writeData(w, http.StatusOK, result, h.logger)
	case errors.Is(err, llm.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "llm_not_configured", "AI assistant is not configured", h.logger)
	case llm.IsRetryable(err):
		h.logger.Warn("Chat provider unavailable", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "llm_busy", "AI agent is currently busy. Please try again.", h.logger)
	default:
		writeServiceError(w, err, "chat_failed", h.logger)
	}
}
