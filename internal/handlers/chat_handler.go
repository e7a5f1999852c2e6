package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lectio/internal/interfaces"
)

// ChatHandler handles retrieval-augmented chat and summarization requests
type ChatHandler struct {
	chatService    interfaces.ChatService
	summaryService interfaces.SummaryService
	llmService     interfaces.LLMService
	logger         arbor.ILogger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(
	chatService interfaces.ChatService,
	summaryService interfaces.SummaryService,
	llmService interfaces.LLMService,
	logger arbor.ILogger,
) *ChatHandler {
	return &ChatHandler{
		chatService:    chatService,
		summaryService: summaryService,
		llmService:     llmService,
		logger:         logger,
	}
}

// ChatHandler handles POST /api/documents/{id}/chat requests.
func (h *ChatHandler) ChatHandler(w http.ResponseWriter, r *http.Request, documentID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	ownerID := RequireOwner(w, r)
	if ownerID == "" {
		return
	}

	var req interfaces.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to decode chat request")
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Messages) == 0 {
		WriteError(w, http.StatusBadRequest, "Messages array is required")
		return
	}

	req.DocumentID = documentID
	req.OwnerID = ownerID

	h.logger.Info().
		Str("document_id", documentID).
		Int("message_count", len(req.Messages)).
		Msg("Processing chat request")

	response, err := h.chatService.Chat(r.Context(), &req)
	if err != nil {
		h.logger.Warn().Err(err).Str("document_id", documentID).Msg("Chat turn failed")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, response)
}

// SummarizeHandler handles POST /api/documents/{id}/summarize requests.
func (h *ChatHandler) SummarizeHandler(w http.ResponseWriter, r *http.Request, documentID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	ownerID := RequireOwner(w, r)
	if ownerID == "" {
		return
	}

	summary, err := h.summaryService.Summarize(r.Context(), documentID, ownerID)
	if err != nil {
		h.logger.Warn().Err(err).Str("document_id", documentID).Msg("Summarization failed")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"summary": summary,
	})
}

// HealthHandler handles GET /api/chat/health requests.
func (h *ChatHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	if err := h.llmService.HealthCheck(r.Context()); err != nil {
		h.logger.Warn().Err(err).Msg("LLM service health check failed")
		WriteJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"healthy": false,
			"mode":    h.llmService.GetMode(),
			"error":   err.Error(),
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"healthy": true,
		"mode":    h.llmService.GetMode(),
	})
}
