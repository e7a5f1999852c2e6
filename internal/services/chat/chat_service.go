package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lectio/internal/common"
	"github.com/ternarybob/lectio/internal/interfaces"
	"github.com/ternarybob/lectio/internal/models"
)

// chatService orchestrates one retrieval-augmented chat turn: ownership
// and quota checks, context retrieval for the latest user question, the
// completion call, and the per-turn counter increment.
//
// The counter moves only after an answer exists. An upstream failure
// leaves the document untouched; an empty completion becomes the fallback
// answer and still consumes a turn.
type chatService struct {
	storage       interfaces.DocumentStorage
	retrieval     interfaces.RetrievalService
	llm           interfaces.LLMService
	chatLimit     int
	historyWindow int
	logger        arbor.ILogger
}

// NewChatService creates the chat orchestrator.
func NewChatService(storage interfaces.DocumentStorage, retrieval interfaces.RetrievalService, llm interfaces.LLMService, cfg *common.Config, logger arbor.ILogger) interfaces.ChatService {
	return &chatService{
		storage:       storage,
		retrieval:     retrieval,
		llm:           llm,
		chatLimit:     cfg.Quotas.MaxChatMessagesPerDoc,
		historyWindow: cfg.Chat.HistoryWindow,
		logger:        logger,
	}
}

// Chat answers the latest user question in the conversation against the
// document's chunk index.
func (s *chatService) Chat(ctx context.Context, req *interfaces.ChatRequest) (*interfaces.ChatResponse, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, fmt.Errorf("messages are required: %w", models.ErrNoQuestion)
	}

	doc, err := s.storage.GetDocument(req.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load document %s: %w", req.DocumentID, err)
	}
	if doc.OwnerID != req.OwnerID {
		return nil, fmt.Errorf("document %s: %w", req.DocumentID, models.ErrForbidden)
	}
	if doc.Status != models.DocumentStatusReady || len(doc.Chunks) == 0 {
		return nil, fmt.Errorf("document %s is %s: %w", req.DocumentID, doc.Status, models.ErrNotReady)
	}
	if doc.ChatMessageCount >= s.chatLimit {
		return nil, fmt.Errorf("chat limit of %d messages reached: %w", s.chatLimit, models.ErrChatLimitReached)
	}

	question := latestUserQuestion(req.Messages)
	if question == "" {
		return nil, fmt.Errorf("conversation has no user message: %w", models.ErrNoQuestion)
	}

	scored, err := s.retrieval.Retrieve(ctx, doc, question)
	if err != nil {
		return nil, fmt.Errorf("context retrieval failed: %w", err)
	}

	passages := make([]string, len(scored))
	for i, chunk := range scored {
		passages[i] = chunk.Text
	}

	answer, err := s.llm.Chat(ctx, s.buildMessages(req.Messages, passages))
	if err != nil {
		// No counter movement on upstream failure
		return nil, fmt.Errorf("completion failed: %w", err)
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		answer = fallbackAnswer
	}

	// The turn consumed provider capacity, so it counts even when the
	// answer is the fallback. No status guard: chat runs on terminal
	// documents only and the counter is independent of lifecycle. The
	// limit is re-checked inside the conditional update; the early check
	// above is only a fast path and two concurrent turns at limit-1 race
	// for the last slot here.
	err = s.storage.UpdateDocumentIf(req.DocumentID, "", models.DocumentPatch{
		ChatMessageCountDelta: 1,
		ChatMessageLimit:      s.chatLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record chat turn: %w", err)
	}

	s.logger.Info().
		Str("document_id", req.DocumentID).
		Int("chat_message_count", doc.ChatMessageCount+1).
		Int("context_passages", len(passages)).
		Msg("Chat turn completed")

	return &interfaces.ChatResponse{
		Answer:           answer,
		ContextPassages:  passages,
		ChatMessageCount: doc.ChatMessageCount + 1,
	}, nil
}

// latestUserQuestion returns the content of the most recent user-authored
// message, or "" when the conversation has none.
func latestUserQuestion(messages []interfaces.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	return ""
}

// buildMessages assembles the provider conversation: the grounding system
// prompt followed by the most recent history window.
func (s *chatService) buildMessages(history []interfaces.Message, passages []string) []interfaces.Message {
	window := history
	if len(window) > s.historyWindow {
		window = window[len(window)-s.historyWindow:]
	}

	messages := make([]interfaces.Message, 0, len(window)+1)
	messages = append(messages, interfaces.Message{
		Role:    "system",
		Content: buildSystemPrompt(passages),
	})
	messages = append(messages, window...)
	return messages
}
