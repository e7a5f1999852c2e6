package summary

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lectio/internal/common"
	"github.com/ternarybob/lectio/internal/interfaces"
	"github.com/ternarybob/lectio/internal/models"
)

// summaryPromptTemplate asks for a concise summary of the truncated text
const summaryPromptTemplate = "Provide a concise summary of the following text:\n\n%s"

// summaryService generates on-demand document summaries from the raw
// extracted text. It does not depend on the vector index, so summaries
// work for documents still processing or failed. Each call overwrites
// the stored summary; repeating a call only refreshes it.
type summaryService struct {
	storage  interfaces.DocumentStorage
	llm      interfaces.LLMService
	maxChars int
	logger   arbor.ILogger
}

// NewSummaryService creates the summarizer.
func NewSummaryService(storage interfaces.DocumentStorage, llm interfaces.LLMService, cfg *common.Config, logger arbor.ILogger) interfaces.SummaryService {
	return &summaryService{
		storage:  storage,
		llm:      llm,
		maxChars: cfg.Chat.SummaryMaxChars,
		logger:   logger,
	}
}

// Summarize generates and persists a fresh summary of the document.
func (s *summaryService) Summarize(ctx context.Context, documentID, ownerID string) (string, error) {
	doc, err := s.storage.GetDocument(documentID)
	if err != nil {
		return "", fmt.Errorf("failed to load document %s: %w", documentID, err)
	}
	if doc.OwnerID != ownerID {
		return "", fmt.Errorf("document %s: %w", documentID, models.ErrForbidden)
	}

	text := doc.Content
	if len(text) > s.maxChars {
		// Back the cut off to a rune boundary; a split multi-byte
		// character would send invalid UTF-8 to the provider.
		cut := s.maxChars
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}

	answer, err := s.llm.Chat(ctx, []interfaces.Message{
		{Role: "user", Content: fmt.Sprintf(summaryPromptTemplate, text)},
	})
	if err != nil {
		return "", fmt.Errorf("summarization failed: %w", err)
	}

	summary := strings.TrimSpace(answer)
	if summary == "" {
		return "", fmt.Errorf("empty summary from provider: %w", models.ErrUpstream)
	}

	// Overwrite unconditionally; the summary is independent of lifecycle
	err = s.storage.UpdateDocumentIf(documentID, "", models.DocumentPatch{
		Summary: &summary,
	})
	if err != nil {
		return "", fmt.Errorf("failed to persist summary: %w", err)
	}

	s.logger.Info().
		Str("document_id", documentID).
		Int("input_chars", len(text)).
		Int("summary_chars", len(summary)).
		Msg("Document summarized")

	return summary, nil
}
