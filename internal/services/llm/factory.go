package llm

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lectio/internal/common"
	"github.com/ternarybob/lectio/internal/interfaces"
)

// NewLLMService creates the LLM service implementation selected by
// configuration. Gemini always serves embeddings; the chat side is either
// Gemini itself or Claude composed on top of the Gemini embedding service.
func NewLLMService(cfg *common.Config, logger arbor.ILogger) (interfaces.LLMService, error) {
	if cfg.LLM.Provider != "gemini" && cfg.LLM.Provider != "claude" {
		return nil, fmt.Errorf("invalid LLM provider '%s': must be 'gemini' or 'claude'", cfg.LLM.Provider)
	}

	logger.Info().Str("provider", cfg.LLM.Provider).Msg("Initializing LLM service")

	gemini, err := NewGeminiService(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini service: %w", err)
	}

	if cfg.LLM.Provider == "gemini" {
		return gemini, nil
	}

	claude, err := NewClaudeService(cfg, logger)
	if err != nil {
		gemini.Close()
		return nil, fmt.Errorf("failed to create Claude service: %w", err)
	}

	return &compositeService{
		embedder: gemini,
		chatter:  claude,
	}, nil
}

// compositeService routes embeddings to Gemini and chat to Claude.
type compositeService struct {
	embedder *GeminiService
	chatter  *ClaudeService
}

func (s *compositeService) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.embedder.Embed(ctx, text)
}

func (s *compositeService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return s.embedder.EmbedBatch(ctx, texts)
}

func (s *compositeService) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	return s.chatter.Chat(ctx, messages)
}

func (s *compositeService) HealthCheck(ctx context.Context) error {
	if err := s.embedder.HealthCheck(ctx); err != nil {
		return err
	}
	return s.chatter.HealthCheck(ctx)
}

func (s *compositeService) GetMode() interfaces.LLMMode {
	return interfaces.LLMModeCloud
}

func (s *compositeService) Close() error {
	err := s.chatter.Close()
	if cerr := s.embedder.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
