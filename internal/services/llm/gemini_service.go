package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lectio/internal/common"
	"github.com/ternarybob/lectio/internal/interfaces"
	"github.com/ternarybob/lectio/internal/models"
	"google.golang.org/genai"
)

// GeminiService implements the LLMService interface using the Google genai
// client. It provides embedding generation and chat completions with Gemini
// models. All provider failures, timeouts included, are wrapped in
// models.ErrUpstream so callers never depend on provider error shapes.
type GeminiService struct {
	config  *common.GeminiConfig
	retry   *RetryConfig
	logger  arbor.ILogger
	client  *genai.Client
	timeout time.Duration
}

// convertMessagesToGemini converts []interfaces.Message to Gemini Content
// format. Maps Role values to the provider's expected values and maintains
// chronological ordering. System messages are extracted separately for use
// with SystemInstruction. Returns the user/model messages, the first system
// message content (if any), and an error.
func convertMessagesToGemini(messages []interfaces.Message) ([]*genai.Content, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("messages cannot be empty")
	}

	hasUserMessage := false
	for _, msg := range messages {
		if msg.Role == "user" {
			hasUserMessage = true
			break
		}
	}
	if !hasUserMessage {
		return nil, "", fmt.Errorf("at least one message must have role 'user'")
	}

	contents := make([]*genai.Content, 0, len(messages))
	var systemText string
	for _, msg := range messages {
		if msg.Role == "system" {
			if systemText == "" {
				systemText = msg.Content
			}
			continue
		}

		var geminiRole string
		switch msg.Role {
		case "assistant":
			geminiRole = genai.RoleModel
		case "user":
			geminiRole = genai.RoleUser
		default:
			geminiRole = genai.RoleUser
		}

		contents = append(contents, &genai.Content{
			Role:  geminiRole,
			Parts: []*genai.Part{genai.NewPartFromText(msg.Content)},
		})
	}

	return contents, systemText, nil
}

// NewGeminiService creates a new Gemini LLM service instance.
func NewGeminiService(config *common.Config, logger arbor.ILogger) (*GeminiService, error) {
	if config.Gemini.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required (set GEMINI_API_KEY or gemini.api_key in config)")
	}

	timeout, err := time.ParseDuration(config.Gemini.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", config.Gemini.Timeout, err)
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  config.Gemini.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	service := &GeminiService{
		config:  &config.Gemini,
		retry:   NewRetryConfig(config.LLM.MaxRetries),
		logger:  logger,
		client:  client,
		timeout: timeout,
	}

	logger.Info().
		Str("embed_model", config.Gemini.EmbeddingModel).
		Str("chat_model", config.Gemini.Model).
		Int("max_retries", config.LLM.MaxRetries).
		Dur("timeout", timeout).
		Msg("Gemini LLM service initialized successfully")

	return service, nil
}

// Embed generates an embedding vector for the given text.
func (s *GeminiService) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty for embedding generation")
	}

	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates one embedding vector per input text in a single API
// call. The result preserves input order and has exactly one vector per
// input; any failure is reported as a single error for the whole batch.
func (s *GeminiService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("texts cannot be empty for embedding generation")
	}

	startTime := time.Now()
	s.logger.Debug().
		Int("batch_size", len(texts)).
		Msg("Starting batch embedding generation")

	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
	}

	var result *genai.EmbedContentResponse
	err := s.withRetry(ctx, "embedding", func(callCtx context.Context) error {
		var callErr error
		result, callErr = s.client.Models.EmbedContent(callCtx, s.config.EmbeddingModel, contents, nil)
		return callErr
	})
	if err != nil {
		s.logger.Error().
			Err(err).
			Int("batch_size", len(texts)).
			Msg("Batch embedding generation failed")
		return nil, fmt.Errorf("embedding generation failed: %w: %w", models.ErrUpstream, err)
	}

	if result == nil || len(result.Embeddings) != len(texts) {
		got := 0
		if result != nil {
			got = len(result.Embeddings)
		}
		return nil, fmt.Errorf("embedding count mismatch: expected %d, got %d: %w", len(texts), got, models.ErrUpstream)
	}

	vectors := make([][]float32, len(texts))
	for i, embedding := range result.Embeddings {
		if embedding == nil || len(embedding.Values) == 0 {
			return nil, fmt.Errorf("empty embedding at position %d: %w", i, models.ErrUpstream)
		}
		vectors[i] = embedding.Values
	}

	s.logger.Info().
		Int("batch_size", len(texts)).
		Int("embedding_dim", len(vectors[0])).
		Dur("duration", time.Since(startTime)).
		Msg("Batch embedding generation completed")

	return vectors, nil
}

// Chat generates a completion response based on the conversation history.
// The messages slice contains the full conversation context in chronological
// order, including system prompts, user messages, and previous assistant
// responses. An empty completion is returned as ("", nil), not as an error.
func (s *GeminiService) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("messages cannot be empty for chat completion")
	}

	geminiContents, systemText, err := convertMessagesToGemini(messages)
	if err != nil {
		return "", fmt.Errorf("failed to convert messages to Gemini format: %w", err)
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(s.config.Temperature),
	}
	if systemText != "" {
		config.SystemInstruction = genai.NewContentFromText(systemText, genai.RoleUser)
	}

	startTime := time.Now()
	s.logger.Debug().
		Int("message_count", len(messages)).
		Msg("Starting chat completion")

	var resp *genai.GenerateContentResponse
	err = s.withRetry(ctx, "chat", func(callCtx context.Context) error {
		var callErr error
		resp, callErr = s.client.Models.GenerateContent(callCtx, s.config.Model, geminiContents, config)
		return callErr
	})
	if err != nil {
		s.logger.Error().
			Err(err).
			Int("message_count", len(messages)).
			Msg("Chat completion failed")
		return "", fmt.Errorf("chat generation failed: %w: %w", models.ErrUpstream, err)
	}

	var response strings.Builder
	if resp != nil && len(resp.Candidates) > 0 {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					response.WriteString(part.Text)
				}
			}
			if response.Len() > 0 {
				break
			}
		}
	}

	s.logger.Info().
		Int("message_count", len(messages)).
		Int("response_length", response.Len()).
		Dur("duration", time.Since(startTime)).
		Msg("Chat completion finished")

	// An empty completion is a valid outcome; callers decide the fallback.
	return response.String(), nil
}

// withRetry runs call under the per-call timeout, retrying up to the
// configured retry count. Rate limit errors use the provider-suggested
// delay when one is present.
func (s *GeminiService) withRetry(ctx context.Context, operation string, call func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= s.retry.MaxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		lastErr = call(callCtx)
		cancel()
		if lastErr == nil {
			return nil
		}

		if attempt == s.retry.MaxRetries {
			break
		}

		backoff := s.retry.CalculateBackoff(attempt, 0)
		if IsRateLimitError(lastErr) {
			backoff = s.retry.CalculateBackoff(attempt, ExtractRetryDelay(lastErr))
		}

		s.logger.Warn().
			Str("operation", operation).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(lastErr).
			Msg("Retrying Gemini API call")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return lastErr
}

// HealthCheck verifies the service is configured and the client is ready.
func (s *GeminiService) HealthCheck(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("gemini client is not initialized")
	}
	if s.config.APIKey == "" {
		return fmt.Errorf("gemini API key is not configured")
	}
	return nil
}

// GetMode returns the operational mode of the LLM service.
func (s *GeminiService) GetMode() interfaces.LLMMode {
	return interfaces.LLMModeCloud
}

// Close releases resources and performs cleanup operations.
func (s *GeminiService) Close() error {
	s.logger.Info().Msg("Closing Gemini LLM service")

	// genai.Client doesn't require explicit Close
	s.client = nil

	return nil
}
