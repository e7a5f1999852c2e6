package embeddings

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lectio/internal/interfaces"
	"github.com/ternarybob/lectio/internal/models"
	"golang.org/x/time/rate"
)

// embeddingService gates access to the vectorization provider. It applies
// a request rate limit ahead of the batch call and enforces the batch
// contract: one vector per input text, input order preserved, failures
// reported as a single error for the whole batch.
type embeddingService struct {
	llm     interfaces.LLMService
	limiter *rate.Limiter
	logger  arbor.ILogger
}

// NewEmbeddingService creates the embedding gateway on top of an LLM
// service. requestsPerSecond of 0 disables rate limiting.
func NewEmbeddingService(llm interfaces.LLMService, requestsPerSecond int, logger arbor.ILogger) interfaces.EmbeddingService {
	var limiter *rate.Limiter
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}

	return &embeddingService{
		llm:     llm,
		limiter: limiter,
		logger:  logger,
	}
}

// GenerateEmbeddings returns one vector per input text in input order.
func (s *embeddingService) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("no texts provided for embedding")
	}
	for i, text := range texts {
		if text == "" {
			return nil, fmt.Errorf("text at position %d is empty", i)
		}
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait cancelled: %w", err)
		}
	}

	vectors, err := s.llm.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("batch embedding failed: %w", err)
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d texts, received %d vectors: %w",
			len(texts), len(vectors), models.ErrUpstream)
	}
	for i, vec := range vectors {
		if len(vec) == 0 {
			return nil, fmt.Errorf("empty vector at position %d: %w", i, models.ErrUpstream)
		}
	}

	s.logger.Debug().
		Int("batch_size", len(texts)).
		Int("vector_dim", len(vectors[0])).
		Msg("Generated embedding batch")

	return vectors, nil
}

// GenerateQueryEmbedding generates the embedding for a single search query.
func (s *embeddingService) GenerateQueryEmbedding(ctx context.Context, query string) ([]float32, error) {
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	vectors, err := s.GenerateEmbeddings(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// IsAvailable reports whether the embedding provider is reachable.
func (s *embeddingService) IsAvailable(ctx context.Context) bool {
	return s.llm.HealthCheck(ctx) == nil
}
