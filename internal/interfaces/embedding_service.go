package interfaces

import (
	"context"
)

// EmbeddingService is the gateway to the external vectorization capability
type EmbeddingService interface {
	// GenerateEmbeddings returns one vector per input text, order-preserving,
	// same length as the input. Any provider failure is a single error.
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)

	// GenerateQueryEmbedding generates the embedding for a search query
	GenerateQueryEmbedding(ctx context.Context, query string) ([]float32, error)

	// IsAvailable checks if the embedding provider is reachable
	IsAvailable(ctx context.Context) bool
}
