package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lectio/internal/interfaces"
	"github.com/ternarybob/lectio/internal/models"
)

// engine scores a document's chunk index against a query embedding and
// returns the best matches. Scoring is deterministic: equal scores keep
// chunk index order, so the same query against the same document always
// yields the same passages.
type engine struct {
	embeddings interfaces.EmbeddingService
	topK       int
	logger     arbor.ILogger
}

// NewEngine creates a retrieval engine returning at most topK chunks per query.
func NewEngine(embeddings interfaces.EmbeddingService, topK int, logger arbor.ILogger) interfaces.RetrievalService {
	if topK <= 0 {
		topK = 3
	}
	return &engine{
		embeddings: embeddings,
		topK:       topK,
		logger:     logger,
	}
}

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns 0 when either vector has zero magnitude or the dimensions differ,
// so degenerate embeddings rank last instead of poisoning the sort.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Retrieve embeds the query and returns the topK highest-scoring chunks of
// the document, most relevant first.
func (e *engine) Retrieve(ctx context.Context, doc *models.Document, query string) ([]models.ScoredChunk, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is nil: %w", models.ErrNotFound)
	}
	if doc.Status != models.DocumentStatusReady {
		return nil, fmt.Errorf("document %s is %s: %w", doc.ID, doc.Status, models.ErrNotReady)
	}
	if len(doc.Chunks) == 0 {
		return nil, nil
	}

	queryVector, err := e.embeddings.GenerateQueryEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	scored := make([]models.ScoredChunk, 0, len(doc.Chunks))
	for _, chunk := range doc.Chunks {
		scored = append(scored, models.ScoredChunk{
			Text:  chunk.Text,
			Score: CosineSimilarity(queryVector, chunk.Vector),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	k := e.topK
	if k > len(scored) {
		k = len(scored)
	}

	e.logger.Debug().
		Str("document_id", doc.ID).
		Int("chunk_count", len(doc.Chunks)).
		Int("selected", k).
		Msg("Retrieved context passages")

	return scored[:k], nil
}
