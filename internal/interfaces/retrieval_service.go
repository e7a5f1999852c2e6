package interfaces

import (
	"context"

	"github.com/ternarybob/lectio/internal/models"
)

// RetrievalService selects the document passages most relevant to a query
type RetrievalService interface {
	// Retrieve embeds the query and returns the top-scoring chunks of the
	// document, most relevant first. The document must be ready; otherwise
	// models.ErrNotReady is returned.
	Retrieve(ctx context.Context, doc *models.Document, query string) ([]models.ScoredChunk, error)
}
