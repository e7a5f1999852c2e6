package interfaces

import (
	"context"

	"github.com/ternarybob/lectio/internal/models"
)

// DocumentService handles owner-scoped document operations outside the
// ingestion lifecycle: listing, lookup, file access and deletion.
type DocumentService interface {
	// Get returns the document after an ownership check
	Get(ctx context.Context, documentID, ownerID string) (*models.Document, error)

	// ListByOwner returns all documents belonging to the owner
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Document, error)

	// GetFile returns the original uploaded bytes after an ownership check
	GetFile(ctx context.Context, documentID, ownerID string) ([]byte, error)

	// Delete removes the document. An in-flight vectorization job for it
	// will find its terminal write discarded by the conditional update.
	Delete(ctx context.Context, documentID, ownerID string) error
}
