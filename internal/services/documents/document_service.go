package documents

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lectio/internal/interfaces"
	"github.com/ternarybob/lectio/internal/models"
)

// documentService handles owner-scoped document operations outside the
// ingestion lifecycle. Every lookup checks ownership before returning
// anything; a document belonging to another owner is indistinguishable
// from one the caller owns but may not touch only by the error kind.
type documentService struct {
	storage interfaces.DocumentStorage
	logger  arbor.ILogger
}

// NewDocumentService creates the document service.
func NewDocumentService(storage interfaces.DocumentStorage, logger arbor.ILogger) interfaces.DocumentService {
	return &documentService{
		storage: storage,
		logger:  logger,
	}
}

// Get returns the document after an ownership check.
func (s *documentService) Get(ctx context.Context, documentID, ownerID string) (*models.Document, error) {
	doc, err := s.storage.GetDocument(documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load document %s: %w", documentID, err)
	}
	if doc.OwnerID != ownerID {
		return nil, fmt.Errorf("document %s: %w", documentID, models.ErrForbidden)
	}
	return doc, nil
}

// ListByOwner returns all documents belonging to the owner.
func (s *documentService) ListByOwner(ctx context.Context, ownerID string) ([]*models.Document, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("owner id is required: %w", models.ErrForbidden)
	}

	docs, err := s.storage.ListByOwner(ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents for owner: %w", err)
	}
	return docs, nil
}

// GetFile returns the original uploaded bytes after an ownership check.
func (s *documentService) GetFile(ctx context.Context, documentID, ownerID string) ([]byte, error) {
	doc, err := s.Get(ctx, documentID, ownerID)
	if err != nil {
		return nil, err
	}
	if len(doc.FileData) == 0 {
		return nil, fmt.Errorf("document %s has no stored file: %w", documentID, models.ErrNotFound)
	}
	return doc.FileData, nil
}

// Delete removes the document after an ownership check. An in-flight
// vectorization job for it will find its terminal write discarded by the
// storage layer's conditional update.
func (s *documentService) Delete(ctx context.Context, documentID, ownerID string) error {
	if _, err := s.Get(ctx, documentID, ownerID); err != nil {
		return err
	}

	if err := s.storage.DeleteDocument(documentID); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", documentID, err)
	}

	s.logger.Info().
		Str("document_id", documentID).
		Str("owner_id", ownerID).
		Msg("Document deleted")

	return nil
}
