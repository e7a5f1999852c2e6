package badger

import (
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lectio/internal/interfaces"
	"github.com/ternarybob/lectio/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// DocumentStorage implements the DocumentStorage interface for Badger
type DocumentStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewDocumentStorage creates a new DocumentStorage instance
func NewDocumentStorage(db *BadgerDB, logger arbor.ILogger) interfaces.DocumentStorage {
	return &DocumentStorage{
		db:     db,
		logger: logger,
	}
}

func (s *DocumentStorage) SaveDocument(doc *models.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document ID is required")
	}
	if doc.OwnerID == "" {
		return fmt.Errorf("document owner ID is required")
	}
	// Pending is an internal pre-admission state and is never persisted
	if doc.Status == models.DocumentStatusPending {
		return fmt.Errorf("refusing to persist pending status for document %s", doc.ID)
	}

	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	if err := s.db.Store().Upsert(doc.ID, doc); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

func (s *DocumentStorage) GetDocument(id string) (*models.Document, error) {
	var doc models.Document
	if err := s.db.Store().Get(id, &doc); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("document %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

func (s *DocumentStorage) DeleteDocument(id string) error {
	if err := s.db.Store().Delete(id, &models.Document{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("document %s: %w", id, models.ErrNotFound)
		}
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

func (s *DocumentStorage) ListByOwner(ownerID string) ([]*models.Document, error) {
	var docs []models.Document
	if err := s.db.Store().Find(&docs, badgerhold.Where("OwnerID").Eq(ownerID)); err != nil {
		return nil, fmt.Errorf("failed to list documents by owner: %w", err)
	}

	result := make([]*models.Document, len(docs))
	for i := range docs {
		result[i] = &docs[i]
	}
	return result, nil
}

func (s *DocumentStorage) CountByOwner(ownerID string) (int, error) {
	count, err := s.db.Store().Count(&models.Document{}, badgerhold.Where("OwnerID").Eq(ownerID))
	if err != nil {
		return 0, fmt.Errorf("failed to count documents by owner: %w", err)
	}
	return int(count), nil
}

// UpdateDocumentIf applies patch inside a single Badger transaction,
// conditional on the document's current status. This is the compare-and-swap
// the lifecycle state machine relies on: a vectorization job whose document
// was deleted mid-flight gets ErrNotFound, and a job racing an already
// terminalized document gets ErrStatusConflict. Either way the write is
// discarded, never resurrecting or re-terminalizing a document.
func (s *DocumentStorage) UpdateDocumentIf(id string, expectedStatus models.DocumentStatus, patch models.DocumentPatch) error {
	if patch.Status != nil && *patch.Status == models.DocumentStatusPending {
		return fmt.Errorf("refusing to transition document %s to pending", id)
	}

	err := s.db.Store().Badger().Update(func(tx *badgerdb.Txn) error {
		var doc models.Document
		if err := s.db.Store().TxGet(tx, id, &doc); err != nil {
			if err == badgerhold.ErrNotFound {
				return models.ErrNotFound
			}
			return err
		}

		if expectedStatus != "" && doc.Status != expectedStatus {
			return fmt.Errorf("document %s is %s, expected %s: %w",
				id, doc.Status, expectedStatus, models.ErrStatusConflict)
		}

		if patch.Status != nil {
			doc.Status = *patch.Status
			// Chunks and the ready transition land together; a failed
			// transition leaves the index empty.
			doc.Chunks = patch.Chunks
		}
		if patch.Summary != nil {
			doc.Summary = *patch.Summary
		}
		if patch.ChatMessageCountDelta != 0 {
			// The bound is enforced here, inside the transaction, so two
			// racing turns at limit-1 cannot both land.
			if patch.ChatMessageCountDelta > 0 && patch.ChatMessageLimit > 0 &&
				doc.ChatMessageCount >= patch.ChatMessageLimit {
				return fmt.Errorf("document %s has %d chat messages: %w",
					id, doc.ChatMessageCount, models.ErrChatLimitReached)
			}
			doc.ChatMessageCount += patch.ChatMessageCountDelta
		}
		doc.UpdatedAt = time.Now()

		return s.db.Store().TxUpdate(tx, id, doc)
	})

	if err != nil {
		if err == models.ErrNotFound {
			return fmt.Errorf("document %s: %w", id, models.ErrNotFound)
		}
		return err
	}
	return nil
}

func (s *DocumentStorage) ListStaleProcessing(cutoff time.Time) ([]*models.Document, error) {
	var docs []models.Document
	query := badgerhold.Where("Status").Eq(models.DocumentStatusProcessing).
		And("UpdatedAt").Lt(cutoff)
	if err := s.db.Store().Find(&docs, query); err != nil {
		return nil, fmt.Errorf("failed to list stale processing documents: %w", err)
	}

	result := make([]*models.Document, len(docs))
	for i := range docs {
		result[i] = &docs[i]
	}
	return result, nil
}

func (s *DocumentStorage) GetStats() (*models.DocumentStats, error) {
	total, err := s.db.Store().Count(&models.Document{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	ready, err := s.db.Store().Count(&models.Document{}, badgerhold.Where("Status").Eq(models.DocumentStatusReady))
	if err != nil {
		return nil, fmt.Errorf("failed to count ready documents: %w", err)
	}

	failed, err := s.db.Store().Count(&models.Document{}, badgerhold.Where("Status").Eq(models.DocumentStatusFailed))
	if err != nil {
		return nil, fmt.Errorf("failed to count failed documents: %w", err)
	}

	return &models.DocumentStats{
		TotalDocuments:  int(total),
		ReadyDocuments:  int(ready),
		FailedDocuments: int(failed),
		LastUpdated:     time.Now(),
	}, nil
}
