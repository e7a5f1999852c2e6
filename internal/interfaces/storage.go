package interfaces

import (
	"time"

	"github.com/ternarybob/lectio/internal/models"
)

// DocumentStorage - interface for document persistence.
//
// UpdateDocumentIf is the sole concurrency primitive the core relies on:
// it applies a patch inside one storage transaction, conditional on the
// document's current status. A background job racing a delete, or a second
// job attempting to terminalize an already terminal document, gets
// models.ErrNotFound / models.ErrStatusConflict and its write is discarded.
type DocumentStorage interface {
	// CRUD operations
	SaveDocument(doc *models.Document) error
	GetDocument(id string) (*models.Document, error)
	DeleteDocument(id string) error

	// Owner-scoped operations
	ListByOwner(ownerID string) ([]*models.Document, error)
	CountByOwner(ownerID string) (int, error)

	// UpdateDocumentIf applies patch to the document iff its current status
	// equals expectedStatus. Pass an empty expectedStatus to skip the status
	// guard (counter and summary writes). Returns models.ErrNotFound if the
	// document is gone and models.ErrStatusConflict if the guard fails. A
	// positive counter delta carrying a ChatMessageLimit is rejected with
	// models.ErrChatLimitReached when the stored counter is already at the
	// limit, so concurrent turns cannot push it past the quota.
	UpdateDocumentIf(id string, expectedStatus models.DocumentStatus, patch models.DocumentPatch) error

	// ListStaleProcessing returns documents stuck in processing since before
	// the cutoff (crash recovery for lost background jobs).
	ListStaleProcessing(cutoff time.Time) ([]*models.Document, error)

	// Stats operations
	GetStats() (*models.DocumentStats, error)
}

// StorageManager - composite interface for all storage operations
type StorageManager interface {
	DocumentStorage() DocumentStorage
	Close() error
}
