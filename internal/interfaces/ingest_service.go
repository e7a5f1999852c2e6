package interfaces

import (
	"context"

	"github.com/ternarybob/lectio/internal/models"
)

// IngestJob is the inspectable handle for a detached vectorization task.
// The caller of Ingest never blocks on it; tests (and operators) can.
type IngestJob interface {
	// DocumentID returns the document this job vectorizes
	DocumentID() string

	// Done is closed when the job has performed (or discarded) its terminal write
	Done() <-chan struct{}

	// Wait blocks until the job finishes or the context is cancelled
	Wait(ctx context.Context) error
}

// IngestService owns the document lifecycle state machine and admission
// quotas. Ingest returns synchronously with the document in processing
// state; vectorization continues in the returned background job. CanAdmit
// is the cheap pre-check: callers run it before expensive extraction work
// so an over-quota upload is rejected without paying for parsing.
type IngestService interface {
	CanAdmit(ctx context.Context, ownerID string) error
	Ingest(ctx context.Context, ownerID, title, content string, fileData []byte) (*models.Document, IngestJob, error)
}
