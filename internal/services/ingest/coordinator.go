package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lectio/internal/common"
	"github.com/ternarybob/lectio/internal/interfaces"
	"github.com/ternarybob/lectio/internal/models"
	"github.com/ternarybob/lectio/internal/services/chunker"
)

// Coordinator owns document admission and the vectorization lifecycle.
// Ingest admits synchronously (quota and content checks, document persisted
// in processing state) and hands the chunk-embed-store work to a detached
// background job. Terminal writes go through the storage layer's
// conditional update, so a job racing a delete simply has its write
// discarded and a document is terminalized at most once.
type Coordinator struct {
	storage    interfaces.DocumentStorage
	embeddings interfaces.EmbeddingService
	chunker    *chunker.Chunker
	quota      int
	minLength  int
	logger     arbor.ILogger
}

// job is the inspectable handle for one background vectorization task
type job struct {
	documentID string
	done       chan struct{}
}

func (j *job) DocumentID() string    { return j.documentID }
func (j *job) Done() <-chan struct{} { return j.done }

func (j *job) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NewCoordinator creates the ingestion coordinator.
func NewCoordinator(storage interfaces.DocumentStorage, embeddings interfaces.EmbeddingService, cfg *common.Config, logger arbor.ILogger) *Coordinator {
	return &Coordinator{
		storage:    storage,
		embeddings: embeddings,
		chunker:    chunker.New(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap),
		quota:      cfg.Quotas.MaxDocumentsPerOwner,
		minLength:  cfg.Ingest.MinContentLength,
		logger:     logger,
	}
}

// CanAdmit reports whether the owner has quota for another document. It
// lets callers reject an upload before paying for text extraction; Ingest
// re-checks on admission.
func (c *Coordinator) CanAdmit(ctx context.Context, ownerID string) error {
	if ownerID == "" {
		return fmt.Errorf("owner id is required: %w", models.ErrForbidden)
	}

	count, err := c.storage.CountByOwner(ownerID)
	if err != nil {
		return fmt.Errorf("failed to count documents for owner: %w", err)
	}
	if count >= c.quota {
		return fmt.Errorf("owner holds %d of %d documents: %w", count, c.quota, models.ErrQuotaExceeded)
	}
	return nil
}

// Ingest admits a document and starts its background vectorization. On
// success the returned document is in processing state and the returned
// job tracks the detached work; callers are never blocked on embedding.
func (c *Coordinator) Ingest(ctx context.Context, ownerID, title, content string, fileData []byte) (*models.Document, interfaces.IngestJob, error) {
	if len(strings.TrimSpace(content)) < c.minLength {
		return nil, nil, fmt.Errorf("content below %d characters: %w", c.minLength, models.ErrEmptyContent)
	}

	if err := c.CanAdmit(ctx, ownerID); err != nil {
		return nil, nil, err
	}

	if title == "" {
		title = "Untitled document"
	}

	now := time.Now()
	doc := &models.Document{
		ID:        common.NewDocumentID(),
		OwnerID:   ownerID,
		Title:     title,
		Content:   content,
		FileData:  fileData,
		Status:    models.DocumentStatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := c.storage.SaveDocument(doc); err != nil {
		return nil, nil, fmt.Errorf("failed to persist document: %w", err)
	}

	c.logger.Info().
		Str("document_id", doc.ID).
		Str("owner_id", ownerID).
		Int("content_length", len(content)).
		Msg("Document admitted, starting vectorization")

	j := &job{documentID: doc.ID, done: make(chan struct{})}

	// The job deliberately detaches from the request context: an upload
	// response returning does not cancel vectorization.
	common.SafeGo(c.logger, "ingest-"+doc.ID, func() {
		defer close(j.done)
		c.vectorize(context.Background(), doc.ID, content)
	})

	return doc, j, nil
}

// vectorize chunks and embeds the content, then performs exactly one
// conditional terminal write. All failure paths converge on markFailed.
func (c *Coordinator) vectorize(ctx context.Context, documentID, content string) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().
				Str("document_id", documentID).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("Vectorization panicked")
			c.markFailed(documentID)
		}
	}()

	texts, err := c.chunker.Split(content)
	if err != nil {
		c.logger.Warn().
			Err(err).
			Str("document_id", documentID).
			Msg("Chunking failed")
		c.markFailed(documentID)
		return
	}

	vectors, err := c.embeddings.GenerateEmbeddings(ctx, texts)
	if err != nil {
		c.logger.Warn().
			Err(err).
			Str("document_id", documentID).
			Int("chunk_count", len(texts)).
			Msg("Embedding failed")
		c.markFailed(documentID)
		return
	}

	chunks := make([]models.DocumentChunk, len(texts))
	for i := range texts {
		chunks[i] = models.DocumentChunk{Text: texts[i], Vector: vectors[i]}
	}

	ready := models.DocumentStatusReady
	err = c.storage.UpdateDocumentIf(documentID, models.DocumentStatusProcessing, models.DocumentPatch{
		Status: &ready,
		Chunks: chunks,
	})
	if err != nil {
		// Deleted mid-flight or already terminal: the write was discarded,
		// which is the intended outcome.
		c.logger.Warn().
			Err(err).
			Str("document_id", documentID).
			Msg("Terminal ready write discarded")
		return
	}

	c.logger.Info().
		Str("document_id", documentID).
		Int("chunk_count", len(chunks)).
		Msg("Document vectorized and ready")
}

// markFailed performs the conditional terminal write to failed state.
func (c *Coordinator) markFailed(documentID string) {
	failed := models.DocumentStatusFailed
	err := c.storage.UpdateDocumentIf(documentID, models.DocumentStatusProcessing, models.DocumentPatch{
		Status: &failed,
	})
	if err != nil {
		c.logger.Warn().
			Err(err).
			Str("document_id", documentID).
			Msg("Terminal failed write discarded")
	}
}
