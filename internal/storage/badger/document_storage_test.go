package badger

import (
	"errors"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lectio/internal/interfaces"
	"github.com/ternarybob/lectio/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

func newTestStorage(t *testing.T) interfaces.DocumentStorage {
	t.Helper()

	tmpDir := t.TempDir()

	options := badgerhold.DefaultOptions
	options.Dir = tmpDir
	options.ValueDir = tmpDir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	db := &BadgerDB{store: store}
	return NewDocumentStorage(db, arbor.NewLogger())
}

func processingDoc(id, owner string) *models.Document {
	return &models.Document{
		ID:      id,
		OwnerID: owner,
		Title:   "notes.pdf",
		Content: "some extracted text",
		Status:  models.DocumentStatusProcessing,
	}
}

func TestSaveAndGetDocument(t *testing.T) {
	storage := newTestStorage(t)

	doc := processingDoc("doc-1", "user-1")
	if err := storage.SaveDocument(doc); err != nil {
		t.Fatalf("Failed to save document: %v", err)
	}

	got, err := storage.GetDocument("doc-1")
	if err != nil {
		t.Fatalf("Failed to get document: %v", err)
	}
	if got.OwnerID != "user-1" {
		t.Errorf("Expected owner user-1, got %s", got.OwnerID)
	}
	if got.Status != models.DocumentStatusProcessing {
		t.Errorf("Expected processing status, got %s", got.Status)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("Expected timestamps to be set on save")
	}
}

func TestGetDocument_NotFound(t *testing.T) {
	storage := newTestStorage(t)

	_, err := storage.GetDocument("missing")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSaveDocument_RejectsPending(t *testing.T) {
	storage := newTestStorage(t)

	doc := processingDoc("doc-1", "user-1")
	doc.Status = models.DocumentStatusPending
	if err := storage.SaveDocument(doc); err == nil {
		t.Error("Expected error persisting pending status")
	}
}

func TestCountByOwner(t *testing.T) {
	storage := newTestStorage(t)

	for _, id := range []string{"a", "b", "c"} {
		if err := storage.SaveDocument(processingDoc(id, "user-1")); err != nil {
			t.Fatal(err)
		}
	}
	if err := storage.SaveDocument(processingDoc("d", "user-2")); err != nil {
		t.Fatal(err)
	}

	count, err := storage.CountByOwner("user-1")
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("Expected 3 documents for user-1, got %d", count)
	}

	count, err = storage.CountByOwner("user-3")
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("Expected 0 documents for user-3, got %d", count)
	}
}

func TestUpdateDocumentIf_ReadyTransition(t *testing.T) {
	storage := newTestStorage(t)

	if err := storage.SaveDocument(processingDoc("doc-1", "user-1")); err != nil {
		t.Fatal(err)
	}

	ready := models.DocumentStatusReady
	chunks := []models.DocumentChunk{
		{Text: "chunk one", Vector: []float32{0.1, 0.2}},
		{Text: "chunk two", Vector: []float32{0.3, 0.4}},
	}
	err := storage.UpdateDocumentIf("doc-1", models.DocumentStatusProcessing, models.DocumentPatch{
		Status: &ready,
		Chunks: chunks,
	})
	if err != nil {
		t.Fatalf("Conditional update failed: %v", err)
	}

	got, err := storage.GetDocument("doc-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.DocumentStatusReady {
		t.Errorf("Expected ready status, got %s", got.Status)
	}
	if len(got.Chunks) != 2 {
		t.Errorf("Expected 2 chunks, got %d", len(got.Chunks))
	}
}

func TestUpdateDocumentIf_StatusConflict(t *testing.T) {
	storage := newTestStorage(t)

	if err := storage.SaveDocument(processingDoc("doc-1", "user-1")); err != nil {
		t.Fatal(err)
	}

	// First job terminalizes the document
	failed := models.DocumentStatusFailed
	err := storage.UpdateDocumentIf("doc-1", models.DocumentStatusProcessing, models.DocumentPatch{Status: &failed})
	if err != nil {
		t.Fatal(err)
	}

	// Second job's terminal write must be rejected
	ready := models.DocumentStatusReady
	err = storage.UpdateDocumentIf("doc-1", models.DocumentStatusProcessing, models.DocumentPatch{
		Status: &ready,
		Chunks: []models.DocumentChunk{{Text: "x", Vector: []float32{1}}},
	})
	if !errors.Is(err, models.ErrStatusConflict) {
		t.Errorf("Expected ErrStatusConflict, got %v", err)
	}

	got, err := storage.GetDocument("doc-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.DocumentStatusFailed {
		t.Errorf("Document was re-terminalized to %s", got.Status)
	}
	if len(got.Chunks) != 0 {
		t.Errorf("Failed document must have no chunks, got %d", len(got.Chunks))
	}
}

func TestUpdateDocumentIf_DeletedDocument(t *testing.T) {
	storage := newTestStorage(t)

	if err := storage.SaveDocument(processingDoc("doc-1", "user-1")); err != nil {
		t.Fatal(err)
	}
	if err := storage.DeleteDocument("doc-1"); err != nil {
		t.Fatal(err)
	}

	// The background job's terminal write must not resurrect the document
	ready := models.DocumentStatusReady
	err := storage.UpdateDocumentIf("doc-1", models.DocumentStatusProcessing, models.DocumentPatch{
		Status: &ready,
		Chunks: []models.DocumentChunk{{Text: "x", Vector: []float32{1}}},
	})
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	if _, err := storage.GetDocument("doc-1"); !errors.Is(err, models.ErrNotFound) {
		t.Error("Deleted document was resurrected by a discarded write")
	}
}

func TestUpdateDocumentIf_CounterAndSummary(t *testing.T) {
	storage := newTestStorage(t)

	if err := storage.SaveDocument(processingDoc("doc-1", "user-1")); err != nil {
		t.Fatal(err)
	}

	// Counter increments without a status guard
	for i := 0; i < 3; i++ {
		err := storage.UpdateDocumentIf("doc-1", "", models.DocumentPatch{ChatMessageCountDelta: 1})
		if err != nil {
			t.Fatalf("Counter increment %d failed: %v", i, err)
		}
	}

	summary := "a short summary"
	if err := storage.UpdateDocumentIf("doc-1", "", models.DocumentPatch{Summary: &summary}); err != nil {
		t.Fatalf("Summary update failed: %v", err)
	}

	got, err := storage.GetDocument("doc-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ChatMessageCount != 3 {
		t.Errorf("Expected counter 3, got %d", got.ChatMessageCount)
	}
	if got.Summary != summary {
		t.Errorf("Expected summary %q, got %q", summary, got.Summary)
	}
	// Summary and counter writes must not disturb the lifecycle
	if got.Status != models.DocumentStatusProcessing {
		t.Errorf("Status changed to %s by a field patch", got.Status)
	}
}

func TestUpdateDocumentIf_CounterBound(t *testing.T) {
	storage := newTestStorage(t)

	if err := storage.SaveDocument(processingDoc("doc-1", "user-1")); err != nil {
		t.Fatal(err)
	}

	// First two increments fill the quota
	for i := 0; i < 2; i++ {
		err := storage.UpdateDocumentIf("doc-1", "", models.DocumentPatch{
			ChatMessageCountDelta: 1,
			ChatMessageLimit:      2,
		})
		if err != nil {
			t.Fatalf("Increment %d failed: %v", i, err)
		}
	}

	// The counter is at the limit; the next increment must be rejected
	// inside the transaction, not by a caller-side read.
	err := storage.UpdateDocumentIf("doc-1", "", models.DocumentPatch{
		ChatMessageCountDelta: 1,
		ChatMessageLimit:      2,
	})
	if !errors.Is(err, models.ErrChatLimitReached) {
		t.Errorf("Expected ErrChatLimitReached, got %v", err)
	}

	got, err := storage.GetDocument("doc-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ChatMessageCount != 2 {
		t.Errorf("Counter exceeded its bound: %d", got.ChatMessageCount)
	}
}

func TestListStaleProcessing(t *testing.T) {
	storage := newTestStorage(t)

	if err := storage.SaveDocument(processingDoc("old", "user-1")); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	cutoff := time.Now()
	time.Sleep(20 * time.Millisecond)
	if err := storage.SaveDocument(processingDoc("fresh", "user-1")); err != nil {
		t.Fatal(err)
	}

	stale, err := storage.ListStaleProcessing(cutoff)
	if err != nil {
		t.Fatal(err)
	}
	if len(stale) != 1 || stale[0].ID != "old" {
		t.Errorf("Expected only the old document to be stale, got %d results", len(stale))
	}
}
