package models

import (
	"errors"
)

// Error taxonomy for the ingestion-to-retrieval core. Services wrap these
// with fmt.Errorf("...: %w", err); callers test with errors.Is.
var (
	// ErrEmptyContent - uploaded text is missing or below the minimum length
	ErrEmptyContent = errors.New("document content is empty or too short to process")

	// ErrQuotaExceeded - owner already holds the maximum number of documents
	ErrQuotaExceeded = errors.New("document quota exceeded")

	// ErrForbidden - the caller does not own the document
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound - the document does not exist
	ErrNotFound = errors.New("document not found")

	// ErrNotReady - the chunk index has not been built yet
	ErrNotReady = errors.New("document not ready")

	// ErrChatLimitReached - the per-document chat message quota is exhausted
	ErrChatLimitReached = errors.New("chat message limit reached")

	// ErrNoQuestion - the conversation contains no user-authored message
	ErrNoQuestion = errors.New("no user message found")

	// ErrUpstream - embedding or completion provider failure (incl. timeout)
	ErrUpstream = errors.New("upstream provider error")

	// ErrStatusConflict - a conditional update found the document in an
	// unexpected lifecycle state; the write was discarded
	ErrStatusConflict = errors.New("document status conflict")
)
