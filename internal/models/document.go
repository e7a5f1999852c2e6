package models

import (
	"time"
)

// DocumentStatus tracks the vectorization lifecycle of a document
type DocumentStatus string

const (
	// DocumentStatusPending is an internal pre-admission state. It is never
	// persisted: documents are written in processing state directly.
	DocumentStatusPending DocumentStatus = "pending"
	// DocumentStatusProcessing indicates the background vectorization job is in flight
	DocumentStatusProcessing DocumentStatus = "processing"
	// DocumentStatusReady indicates the chunk index is populated and queryable
	DocumentStatusReady DocumentStatus = "ready"
	// DocumentStatusFailed indicates chunking or embedding failed; the index is empty
	DocumentStatusFailed DocumentStatus = "failed"
)

// IsTerminal reports whether the status is a terminal lifecycle state.
// Terminal states are only left by document deletion.
func (s DocumentStatus) IsTerminal() bool {
	return s == DocumentStatusReady || s == DocumentStatusFailed
}

// DocumentChunk is one retrievable passage of a document together with its
// embedding vector. Chunks are written all at once when vectorization
// succeeds; a partially populated index is never visible.
type DocumentChunk struct {
	Text   string    `json:"text"`
	Vector []float32 `json:"vector"`
}

// ScoredChunk pairs a chunk's text with its relevance score for a query
type ScoredChunk struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Document is the central entity: an owner-scoped uploaded document with
// its extracted text, chunk/vector index, summary and chat counter.
type Document struct {
	// Identity
	ID      string `json:"id"`       // doc_<uuid>, immutable
	OwnerID string `json:"owner_id"` // requesting user, immutable

	// Content
	Title    string `json:"title"`
	Content  string `json:"content"`             // extracted plain text, immutable once set
	FileData []byte `json:"file_data,omitempty"` // original uploaded bytes

	// Vector index. Non-empty iff Status == ready.
	Chunks []DocumentChunk `json:"chunks,omitempty"`

	// Lifecycle
	Status DocumentStatus `json:"status"`

	// Overwritten on each successful summarization. Independent of Status.
	Summary string `json:"summary,omitempty"`

	// Incremented by exactly 1 per successful chat turn. Never exceeds the
	// configured chat quota.
	ChatMessageCount int `json:"chat_message_count"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DocumentPatch describes the fields a conditional update may change.
// Nil pointer fields are left untouched.
type DocumentPatch struct {
	Status                *DocumentStatus
	Chunks                []DocumentChunk // applied when Status is patched to ready
	Summary               *string
	ChatMessageCountDelta int

	// ChatMessageLimit bounds a positive delta: the update fails with
	// ErrChatLimitReached when the stored counter is already at or past
	// the limit. Zero means unbounded.
	ChatMessageLimit int
}

// DocumentStats summarizes the stored corpus for operators
type DocumentStats struct {
	TotalDocuments  int       `json:"total_documents"`
	ReadyDocuments  int       `json:"ready_documents"`
	FailedDocuments int       `json:"failed_documents"`
	LastUpdated     time.Time `json:"last_updated"`
}
