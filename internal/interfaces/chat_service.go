package interfaces

import (
	"context"
)

// ChatRequest is one retrieval-augmented chat turn against a document
type ChatRequest struct {
	// Document to chat with
	DocumentID string `json:"document_id"`

	// Requesting user (ownership is checked against the document)
	OwnerID string `json:"-"`

	// Conversation history in chronological order, including the latest
	// user message. The most recent user-authored message is the query.
	Messages []Message `json:"messages" validate:"required,min=1"`
}

// ChatResponse carries the grounded answer for one turn
type ChatResponse struct {
	// Generated answer text (markdown)
	Answer string `json:"answer"`

	// Passages used as grounding context, most relevant first
	ContextPassages []string `json:"context_passages,omitempty"`

	// Messages consumed so far on this document, after this turn
	ChatMessageCount int `json:"chat_message_count"`
}

// ChatService provides retrieval-augmented chat over a single document
type ChatService interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// SummaryService generates bounded on-demand document summaries
type SummaryService interface {
	// Summarize generates a fresh summary of the document's raw text and
	// persists it, overwriting any previous summary. Does not require the
	// vector index to be built.
	Summarize(ctx context.Context, documentID, ownerID string) (string, error)
}
