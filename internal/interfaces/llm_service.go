package interfaces

import (
	"context"
)

// LLMMode represents the operational mode of the LLM service
type LLMMode string

const (
	// LLMModeCloud indicates the service uses cloud-based LLM APIs
	LLMModeCloud LLMMode = "cloud"

	// LLMModeMock indicates a test double is in use
	LLMModeMock LLMMode = "mock"
)

// Message represents a single message in a chat conversation
type Message struct {
	// Role identifies the message sender: "user", "assistant", or "system"
	Role string `json:"role"`

	// Content contains the text content of the message
	Content string `json:"content"`
}

// LLMService defines the contract around the external inference
// capabilities: batch vectorization and chat completion. Failures
// (timeouts included) surface as a single opaque error wrapping
// models.ErrUpstream; no partial-batch success is ever reported.
type LLMService interface {
	// Embed generates an embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates one vector per input text, order-preserving and
	// same length as the input. Any failure is surfaced as a single error
	// for the whole batch.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Chat generates a completion for the conversation in chronological
	// order. An empty completion may be returned as a non-error outcome.
	Chat(ctx context.Context, messages []Message) (string, error)

	// HealthCheck verifies the provider is reachable and configured.
	HealthCheck(ctx context.Context) error

	// GetMode returns the current operational mode of the LLM service.
	GetMode() LLMMode

	// Close releases provider resources.
	Close() error
}
