package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lectio/internal/common"
	"github.com/ternarybob/lectio/internal/interfaces"
	"github.com/ternarybob/lectio/internal/models"
)

type mockDocumentStorage struct {
	mu   sync.Mutex
	docs map[string]models.Document
}

func newMockStorage(docs ...*models.Document) *mockDocumentStorage {
	s := &mockDocumentStorage{docs: make(map[string]models.Document)}
	for _, doc := range docs {
		s.docs[doc.ID] = *doc
	}
	return s
}

func (s *mockDocumentStorage) SaveDocument(doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = *doc
	return nil
}

func (s *mockDocumentStorage) GetDocument(id string) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := doc
	return &copied, nil
}

func (s *mockDocumentStorage) DeleteDocument(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	return nil
}

func (s *mockDocumentStorage) ListByOwner(ownerID string) ([]*models.Document, error) {
	return nil, nil
}

func (s *mockDocumentStorage) CountByOwner(ownerID string) (int, error) { return 0, nil }

func (s *mockDocumentStorage) UpdateDocumentIf(id string, expectedStatus models.DocumentStatus, patch models.DocumentPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return models.ErrNotFound
	}
	if expectedStatus != "" && doc.Status != expectedStatus {
		return fmt.Errorf("status is %s: %w", doc.Status, models.ErrStatusConflict)
	}
	if patch.Status != nil {
		doc.Status = *patch.Status
		doc.Chunks = patch.Chunks
	}
	if patch.Summary != nil {
		doc.Summary = *patch.Summary
	}
	if patch.ChatMessageCountDelta != 0 {
		if patch.ChatMessageCountDelta > 0 && patch.ChatMessageLimit > 0 &&
			doc.ChatMessageCount >= patch.ChatMessageLimit {
			return fmt.Errorf("counter at %d: %w", doc.ChatMessageCount, models.ErrChatLimitReached)
		}
		doc.ChatMessageCount += patch.ChatMessageCountDelta
	}
	s.docs[id] = doc
	return nil
}

func (s *mockDocumentStorage) ListStaleProcessing(cutoff time.Time) ([]*models.Document, error) {
	return nil, nil
}

func (s *mockDocumentStorage) GetStats() (*models.DocumentStats, error) { return nil, nil }

type mockRetrieval struct {
	lastQuery string
	passages  []models.ScoredChunk
	err       error
}

func (m *mockRetrieval) Retrieve(ctx context.Context, doc *models.Document, query string) ([]models.ScoredChunk, error) {
	m.lastQuery = query
	if m.err != nil {
		return nil, m.err
	}
	return m.passages, nil
}

type mockLLM struct {
	lastMessages []interfaces.Message
	answer       string
	err          error
}

func (m *mockLLM) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	m.lastMessages = messages
	if m.err != nil {
		return "", m.err
	}
	return m.answer, nil
}

func (m *mockLLM) Embed(ctx context.Context, text string) ([]float32, error) { return nil, nil }

func (m *mockLLM) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, nil
}

func (m *mockLLM) HealthCheck(ctx context.Context) error { return nil }
func (m *mockLLM) GetMode() interfaces.LLMMode           { return interfaces.LLMModeMock }
func (m *mockLLM) Close() error                          { return nil }

func readyDoc(id, owner string, chatCount int) *models.Document {
	return &models.Document{
		ID:               id,
		OwnerID:          owner,
		Status:           models.DocumentStatusReady,
		ChatMessageCount: chatCount,
		Chunks: []models.DocumentChunk{
			{Text: "passage one", Vector: []float32{1, 0}},
			{Text: "passage two", Vector: []float32{0, 1}},
		},
	}
}

func newTestChatService(storage interfaces.DocumentStorage, retrieval interfaces.RetrievalService, llm interfaces.LLMService) interfaces.ChatService {
	return NewChatService(storage, retrieval, llm, common.NewDefaultConfig(), arbor.NewLogger())
}

func userMessage(content string) interfaces.Message {
	return interfaces.Message{Role: "user", Content: content}
}

func TestChatHappyPath(t *testing.T) {
	storage := newMockStorage(readyDoc("doc-1", "user-1", 0))
	retrieval := &mockRetrieval{passages: []models.ScoredChunk{
		{Text: "passage one", Score: 0.9},
		{Text: "passage two", Score: 0.5},
	}}
	llm := &mockLLM{answer: "Grounded answer."}
	svc := newTestChatService(storage, retrieval, llm)

	resp, err := svc.Chat(context.Background(), &interfaces.ChatRequest{
		DocumentID: "doc-1",
		OwnerID:    "user-1",
		Messages:   []interfaces.Message{userMessage("what is in the document?")},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if resp.Answer != "Grounded answer." {
		t.Errorf("unexpected answer %q", resp.Answer)
	}
	if resp.ChatMessageCount != 1 {
		t.Errorf("expected count 1, got %d", resp.ChatMessageCount)
	}
	if len(resp.ContextPassages) != 2 || resp.ContextPassages[0] != "passage one" {
		t.Errorf("unexpected context passages %v", resp.ContextPassages)
	}

	stored, _ := storage.GetDocument("doc-1")
	if stored.ChatMessageCount != 1 {
		t.Errorf("counter not persisted: %d", stored.ChatMessageCount)
	}
}

func TestChatForbidden(t *testing.T) {
	storage := newMockStorage(readyDoc("doc-1", "user-1", 0))
	svc := newTestChatService(storage, &mockRetrieval{}, &mockLLM{answer: "x"})

	_, err := svc.Chat(context.Background(), &interfaces.ChatRequest{
		DocumentID: "doc-1",
		OwnerID:    "intruder",
		Messages:   []interfaces.Message{userMessage("hi")},
	})
	if !errors.Is(err, models.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestChatDocumentNotFound(t *testing.T) {
	svc := newTestChatService(newMockStorage(), &mockRetrieval{}, &mockLLM{})

	_, err := svc.Chat(context.Background(), &interfaces.ChatRequest{
		DocumentID: "missing",
		OwnerID:    "user-1",
		Messages:   []interfaces.Message{userMessage("hi")},
	})
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestChatNotReady(t *testing.T) {
	for _, status := range []models.DocumentStatus{models.DocumentStatusProcessing, models.DocumentStatusFailed} {
		doc := &models.Document{ID: "doc-1", OwnerID: "user-1", Status: status}
		svc := newTestChatService(newMockStorage(doc), &mockRetrieval{}, &mockLLM{})

		_, err := svc.Chat(context.Background(), &interfaces.ChatRequest{
			DocumentID: "doc-1",
			OwnerID:    "user-1",
			Messages:   []interfaces.Message{userMessage("hi")},
		})
		if !errors.Is(err, models.ErrNotReady) {
			t.Errorf("status %s: expected ErrNotReady, got %v", status, err)
		}
	}
}

func TestChatLimitReached(t *testing.T) {
	storage := newMockStorage(readyDoc("doc-1", "user-1", 30))
	llm := &mockLLM{answer: "x"}
	svc := newTestChatService(storage, &mockRetrieval{}, llm)

	_, err := svc.Chat(context.Background(), &interfaces.ChatRequest{
		DocumentID: "doc-1",
		OwnerID:    "user-1",
		Messages:   []interfaces.Message{userMessage("hi")},
	})
	if !errors.Is(err, models.ErrChatLimitReached) {
		t.Errorf("expected ErrChatLimitReached, got %v", err)
	}
	if llm.lastMessages != nil {
		t.Error("provider must not be called once the limit is reached")
	}
}

func TestChatFinalTurnAllowed(t *testing.T) {
	storage := newMockStorage(readyDoc("doc-1", "user-1", 29))
	svc := newTestChatService(storage, &mockRetrieval{}, &mockLLM{answer: "last words"})

	resp, err := svc.Chat(context.Background(), &interfaces.ChatRequest{
		DocumentID: "doc-1",
		OwnerID:    "user-1",
		Messages:   []interfaces.Message{userMessage("hi")},
	})
	if err != nil {
		t.Fatalf("turn 30 must be allowed: %v", err)
	}
	if resp.ChatMessageCount != 30 {
		t.Errorf("expected count 30, got %d", resp.ChatMessageCount)
	}

	// Turn 31 is rejected
	_, err = svc.Chat(context.Background(), &interfaces.ChatRequest{
		DocumentID: "doc-1",
		OwnerID:    "user-1",
		Messages:   []interfaces.Message{userMessage("hi again")},
	})
	if !errors.Is(err, models.ErrChatLimitReached) {
		t.Errorf("expected ErrChatLimitReached on turn 31, got %v", err)
	}
}

func TestChatConcurrentTurnsAtLimit(t *testing.T) {
	storage := newMockStorage(readyDoc("doc-1", "user-1", 29))

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc := newTestChatService(storage, &mockRetrieval{}, &mockLLM{answer: "x"})
			_, err := svc.Chat(context.Background(), &interfaces.ChatRequest{
				DocumentID: "doc-1",
				OwnerID:    "user-1",
				Messages:   []interfaces.Message{userMessage("hi")},
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, rejected int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, models.ErrChatLimitReached):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || rejected != 1 {
		t.Errorf("expected exactly one turn to win the last slot, got %d successes and %d rejections", succeeded, rejected)
	}

	stored, _ := storage.GetDocument("doc-1")
	if stored.ChatMessageCount != 30 {
		t.Errorf("counter must stop at 30, got %d", stored.ChatMessageCount)
	}
}

func TestChatNoUserMessage(t *testing.T) {
	storage := newMockStorage(readyDoc("doc-1", "user-1", 0))
	svc := newTestChatService(storage, &mockRetrieval{}, &mockLLM{})

	_, err := svc.Chat(context.Background(), &interfaces.ChatRequest{
		DocumentID: "doc-1",
		OwnerID:    "user-1",
		Messages:   []interfaces.Message{{Role: "assistant", Content: "hello"}},
	})
	if !errors.Is(err, models.ErrNoQuestion) {
		t.Errorf("expected ErrNoQuestion, got %v", err)
	}
}

func TestChatUsesLatestUserMessageAsQuery(t *testing.T) {
	storage := newMockStorage(readyDoc("doc-1", "user-1", 0))
	retrieval := &mockRetrieval{}
	svc := newTestChatService(storage, retrieval, &mockLLM{answer: "x"})

	_, err := svc.Chat(context.Background(), &interfaces.ChatRequest{
		DocumentID: "doc-1",
		OwnerID:    "user-1",
		Messages: []interfaces.Message{
			userMessage("first question"),
			{Role: "assistant", Content: "first answer"},
			userMessage("second question"),
			{Role: "assistant", Content: "second answer"},
		},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if retrieval.lastQuery != "second question" {
		t.Errorf("expected latest user message as query, got %q", retrieval.lastQuery)
	}
}

func TestChatHistoryWindow(t *testing.T) {
	storage := newMockStorage(readyDoc("doc-1", "user-1", 0))
	llm := &mockLLM{answer: "x"}
	svc := newTestChatService(storage, &mockRetrieval{}, llm)

	var history []interfaces.Message
	for i := 0; i < 14; i++ {
		history = append(history, userMessage(fmt.Sprintf("message %d", i)))
	}

	if _, err := svc.Chat(context.Background(), &interfaces.ChatRequest{
		DocumentID: "doc-1",
		OwnerID:    "user-1",
		Messages:   history,
	}); err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	// System prompt plus the 10 most recent history messages
	if len(llm.lastMessages) != 11 {
		t.Fatalf("expected 11 provider messages, got %d", len(llm.lastMessages))
	}
	if llm.lastMessages[0].Role != "system" {
		t.Errorf("first message must be the system prompt, got role %q", llm.lastMessages[0].Role)
	}
	if llm.lastMessages[1].Content != "message 4" {
		t.Errorf("window should start at message 4, got %q", llm.lastMessages[1].Content)
	}
	if llm.lastMessages[10].Content != "message 13" {
		t.Errorf("window should end at message 13, got %q", llm.lastMessages[10].Content)
	}
}

func TestChatEmptyAnswerFallbackStillCounts(t *testing.T) {
	storage := newMockStorage(readyDoc("doc-1", "user-1", 5))
	svc := newTestChatService(storage, &mockRetrieval{}, &mockLLM{answer: "   "})

	resp, err := svc.Chat(context.Background(), &interfaces.ChatRequest{
		DocumentID: "doc-1",
		OwnerID:    "user-1",
		Messages:   []interfaces.Message{userMessage("hi")},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Answer != fallbackAnswer {
		t.Errorf("expected fallback answer, got %q", resp.Answer)
	}
	if resp.ChatMessageCount != 6 {
		t.Errorf("fallback turn must count, got %d", resp.ChatMessageCount)
	}
}

func TestChatUpstreamErrorDoesNotCount(t *testing.T) {
	storage := newMockStorage(readyDoc("doc-1", "user-1", 5))
	llm := &mockLLM{err: fmt.Errorf("timeout: %w", models.ErrUpstream)}
	svc := newTestChatService(storage, &mockRetrieval{}, llm)

	_, err := svc.Chat(context.Background(), &interfaces.ChatRequest{
		DocumentID: "doc-1",
		OwnerID:    "user-1",
		Messages:   []interfaces.Message{userMessage("hi")},
	})
	if !errors.Is(err, models.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}

	stored, _ := storage.GetDocument("doc-1")
	if stored.ChatMessageCount != 5 {
		t.Errorf("counter must not move on upstream failure, got %d", stored.ChatMessageCount)
	}
}

func TestChatRetrievalErrorDoesNotCount(t *testing.T) {
	storage := newMockStorage(readyDoc("doc-1", "user-1", 2))
	retrieval := &mockRetrieval{err: models.ErrUpstream}
	svc := newTestChatService(storage, retrieval, &mockLLM{answer: "x"})

	_, err := svc.Chat(context.Background(), &interfaces.ChatRequest{
		DocumentID: "doc-1",
		OwnerID:    "user-1",
		Messages:   []interfaces.Message{userMessage("hi")},
	})
	if !errors.Is(err, models.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}

	stored, _ := storage.GetDocument("doc-1")
	if stored.ChatMessageCount != 2 {
		t.Errorf("counter must not move on retrieval failure, got %d", stored.ChatMessageCount)
	}
}
