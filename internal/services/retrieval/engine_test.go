package retrieval

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lectio/internal/models"
)

type stubEmbeddingService struct {
	queryVector []float32
	err         error
}

func (s *stubEmbeddingService) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = s.queryVector
	}
	return vectors, nil
}

func (s *stubEmbeddingService) GenerateQueryEmbedding(ctx context.Context, query string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.queryVector, nil
}

func (s *stubEmbeddingService) IsAvailable(ctx context.Context) bool {
	return s.err == nil
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"identical vectors", []float32{1, 2, 3}, []float32{1, 2, 3}, 1.0},
		{"opposite vectors", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"orthogonal vectors", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"zero vector a", []float32{0, 0, 0}, []float32{1, 2, 3}, 0.0},
		{"zero vector b", []float32{1, 2, 3}, []float32{0, 0, 0}, 0.0},
		{"dimension mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0.0},
		{"empty vectors", []float32{}, []float32{}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("CosineSimilarity(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.expected)
			}
		})
	}
}

func TestCosineSimilarityBounds(t *testing.T) {
	a := []float32{0.3, -0.7, 0.2, 0.9}
	b := []float32{-0.1, 0.5, 0.8, -0.4}

	got := CosineSimilarity(a, b)
	if got < -1.0-1e-9 || got > 1.0+1e-9 {
		t.Errorf("similarity %v outside [-1, 1]", got)
	}
}

func readyDocument(chunks ...models.DocumentChunk) *models.Document {
	return &models.Document{
		ID:      "doc_test",
		OwnerID: "user-1",
		Status:  models.DocumentStatusReady,
		Chunks:  chunks,
	}
}

func TestRetrieveOrdersByScore(t *testing.T) {
	// Query vector is (1, 0); chunk scores are their cosine against it
	doc := readyDocument(
		models.DocumentChunk{Text: "weak match", Vector: []float32{0.2, 1}},
		models.DocumentChunk{Text: "best match", Vector: []float32{1, 0}},
		models.DocumentChunk{Text: "good match", Vector: []float32{1, 0.4}},
		models.DocumentChunk{Text: "no match", Vector: []float32{0, 1}},
	)

	eng := NewEngine(&stubEmbeddingService{queryVector: []float32{1, 0}}, 3, arbor.NewLogger())

	results, err := eng.Retrieve(context.Background(), doc, "query")
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Text != "best match" {
		t.Errorf("expected best match first, got %q", results[0].Text)
	}
	if results[1].Text != "good match" {
		t.Errorf("expected good match second, got %q", results[1].Text)
	}
	if results[2].Text != "weak match" {
		t.Errorf("expected weak match third, got %q", results[2].Text)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("scores not descending at %d: %v > %v", i, results[i].Score, results[i-1].Score)
		}
	}
}

func TestRetrieveStableOnTies(t *testing.T) {
	// All chunks have identical vectors so every score ties; chunk order
	// must be preserved.
	vec := []float32{1, 1}
	doc := readyDocument(
		models.DocumentChunk{Text: "first", Vector: vec},
		models.DocumentChunk{Text: "second", Vector: vec},
		models.DocumentChunk{Text: "third", Vector: vec},
		models.DocumentChunk{Text: "fourth", Vector: vec},
	)

	eng := NewEngine(&stubEmbeddingService{queryVector: []float32{1, 0}}, 3, arbor.NewLogger())

	results, err := eng.Retrieve(context.Background(), doc, "query")
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}

	want := []string{"first", "second", "third"}
	for i, w := range want {
		if results[i].Text != w {
			t.Errorf("position %d: got %q, want %q", i, results[i].Text, w)
		}
	}
}

func TestRetrieveFewerChunksThanK(t *testing.T) {
	doc := readyDocument(
		models.DocumentChunk{Text: "only one", Vector: []float32{1, 0}},
	)

	eng := NewEngine(&stubEmbeddingService{queryVector: []float32{1, 0}}, 3, arbor.NewLogger())

	results, err := eng.Retrieve(context.Background(), doc, "query")
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("expected 1 result, got %d", len(results))
	}
}

func TestRetrieveNotReady(t *testing.T) {
	for _, status := range []models.DocumentStatus{models.DocumentStatusProcessing, models.DocumentStatusFailed} {
		doc := &models.Document{ID: "doc_test", Status: status}

		eng := NewEngine(&stubEmbeddingService{queryVector: []float32{1, 0}}, 3, arbor.NewLogger())

		_, err := eng.Retrieve(context.Background(), doc, "query")
		if !errors.Is(err, models.ErrNotReady) {
			t.Errorf("status %s: expected ErrNotReady, got %v", status, err)
		}
	}
}

func TestRetrieveEmbeddingFailure(t *testing.T) {
	doc := readyDocument(
		models.DocumentChunk{Text: "chunk", Vector: []float32{1, 0}},
	)

	eng := NewEngine(&stubEmbeddingService{err: models.ErrUpstream}, 3, arbor.NewLogger())

	_, err := eng.Retrieve(context.Background(), doc, "query")
	if !errors.Is(err, models.ErrUpstream) {
		t.Errorf("expected ErrUpstream, got %v", err)
	}
}

func TestRetrieveZeroQueryVector(t *testing.T) {
	doc := readyDocument(
		models.DocumentChunk{Text: "chunk a", Vector: []float32{1, 0}},
		models.DocumentChunk{Text: "chunk b", Vector: []float32{0, 1}},
	)

	eng := NewEngine(&stubEmbeddingService{queryVector: []float32{0, 0}}, 3, arbor.NewLogger())

	results, err := eng.Retrieve(context.Background(), doc, "query")
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	for _, r := range results {
		if r.Score != 0 {
			t.Errorf("expected score 0 for zero query vector, got %v", r.Score)
		}
	}
	// Ties at zero keep chunk order
	if results[0].Text != "chunk a" {
		t.Errorf("expected chunk order preserved, got %q first", results[0].Text)
	}
}
