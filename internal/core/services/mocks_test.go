package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/custodia-labs/tutorkit/internal/core/domain"
	"github.com/custodia-labs/tutorkit/internal/core/ports/driven"
)

// --- Mock implementations shared across the service tests ---

// mockUnderstanding implements driven.UnderstandingService. The respond
// function receives every request; calls are counted under a mutex so
// concurrent callers (the enricher) stay race-free.
type mockUnderstanding struct {
	mu      sync.Mutex
	calls   int
	reqs    []driven.CompletionRequest
	respond func(req driven.CompletionRequest, call int) (json.RawMessage, error)
}

func (m *mockUnderstanding) Complete(_ context.Context, req driven.CompletionRequest) (json.RawMessage, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.reqs = append(m.reqs, req)
	respond := m.respond
	m.mu.Unlock()

	if respond == nil {
		return json.RawMessage(`{}`), nil
	}
	return respond(req, call)
}

func (m *mockUnderstanding) ModelName() string {
	return "mock-model"
}
func (m *mockUnderstanding) Ping(_ context.Context) error {
	return nil
}
func (m *mockUnderstanding) Close() error {
	return nil
}

func (m *mockUnderstanding) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockEmbedding implements driven.EmbeddingService with a fixed
// dimension. The embed function maps text to a vector; when nil, a
// constant unit-axis vector is returned.
type mockEmbedding struct {
	mu    sync.Mutex
	calls int
	dims  int
	embed func(text string) ([]float32, error)
}

func newMockEmbedding(dims int) *mockEmbedding {
	return &mockEmbedding{dims: dims}
}

func (m *mockEmbedding) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.embed != nil {
		return m.embed(text)
	}
	v := make([]float32, m.dims)
	v[0] = 1
	return v, nil
}

func (m *mockEmbedding) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		v, err := m.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, v)
	}
	return vectors, nil
}

func (m *mockEmbedding) Dimensions() int {
	return m.dims
}
func (m *mockEmbedding) ModelName() string {
	return "mock-embed"
}
func (m *mockEmbedding) Ping(_ context.Context) error {
	return nil
}
func (m *mockEmbedding) Close() error {
	return nil
}

func (m *mockEmbedding) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockSourceReader implements driven.SourceReader over a fixed text.
type mockSourceReader struct {
	src *driven.SourceText
	err error
}

func (m *mockSourceReader) Read(_ context.Context, _ domain.Library) (*driven.SourceText, error) {
	return m.src, m.err
}
