package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/tutorkit/internal/core/domain"
	"github.com/custodia-labs/tutorkit/internal/core/ports/driven"
)

// Ensure GraphStore implements the interfaces.
var (
	_ driven.ConceptStore   = (*GraphStore)(nil)
	_ driven.ChunkStore     = (*GraphStore)(nil)
	_ driven.EmbeddingStore = (*GraphStore)(nil)
	_ driven.ArtifactStore  = (*GraphStore)(nil)
)

// GraphStore is an in-memory implementation of the concept, chunk,
// embedding and artifact stores.
type GraphStore struct {
	mu          sync.RWMutex
	concepts    map[string][]domain.Concept
	enrichments map[string][]domain.Enrichment
	chunks      map[string][]domain.Chunk
	mappings    map[string]map[string]domain.Mapping
	embeddings  map[string][]domain.Embedding
}

// NewGraphStore creates a new in-memory graph store.
func NewGraphStore() *GraphStore {
	return &GraphStore{
		concepts:    make(map[string][]domain.Concept),
		enrichments: make(map[string][]domain.Enrichment),
		chunks:      make(map[string][]domain.Chunk),
		mappings:    make(map[string]map[string]domain.Mapping),
		embeddings:  make(map[string][]domain.Embedding),
	}
}

// SaveConcepts stores a library's concept set, replacing any previous set.
func (s *GraphStore) SaveConcepts(_ context.Context, libraryID string, concepts []domain.Concept) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.concepts[libraryID] = append([]domain.Concept(nil), concepts...)
	return nil
}

// GetConcepts returns a library's concepts in stored order.
func (s *GraphStore) GetConcepts(_ context.Context, libraryID string) ([]domain.Concept, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Concept(nil), s.concepts[libraryID]...), nil
}

// SaveEnrichments stores enrichments for a library's concepts.
func (s *GraphStore) SaveEnrichments(_ context.Context, libraryID string, enrichments []domain.Enrichment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enrichments[libraryID] = append([]domain.Enrichment(nil), enrichments...)
	return nil
}

// GetEnrichments returns the enrichments for a library.
func (s *GraphStore) GetEnrichments(_ context.Context, libraryID string) ([]domain.Enrichment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Enrichment(nil), s.enrichments[libraryID]...), nil
}

// SaveChunks stores chunks for a library in source order.
func (s *GraphStore) SaveChunks(_ context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	libraryID := chunks[0].LibraryID
	stored := append([]domain.Chunk(nil), chunks...)
	sort.SliceStable(stored, func(i, j int) bool { return stored[i].Position < stored[j].Position })
	s.chunks[libraryID] = stored
	return nil
}

// GetChunks returns a library's chunks ordered by position.
func (s *GraphStore) GetChunks(_ context.Context, libraryID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Chunk(nil), s.chunks[libraryID]...), nil
}

// GetChunk retrieves a specific chunk by ID.
func (s *GraphStore) GetChunk(_ context.Context, id string) (*domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, chunks := range s.chunks {
		for _, chunk := range chunks {
			if chunk.ID == id {
				return &chunk, nil
			}
		}
	}
	return nil, domain.ErrNotFound
}

// SaveMappings stores chunk-concept mappings.
func (s *GraphStore) SaveMappings(_ context.Context, libraryID string, mappings []domain.Mapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byChunk := make(map[string]domain.Mapping, len(mappings))
	for _, m := range mappings {
		byChunk[m.ChunkID] = m
	}
	s.mappings[libraryID] = byChunk
	return nil
}

// GetMappings returns a library's mappings keyed by chunk ID.
func (s *GraphStore) GetMappings(_ context.Context, libraryID string) (map[string]domain.Mapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.Mapping, len(s.mappings[libraryID]))
	for k, v := range s.mappings[libraryID] {
		out[k] = v
	}
	return out, nil
}

// SaveEmbeddings stores the embeddings for a library's chunks.
func (s *GraphStore) SaveEmbeddings(_ context.Context, libraryID string, embeddings []domain.Embedding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embeddings[libraryID] = append([]domain.Embedding(nil), embeddings...)
	return nil
}

// NearestNeighbours returns the k most similar chunks, best first,
// using cosine similarity over the stored vectors.
func (s *GraphStore) NearestNeighbours(_ context.Context, libraryID string, query []float32, k int) ([]domain.VectorHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]domain.VectorHit, 0, len(s.embeddings[libraryID]))
	for _, emb := range s.embeddings[libraryID] {
		hits = append(hits, domain.VectorHit{
			ChunkID:    emb.ChunkID,
			Similarity: cosine(query, emb.Vector),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// CountEmbeddings returns the number of stored vectors for a library.
func (s *GraphStore) CountEmbeddings(_ context.Context, libraryID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.embeddings[libraryID]), nil
}

// HasArtifact reports whether the stage's output exists for the library.
func (s *GraphStore) HasArtifact(_ context.Context, libraryID string, stage domain.Stage) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch stage {
	case domain.StageConcepts:
		return len(s.concepts[libraryID]) > 0, nil
	case domain.StageChunk:
		return len(s.chunks[libraryID]) > 0, nil
	case domain.StageEnrich:
		return len(s.enrichments[libraryID]) > 0, nil
	case domain.StageMap:
		return len(s.mappings[libraryID]) > 0, nil
	case domain.StageEmbed:
		return len(s.embeddings[libraryID]) > 0, nil
	}
	return false, nil
}

// ClearArtifacts removes every stage artifact for a library.
func (s *GraphStore) ClearArtifacts(_ context.Context, libraryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.concepts, libraryID)
	delete(s.enrichments, libraryID)
	delete(s.chunks, libraryID)
	delete(s.mappings, libraryID)
	delete(s.embeddings, libraryID)
	return nil
}

// cosine computes cosine similarity between two vectors.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
