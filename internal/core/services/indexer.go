package services

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/custodia-labs/tutorkit/internal/core/domain"
	"github.com/custodia-labs/tutorkit/internal/core/ports/driven"
)

// DefaultEmbedBatchSize is the texts per embedding request.
const DefaultEmbedBatchSize = 64

// Indexer produces unit-normalized vectors for chunks and ad-hoc
// queries. Chunks are embedded as enriched text (content plus section,
// title and concept names) to improve retrieval recall.
type Indexer struct {
	embedding driven.EmbeddingService
	batchSize int
}

// IndexerOption configures the indexer.
type IndexerOption func(*Indexer)

// WithEmbedBatchSize sets the texts per embedding request.
func WithEmbedBatchSize(n int) IndexerOption {
	return func(ix *Indexer) {
		if n > 0 {
			ix.batchSize = n
		}
	}
}

// NewIndexer creates an embedding indexer.
func NewIndexer(embedding driven.EmbeddingService, opts ...IndexerOption) *Indexer {
	ix := &Indexer{
		embedding: embedding,
		batchSize: DefaultEmbedBatchSize,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// IndexChunks embeds every chunk and returns one embedding per chunk in
// chunk order. Every vector in one run must share the service's model
// and dimensionality; divergence is a hard error.
func (ix *Indexer) IndexChunks(
	ctx context.Context,
	lib domain.Library,
	chunks []domain.Chunk,
	mappings map[string]domain.Mapping,
	concepts []domain.Concept,
) ([]domain.Embedding, error) {
	if ix.embedding == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	names := make(map[string]string, len(concepts))
	for _, c := range concepts {
		names[c.ID] = c.Name
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		if strings.TrimSpace(chunk.Text) == "" {
			return nil, fmt.Errorf("%w: chunk %s has no text", domain.ErrInvalidInput, chunk.ID)
		}
		texts[i] = enrichedText(lib, chunk, mappings[chunk.ID], names)
	}

	model := ix.embedding.ModelName()
	dims := ix.embedding.Dimensions()

	embeddings := make([]domain.Embedding, 0, len(chunks))
	for start := 0; start < len(texts); start += ix.batchSize {
		end := start + ix.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		vectors, err := ix.embedding.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch %d: %w", start/ix.batchSize, err)
		}
		if len(vectors) != end-start {
			return nil, fmt.Errorf("%w: got %d vectors for %d texts",
				domain.ErrMalformedResponse, len(vectors), end-start)
		}

		for i, vector := range vectors {
			if len(vector) != dims {
				return nil, fmt.Errorf("%w: vector has %d dimensions, model %s expects %d",
					domain.ErrDimensionMismatch, len(vector), model, dims)
			}
			embeddings = append(embeddings, domain.Embedding{
				ChunkID:    chunks[start+i].ID,
				Vector:     Normalize(vector),
				Model:      model,
				Dimensions: dims,
			})
		}
	}

	return embeddings, nil
}

// EmbedQuery embeds an interactive query with the same model and the
// same normalization as indexing time, so query and index vectors are
// comparable.
func (ix *Indexer) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if ix.embedding == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}

	vector, err := ix.embedding.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vector) != ix.embedding.Dimensions() {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, expected %d",
			domain.ErrDimensionMismatch, len(vector), ix.embedding.Dimensions())
	}
	return Normalize(vector), nil
}

// Normalize returns the vector divided by its L2 magnitude. Zero
// vectors are returned unchanged.
func Normalize(vector []float32) []float32 {
	var sum float64
	for _, v := range vector {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vector
	}
	magnitude := math.Sqrt(sum)

	normalized := make([]float32, len(vector))
	for i, v := range vector {
		normalized[i] = float32(float64(v) / magnitude)
	}
	return normalized
}

// enrichedText composes the text actually embedded for a chunk.
func enrichedText(lib domain.Library, chunk domain.Chunk, mapping domain.Mapping, conceptNames map[string]string) string {
	var b strings.Builder
	b.WriteString(chunk.Text)

	fmt.Fprintf(&b, "\nTitle: %s", lib.Title)
	if chunk.Provenance.Section != "" {
		fmt.Fprintf(&b, "\nSection: %s", chunk.Provenance.Section)
	}
	if mapping.Mapped() {
		if name, ok := conceptNames[mapping.ConceptID]; ok {
			fmt.Fprintf(&b, "\nConcept: %s", name)
		}
	}
	for _, id := range mapping.Secondary {
		if name, ok := conceptNames[id]; ok {
			fmt.Fprintf(&b, "\nRelated: %s", name)
		}
	}
	return b.String()
}
