package driven

import (
	"context"

	"github.com/custodia-labs/tutorkit/internal/core/domain"
)

// LibraryStore persists library lifecycle records.
type LibraryStore interface {
	// Save stores a library. Creates if new, updates if exists.
	Save(ctx context.Context, lib domain.Library) error

	// Get retrieves a library by ID.
	Get(ctx context.Context, id string) (*domain.Library, error)

	// List returns all libraries.
	List(ctx context.Context) ([]domain.Library, error)

	// Delete removes a library and all its derived artifacts.
	Delete(ctx context.Context, id string) error

	// UpdateStatus sets the lifecycle status, progress message and stats
	// for a library.
	UpdateStatus(ctx context.Context, id string, status domain.LibraryStatus, progress string, stats domain.LibraryStats) error
}

// ConceptStore persists the concept graph and its enrichments.
type ConceptStore interface {
	// SaveConcepts stores the full concept set for a library in
	// extraction order, replacing any previous set.
	SaveConcepts(ctx context.Context, libraryID string, concepts []domain.Concept) error

	// GetConcepts returns the concept set for a library in stored order.
	GetConcepts(ctx context.Context, libraryID string) ([]domain.Concept, error)

	// SaveEnrichments stores enrichments for a library's concepts.
	SaveEnrichments(ctx context.Context, libraryID string, enrichments []domain.Enrichment) error

	// GetEnrichments returns the enrichments for a library.
	GetEnrichments(ctx context.Context, libraryID string) ([]domain.Enrichment, error)
}

// ChunkStore persists chunks and their concept mappings.
type ChunkStore interface {
	// SaveChunks stores chunks for a library in source order.
	SaveChunks(ctx context.Context, chunks []domain.Chunk) error

	// GetChunks returns a library's chunks ordered by position.
	GetChunks(ctx context.Context, libraryID string) ([]domain.Chunk, error)

	// GetChunk retrieves a specific chunk by ID.
	GetChunk(ctx context.Context, id string) (*domain.Chunk, error)

	// SaveMappings stores chunk-concept mappings.
	SaveMappings(ctx context.Context, libraryID string, mappings []domain.Mapping) error

	// GetMappings returns a library's mappings keyed by chunk ID.
	GetMappings(ctx context.Context, libraryID string) (map[string]domain.Mapping, error)
}

// EmbeddingStore persists chunk embeddings and answers nearest-neighbour
// queries over them.
type EmbeddingStore interface {
	// SaveEmbeddings stores the embeddings for a library's chunks.
	SaveEmbeddings(ctx context.Context, libraryID string, embeddings []domain.Embedding) error

	// NearestNeighbours returns the k chunks most similar to the query
	// vector within one library, best first.
	NearestNeighbours(ctx context.Context, libraryID string, query []float32, k int) ([]domain.VectorHit, error)

	// CountEmbeddings returns the number of stored vectors for a library.
	CountEmbeddings(ctx context.Context, libraryID string) (int, error)
}

// ArtifactStore answers whether a stage's output artifact already
// exists. The pipeline treats artifact existence as an explicit
// predicate, never an implicit side effect, so stages can be skipped
// idempotently on resumption and tests can fake the store.
type ArtifactStore interface {
	// HasArtifact reports whether the stage's output exists for the library.
	HasArtifact(ctx context.Context, libraryID string, stage domain.Stage) (bool, error)

	// ClearArtifacts removes every stage artifact for a library.
	// Reimport calls this before resetting status to pending so stale
	// artifacts can never satisfy a skip check.
	ClearArtifacts(ctx context.Context, libraryID string) error
}

// ProgressSink records append-only, bounded processing logs and progress
// messages for a library.
type ProgressSink interface {
	// AppendLog appends one log entry.
	AppendLog(ctx context.Context, libraryID string, entry domain.LogEntry) error

	// ClearLogs removes all log entries for a library.
	ClearLogs(ctx context.Context, libraryID string) error

	// GetLogs returns a library's log entries in append order.
	GetLogs(ctx context.Context, libraryID string) ([]domain.LogEntry, error)
}
