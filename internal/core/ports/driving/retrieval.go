package driving

import (
	"context"

	"github.com/custodia-labs/tutorkit/internal/core/domain"
)

// RetrievalService serves retrieval-augmented context to the tutoring
// dialogue. It never raises into the surrounding flow: failures degrade
// to an explicit sentinel result with an empty source list.
type RetrievalService interface {
	// RetrieveContext embeds conceptName as a query, searches the
	// library's chunk embeddings, re-orders survivors by source order,
	// deduplicates text excerpts and formats the result.
	RetrieveContext(ctx context.Context, conceptName, libraryID string, topK int, threshold float64) *ContextResult
}

// ContextResult is a formatted retrieval result plus structured sources.
type ContextResult struct {
	// FormattedText is the human-readable context block, or a sentinel
	// message when nothing was found.
	FormattedText string

	// Sources carries full provenance for citation rendering, in the
	// same order as the formatted blocks.
	Sources []SourceRef

	// Found reports whether any chunk survived filtering.
	Found bool
}

// SourceRef is one citation-ready source reference.
type SourceRef struct {
	// ChunkID is the originating chunk.
	ChunkID string

	// Type is the chunk's pedagogical classification.
	Type domain.ChunkType

	// Section is the originating section heading.
	Section string

	// Anchor is the section anchor slug.
	Anchor string

	// StartLine and EndLine bound text excerpts.
	StartLine int
	EndLine   int

	// StartTime and EndTime bound spoken excerpts, in seconds.
	StartTime float64
	EndTime   float64

	// Similarity is the original similarity score before source-order
	// re-ranking.
	Similarity float64
}
