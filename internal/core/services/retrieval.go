package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/tutorkit/internal/core/domain"
	"github.com/custodia-labs/tutorkit/internal/core/ports/driven"
	"github.com/custodia-labs/tutorkit/internal/core/ports/driving"
	"github.com/custodia-labs/tutorkit/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.RetrievalService = (*RetrievalService)(nil)

// Retrieval sentinels returned instead of errors: retrieval must never
// raise into the surrounding tutoring flow.
const (
	// NoSectionsFound is returned when no chunk survives filtering.
	NoSectionsFound = "No sections found for this concept."

	// ContextUnavailable is returned when the library or a service is
	// missing or failing.
	ContextUnavailable = "Context unavailable."
)

// Retrieval defaults.
const (
	DefaultTopK      = 5
	DefaultThreshold = 0.35

	// overfetchFactor widens the store query so threshold filtering and
	// deduplication still leave topK candidates.
	overfetchFactor = 3
)

// RetrievalService serves similarity-based context with source-order
// re-ranking and deduplication.
type RetrievalService struct {
	libraries  driven.LibraryStore
	chunks     driven.ChunkStore
	embeddings driven.EmbeddingStore
	indexer    *Indexer
}

// NewRetrievalService creates a retrieval engine over persisted
// artifacts. It is read-only and safe for unbounded concurrent callers.
func NewRetrievalService(
	libraries driven.LibraryStore,
	chunks driven.ChunkStore,
	embeddings driven.EmbeddingStore,
	indexer *Indexer,
) *RetrievalService {
	return &RetrievalService{
		libraries:  libraries,
		chunks:     chunks,
		embeddings: embeddings,
		indexer:    indexer,
	}
}

// RetrieveContext embeds conceptName, searches the library's chunk
// embeddings, re-orders the surviving set by source order and formats
// the result. All failures degrade to a sentinel result with an empty
// source list.
func (s *RetrievalService) RetrieveContext(
	ctx context.Context,
	conceptName, libraryID string,
	topK int,
	threshold float64,
) *driving.ContextResult {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	lib, err := s.libraries.Get(ctx, libraryID)
	if err != nil {
		logger.Warn("retrieval: library %s: %v", libraryID, err)
		return unavailable()
	}

	query, err := s.indexer.EmbedQuery(ctx, conceptName)
	if err != nil {
		logger.Warn("retrieval: embed query %q: %v", conceptName, err)
		return unavailable()
	}

	hits, err := s.embeddings.NearestNeighbours(ctx, libraryID, query, topK*overfetchFactor)
	if err != nil {
		logger.Warn("retrieval: search: %v", err)
		return unavailable()
	}

	survivors := hits[:0]
	for _, hit := range hits {
		if hit.Similarity >= threshold {
			survivors = append(survivors, hit)
		}
	}
	if len(survivors) == 0 {
		return notFound()
	}

	scored, err := s.hydrate(ctx, survivors)
	if err != nil {
		logger.Warn("retrieval: hydrate: %v", err)
		return unavailable()
	}

	// Dedupe and cap while still similarity-ordered, so dedup losses are
	// replaced from the overfetch and the cap keeps the strongest matches.
	if !lib.Type.Spoken() {
		scored = dedupeText(scored)
	}
	if len(scored) > topK {
		scored = scored[:topK]
	}

	// Tutoring must traverse material in pedagogical order: re-order by
	// source position, not similarity.
	sortBySourceOrder(scored, lib.Type)

	return formatResult(*lib, scored)
}

// scoredChunk pairs a hydrated chunk with its similarity score.
type scoredChunk struct {
	chunk      domain.Chunk
	similarity float64
}

// hydrate loads the chunks behind search hits.
func (s *RetrievalService) hydrate(ctx context.Context, hits []domain.VectorHit) ([]scoredChunk, error) {
	scored := make([]scoredChunk, 0, len(hits))
	for _, hit := range hits {
		chunk, err := s.chunks.GetChunk(ctx, hit.ChunkID)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", hit.ChunkID, err)
		}
		scored = append(scored, scoredChunk{chunk: *chunk, similarity: hit.Similarity})
	}
	return scored, nil
}

// sortBySourceOrder sorts spoken content by timestamp and text content
// by line number, with chunk position as the tie-breaker.
func sortBySourceOrder(scored []scoredChunk, sourceType domain.SourceType) {
	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i].chunk, scored[j].chunk
		if sourceType.Spoken() {
			if a.Provenance.StartTime != b.Provenance.StartTime {
				return a.Provenance.StartTime < b.Provenance.StartTime
			}
		} else if a.Provenance.StartLine != b.Provenance.StartLine {
			return a.Provenance.StartLine < b.Provenance.StartLine
		}
		return a.Position < b.Position
	})
}

// dedupeText collapses text chunks sharing an identical (section,
// start line, end line) key; near-duplicate embeddings can otherwise
// retrieve the same excerpt twice. Spoken segments are never
// deduplicated because consecutive segments are never identical.
func dedupeText(scored []scoredChunk) []scoredChunk {
	seen := make(map[string]bool, len(scored))
	kept := scored[:0]
	for _, sc := range scored {
		key := sc.chunk.DedupKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, sc)
	}
	return kept
}

// spokenLabels maps chunk types to spoken-content block labels.
var spokenLabels = map[domain.ChunkType]string{
	domain.ChunkDefinition:  "Key concepts",
	domain.ChunkExample:     "Code",
	domain.ChunkExplanation: "Transcript",
	domain.ChunkExercise:    "Exercise",
	domain.ChunkOverview:    "Slide",
}

// formatResult renders the human-readable block and the structured
// source list in parallel.
func formatResult(lib domain.Library, scored []scoredChunk) *driving.ContextResult {
	if len(scored) == 0 {
		return notFound()
	}

	var b strings.Builder
	sources := make([]driving.SourceRef, 0, len(scored))

	for i, sc := range scored {
		if i > 0 {
			b.WriteString("\n\n")
		}

		p := sc.chunk.Provenance
		if lib.Type.Spoken() {
			label := spokenLabels[sc.chunk.Type]
			fmt.Fprintf(&b, "[%s-%s] %s\n%s",
				formatTimestamp(p.StartTime), formatTimestamp(p.EndTime), label, sc.chunk.Text)
		} else {
			fmt.Fprintf(&b, "%s - %s (lines %d-%d)\n%s",
				lib.Title, p.Section, p.StartLine, p.EndLine, sc.chunk.Text)
		}

		sources = append(sources, driving.SourceRef{
			ChunkID:    sc.chunk.ID,
			Type:       sc.chunk.Type,
			Section:    p.Section,
			Anchor:     p.Anchor,
			StartLine:  p.StartLine,
			EndLine:    p.EndLine,
			StartTime:  p.StartTime,
			EndTime:    p.EndTime,
			Similarity: sc.similarity,
		})
	}

	return &driving.ContextResult{
		FormattedText: b.String(),
		Sources:       sources,
		Found:         true,
	}
}

func unavailable() *driving.ContextResult {
	return &driving.ContextResult{FormattedText: ContextUnavailable, Sources: []driving.SourceRef{}}
}

func notFound() *driving.ContextResult {
	return &driving.ContextResult{FormattedText: NoSectionsFound, Sources: []driving.SourceRef{}}
}
