package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/custodia-labs/tutorkit/internal/core/domain"
	"github.com/custodia-labs/tutorkit/internal/core/ports/driven"
	"github.com/custodia-labs/tutorkit/internal/logger"
	"github.com/custodia-labs/tutorkit/internal/retry"
)

// DefaultMapBatchSize is the number of chunks sent per mapping request.
const DefaultMapBatchSize = 100

// BackfillThresholds are the confidence heuristics for the post-pass.
// The source values are unexplained heuristics, so they are tunable
// configuration rather than fixed semantics.
type BackfillThresholds struct {
	// Low marks a mapping as weak enough to backfill.
	Low float64

	// SharedNeighbour is the minimum confidence both neighbours need
	// for shared-concept inheritance.
	SharedNeighbour float64

	// SharedInherit is the confidence assigned on shared inheritance.
	SharedInherit float64

	// SingleNeighbour is the minimum confidence a lone neighbour needs.
	SingleNeighbour float64

	// SingleInherit is the confidence assigned on single inheritance.
	SingleInherit float64
}

// DefaultBackfillThresholds returns the source heuristics.
func DefaultBackfillThresholds() BackfillThresholds {
	return BackfillThresholds{
		Low:             0.3,
		SharedNeighbour: 0.5,
		SharedInherit:   0.6,
		SingleNeighbour: 0.6,
		SingleInherit:   0.5,
	}
}

// mappingSchema constrains the batch mapping response.
var mappingSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"mappings": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"chunk_id": {"type": "string"},
					"concept_id": {"type": "string"},
					"confidence": {"type": "number", "minimum": 0, "maximum": 1},
					"secondary": {"type": "array", "items": {"type": "string"}},
					"rationale": {"type": "string"}
				},
				"required": ["chunk_id", "concept_id", "confidence"],
				"additionalProperties": false
			}
		}
	},
	"required": ["mappings"],
	"additionalProperties": false
}`)

// mappingPayload mirrors mappingSchema for decoding.
type mappingPayload struct {
	Mappings []struct {
		ChunkID    string   `json:"chunk_id"`
		ConceptID  string   `json:"concept_id"`
		Confidence float64  `json:"confidence"`
		Secondary  []string `json:"secondary"`
		Rationale  string   `json:"rationale"`
	} `json:"mappings"`
}

const mapSystemPrompt = `You assign each chunk of educational material its primary concept from a canonical list.
Return one mapping per chunk with a confidence in [0,1]. Use the concept id "unmapped" when no
concept fits. Optionally list secondary concepts and a short rationale.`

// Mapper assigns each chunk a primary concept with confidence, then
// backfills weak assignments from neighbouring chunks.
type Mapper struct {
	understanding driven.UnderstandingService
	batchSize     int
	thresholds    BackfillThresholds
	retryPolicy   retry.Policy
}

// MapperOption configures the mapper.
type MapperOption func(*Mapper)

// WithMapBatchSize sets the chunks per mapping request.
func WithMapBatchSize(n int) MapperOption {
	return func(m *Mapper) {
		if n > 0 {
			m.batchSize = n
		}
	}
}

// WithBackfillThresholds overrides the backfill confidence heuristics.
func WithBackfillThresholds(t BackfillThresholds) MapperOption {
	return func(m *Mapper) {
		m.thresholds = t
	}
}

// NewMapper creates a chunk-concept mapper backed by the understanding
// service.
func NewMapper(understanding driven.UnderstandingService, opts ...MapperOption) *Mapper {
	m := &Mapper{
		understanding: understanding,
		batchSize:     DefaultMapBatchSize,
		thresholds:    DefaultBackfillThresholds(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Map batches chunks against the concept list and returns exactly one
// mapping per chunk, in chunk order, after the backfill post-pass.
// A batch failure is stage-fatal.
func (m *Mapper) Map(
	ctx context.Context,
	chunks []domain.Chunk,
	concepts []domain.Concept,
) ([]domain.Mapping, error) {
	if m.understanding == nil {
		return nil, domain.ErrUnderstandingUnavailable
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	known := make(map[string]bool, len(concepts))
	for _, c := range concepts {
		known[c.ID] = true
	}

	byChunk := make(map[string]domain.Mapping, len(chunks))
	for start := 0; start < len(chunks); start += m.batchSize {
		end := start + m.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		if err := m.mapBatch(ctx, chunks[start:end], concepts, known, byChunk); err != nil {
			return nil, fmt.Errorf("map batch %d: %w", start/m.batchSize, err)
		}
	}

	// Exactly one mapping per chunk: unanswered chunks become unmapped.
	mappings := make([]domain.Mapping, len(chunks))
	for i, chunk := range chunks {
		if mapped, ok := byChunk[chunk.ID]; ok {
			mappings[i] = mapped
		} else {
			mappings[i] = domain.Mapping{
				ChunkID:   chunk.ID,
				ConceptID: domain.UnmappedConcept,
			}
		}
	}

	m.Backfill(mappings)
	return mappings, nil
}

// mapBatch runs one understanding call for a slice of chunks.
func (m *Mapper) mapBatch(
	ctx context.Context,
	chunks []domain.Chunk,
	concepts []domain.Concept,
	known map[string]bool,
	out map[string]domain.Mapping,
) error {
	prompt := buildMapPrompt(chunks, concepts)

	var raw json.RawMessage
	err := retry.Do(ctx, m.retryPolicy, func(ctx context.Context) error {
		var callErr error
		raw, callErr = m.understanding.Complete(ctx, driven.CompletionRequest{
			System:     mapSystemPrompt,
			Prompt:     prompt,
			SchemaName: "chunk_mappings",
			Schema:     mappingSchema,
		})
		return callErr
	})
	if err != nil {
		return err
	}

	var payload mappingPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}

	inBatch := make(map[string]bool, len(chunks))
	for _, chunk := range chunks {
		inBatch[chunk.ID] = true
	}

	for _, pm := range payload.Mappings {
		if !inBatch[pm.ChunkID] {
			continue
		}
		conceptID := pm.ConceptID
		if conceptID != domain.UnmappedConcept && !known[conceptID] {
			logger.Debug("mapper: unknown concept %q for chunk %s", conceptID, pm.ChunkID)
			conceptID = domain.UnmappedConcept
		}
		confidence := pm.Confidence
		if confidence < 0 {
			confidence = 0
		}
		if confidence > 1 {
			confidence = 1
		}
		out[pm.ChunkID] = domain.Mapping{
			ChunkID:    pm.ChunkID,
			ConceptID:  conceptID,
			Confidence: confidence,
			Secondary:  filterKnownIDs(pm.Secondary, known),
			Rationale:  pm.Rationale,
		}
	}
	return nil
}

// Backfill applies the neighbour-inheritance post-pass in place.
// A weak chunk inherits from both neighbours when they share a concept
// confidently, or from a single confident neighbour, and otherwise
// stays unmapped. Neighbour confidences are read from the pre-backfill
// state, so an inherited mapping never feeds the next decision.
func (m *Mapper) Backfill(mappings []domain.Mapping) {
	t := m.thresholds

	original := make([]domain.Mapping, len(mappings))
	copy(original, mappings)

	for i := range mappings {
		if original[i].Mapped() && original[i].Confidence >= t.Low {
			continue
		}

		var prev, next *domain.Mapping
		if i > 0 {
			prev = &original[i-1]
		}
		if i < len(original)-1 {
			next = &original[i+1]
		}

		// Both neighbours share one concept confidently.
		if prev != nil && next != nil &&
			prev.Mapped() && next.Mapped() &&
			prev.ConceptID == next.ConceptID &&
			prev.Confidence >= t.SharedNeighbour && next.Confidence >= t.SharedNeighbour {
			mappings[i].ConceptID = prev.ConceptID
			mappings[i].Confidence = t.SharedInherit
			mappings[i].Rationale = "inherited from both neighbours"
			continue
		}

		// Exactly one neighbour is confident enough.
		prevStrong := prev != nil && prev.Mapped() && prev.Confidence >= t.SingleNeighbour
		nextStrong := next != nil && next.Mapped() && next.Confidence >= t.SingleNeighbour
		if prevStrong != nextStrong {
			from := prev
			if nextStrong {
				from = next
			}
			mappings[i].ConceptID = from.ConceptID
			mappings[i].Confidence = t.SingleInherit
			mappings[i].Rationale = "inherited from one neighbour"
			continue
		}

		// Weak mappings that cannot inherit are demoted to unmapped:
		// excluded from concept-scoped retrieval, still retrievable
		// generically.
		mappings[i].ConceptID = domain.UnmappedConcept
		mappings[i].Confidence = 0
	}
}

// buildMapPrompt assembles the batch mapping prompt: the canonical
// concept catalogue followed by the chunk texts.
func buildMapPrompt(chunks []domain.Chunk, concepts []domain.Concept) string {
	var b strings.Builder
	b.WriteString("Concepts (id: name - description):\n")
	for _, c := range concepts {
		fmt.Fprintf(&b, "- %s: %s - %s\n", c.ID, c.Name, c.Description)
	}

	b.WriteString("\nChunks:\n")
	for _, chunk := range chunks {
		fmt.Fprintf(&b, "--- chunk_id: %s\n%s\n", chunk.ID, chunk.Text)
	}
	return b.String()
}
