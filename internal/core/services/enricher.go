package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/tutorkit/internal/core/domain"
	"github.com/custodia-labs/tutorkit/internal/core/ports/driven"
	"github.com/custodia-labs/tutorkit/internal/logger"
	"github.com/custodia-labs/tutorkit/internal/retry"
)

// Enricher defaults.
const (
	// DefaultEnrichBatchSize is the parallel fan-out per batch.
	DefaultEnrichBatchSize = 3

	// DefaultEnrichBatchDelay separates batches to smooth load.
	DefaultEnrichBatchDelay = 500 * time.Millisecond

	// DefaultEnrichMaxAttempts bounds per-concept retries.
	DefaultEnrichMaxAttempts = 4

	// maxEnrichChunks caps the chunk excerpts included per concept prompt.
	maxEnrichChunks = 8
)

// enrichmentSchema constrains the per-concept enrichment response.
var enrichmentSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"learning_objectives": {"type": "array", "items": {"type": "string"}, "minItems": 3, "maxItems": 5},
		"mastery_indicators": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"skill_id": {"type": "string"},
					"description": {"type": "string"},
					"tier": {"type": "string", "enum": ["basic", "intermediate", "advanced"]},
					"test_method": {"type": "string"}
				},
				"required": ["skill_id", "description", "tier", "test_method"],
				"additionalProperties": false
			}
		},
		"misconceptions": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"misconception": {"type": "string"},
					"reality": {"type": "string"},
					"correction": {"type": "string"}
				},
				"required": ["misconception", "reality", "correction"],
				"additionalProperties": false
			}
		},
		"key_insights": {"type": "array", "items": {"type": "string"}},
		"common_questions": {"type": "array", "items": {"type": "string"}}
	},
	"required": ["learning_objectives", "mastery_indicators", "misconceptions", "key_insights"],
	"additionalProperties": false
}`)

// enrichmentPayload mirrors enrichmentSchema for decoding.
type enrichmentPayload struct {
	LearningObjectives []string `json:"learning_objectives"`
	MasteryIndicators  []struct {
		SkillID     string `json:"skill_id"`
		Description string `json:"description"`
		Tier        string `json:"tier"`
		TestMethod  string `json:"test_method"`
	} `json:"mastery_indicators"`
	Misconceptions []struct {
		Misconception string `json:"misconception"`
		Reality       string `json:"reality"`
		Correction    string `json:"correction"`
	} `json:"misconceptions"`
	KeyInsights     []string `json:"key_insights"`
	CommonQuestions []string `json:"common_questions"`
}

const enrichSystemPrompt = `You attach learning metadata to one concept from an educational source.
Produce 3-5 observable learning objectives, assessable mastery indicators with a dialogue test method,
common misconceptions with their reality and correction, and the key insights worth emphasising.`

// Enricher attaches learning metadata to concepts in bounded-parallel
// batches. One concept's permanent failure never blocks its siblings;
// failed concepts are logged and excluded from the output.
type Enricher struct {
	understanding driven.UnderstandingService
	batchSize     int
	batchDelay    time.Duration
	retryPolicy   retry.Policy
}

// EnricherOption configures the enricher.
type EnricherOption func(*Enricher)

// WithEnrichBatchSize sets the parallel fan-out per batch.
func WithEnrichBatchSize(n int) EnricherOption {
	return func(e *Enricher) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithEnrichBatchDelay sets the pause between batches.
func WithEnrichBatchDelay(d time.Duration) EnricherOption {
	return func(e *Enricher) {
		if d >= 0 {
			e.batchDelay = d
		}
	}
}

// WithEnrichRetryPolicy overrides the per-concept retry policy.
func WithEnrichRetryPolicy(p retry.Policy) EnricherOption {
	return func(e *Enricher) {
		e.retryPolicy = p
	}
}

// NewEnricher creates a concept enricher backed by the understanding
// service.
func NewEnricher(understanding driven.UnderstandingService, opts ...EnricherOption) *Enricher {
	e := &Enricher{
		understanding: understanding,
		batchSize:     DefaultEnrichBatchSize,
		batchDelay:    DefaultEnrichBatchDelay,
		retryPolicy: retry.Policy{
			MaxAttempts: DefaultEnrichMaxAttempts,
			Backoff:     retry.DefaultBackoff(time.Second, 2*time.Second),
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich produces enrichments for every concept in the graph. The
// returned slice holds only the concepts that succeeded; failures are
// logged with the concept name. Enrich itself fails only when the
// service is unavailable.
func (e *Enricher) Enrich(
	ctx context.Context,
	graph *domain.ConceptGraph,
	chunks []domain.Chunk,
) ([]domain.Enrichment, error) {
	if e.understanding == nil {
		return nil, domain.ErrUnderstandingUnavailable
	}

	concepts := graph.Concepts
	results := make([]*domain.Enrichment, len(concepts))
	errs := make([]error, len(concepts))

	for start := 0; start < len(concepts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(concepts) {
			end = len(concepts)
		}

		var g errgroup.Group
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				enrichment, err := e.enrichConcept(ctx, graph, concepts[i], chunks)
				if err != nil {
					// Settle-all: record the failure, let siblings finish.
					errs[i] = err
					return nil
				}
				results[i] = enrichment
				return nil
			})
		}
		_ = g.Wait()

		if end < len(concepts) && e.batchDelay > 0 {
			select {
			case <-ctx.Done():
				return collectEnrichments(concepts, results, errs), ctx.Err()
			case <-time.After(e.batchDelay):
			}
		}
	}

	return collectEnrichments(concepts, results, errs), nil
}

// collectEnrichments gathers successes and logs failures by concept name.
func collectEnrichments(concepts []domain.Concept, results []*domain.Enrichment, errs []error) []domain.Enrichment {
	enrichments := make([]domain.Enrichment, 0, len(concepts))
	for i, r := range results {
		if r != nil {
			enrichments = append(enrichments, *r)
			continue
		}
		if errs[i] != nil {
			logger.Warn("enricher: concept %q failed: %v", concepts[i].Name, errs[i])
		}
	}
	return enrichments
}

// enrichConcept runs one retried understanding call for a concept.
func (e *Enricher) enrichConcept(
	ctx context.Context,
	graph *domain.ConceptGraph,
	concept domain.Concept,
	chunks []domain.Chunk,
) (*domain.Enrichment, error) {
	prompt := buildEnrichPrompt(graph, concept, chunks)

	var raw json.RawMessage
	err := retry.Do(ctx, e.retryPolicy, func(ctx context.Context) error {
		var callErr error
		raw, callErr = e.understanding.Complete(ctx, driven.CompletionRequest{
			System:     enrichSystemPrompt,
			Prompt:     prompt,
			SchemaName: "concept_enrichment",
			Schema:     enrichmentSchema,
		})
		return callErr
	})
	if err != nil {
		return nil, err
	}

	var payload enrichmentPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	if len(payload.LearningObjectives) == 0 {
		return nil, fmt.Errorf("%w: no learning objectives", domain.ErrMalformedResponse)
	}

	enrichment := &domain.Enrichment{
		ConceptID:          concept.ID,
		LearningObjectives: payload.LearningObjectives,
		KeyInsights:        payload.KeyInsights,
		CommonQuestions:    payload.CommonQuestions,
	}
	for _, mi := range payload.MasteryIndicators {
		enrichment.MasteryIndicators = append(enrichment.MasteryIndicators, domain.MasteryIndicator{
			SkillID:     mi.SkillID,
			Description: mi.Description,
			Tier:        normaliseDifficulty(mi.Tier),
			TestMethod:  mi.TestMethod,
		})
	}
	for _, mc := range payload.Misconceptions {
		enrichment.Misconceptions = append(enrichment.Misconceptions, domain.Misconception{
			Misconception: mc.Misconception,
			Reality:       mc.Reality,
			Correction:    mc.Correction,
		})
	}
	return enrichment, nil
}

// buildEnrichPrompt assembles the per-concept prompt: prerequisite
// names plus the chunks tagged with or mentioning the concept.
func buildEnrichPrompt(graph *domain.ConceptGraph, concept domain.Concept, chunks []domain.Chunk) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Concept: %s\nDescription: %s\nDifficulty: %s\n",
		concept.Name, concept.Description, concept.Difficulty)

	if len(concept.Prerequisites) > 0 {
		b.WriteString("Prerequisites:")
		for _, id := range concept.Prerequisites {
			if p, ok := graph.Get(id); ok {
				b.WriteString(" " + p.Name + ";")
			}
		}
		b.WriteString("\n")
	}

	relevant := relevantChunks(concept, chunks, maxEnrichChunks)
	if len(relevant) > 0 {
		b.WriteString("\nSource excerpts:\n")
		for _, chunk := range relevant {
			fmt.Fprintf(&b, "--- [%s]\n%s\n", chunk.Type, chunk.Text)
		}
	}
	return b.String()
}

// relevantChunks selects chunks tagged with the concept ID or whose text
// mentions the concept name, up to limit.
func relevantChunks(concept domain.Concept, chunks []domain.Chunk, limit int) []domain.Chunk {
	nameLower := strings.ToLower(concept.Name)
	var relevant []domain.Chunk

	for _, chunk := range chunks {
		if len(relevant) >= limit {
			break
		}
		tagged := false
		for _, id := range chunk.ConceptIDs {
			if id == concept.ID {
				tagged = true
				break
			}
		}
		if tagged || strings.Contains(strings.ToLower(chunk.Text), nameLower) {
			relevant = append(relevant, chunk)
		}
	}
	return relevant
}
