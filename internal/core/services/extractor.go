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

// conceptSchema constrains the extraction response.
var conceptSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"concepts": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"id": {"type": "string"},
					"name": {"type": "string"},
					"description": {"type": "string"},
					"difficulty": {"type": "string", "enum": ["basic", "beginner", "intermediate", "advanced"]},
					"prerequisites": {"type": "array", "items": {"type": "string"}}
				},
				"required": ["id", "name", "description", "difficulty"],
				"additionalProperties": false
			}
		}
	},
	"required": ["concepts"],
	"additionalProperties": false
}`)

// conceptPayload mirrors conceptSchema for decoding.
type conceptPayload struct {
	Concepts []struct {
		ID            string   `json:"id"`
		Name          string   `json:"name"`
		Description   string   `json:"description"`
		Difficulty    string   `json:"difficulty"`
		Prerequisites []string `json:"prerequisites"`
	} `json:"concepts"`
}

const extractSystemPrompt = `You extract the pedagogical concept graph from educational material.
Return 20-30 concepts that are taught in depth, excluding tools that are only mentioned in passing.
Give each concept a short kebab-case id, a name, a one-sentence description, a difficulty tier
and the ids of concepts a learner must master first. Prerequisites must form a directed acyclic graph.`

// Extractor derives a concept DAG from full source text.
type Extractor struct {
	understanding driven.UnderstandingService
	retryPolicy   retry.Policy
}

// NewExtractor creates a concept extractor backed by the understanding
// service.
func NewExtractor(understanding driven.UnderstandingService) *Extractor {
	return &Extractor{understanding: understanding}
}

// Extract returns the validated concept graph for a source, along with
// the dangling prerequisite edges that were dropped during validation.
// It fails only on missing required inputs or a wholly unparseable
// result.
func (e *Extractor) Extract(
	ctx context.Context,
	src *driven.SourceText,
	sourceType domain.SourceType,
) (*domain.ConceptGraph, []error, error) {
	if e.understanding == nil {
		return nil, nil, domain.ErrUnderstandingUnavailable
	}
	if src == nil || strings.TrimSpace(src.Text) == "" {
		return nil, nil, fmt.Errorf("%w: empty source text", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(src.Title) == "" {
		return nil, nil, fmt.Errorf("%w: missing title", domain.ErrInvalidInput)
	}

	prompt := buildExtractPrompt(src, sourceType)

	var raw json.RawMessage
	err := retry.Do(ctx, e.retryPolicy, func(ctx context.Context) error {
		var callErr error
		raw, callErr = e.understanding.Complete(ctx, driven.CompletionRequest{
			System:     extractSystemPrompt,
			Prompt:     prompt,
			SchemaName: "concept_graph",
			Schema:     conceptSchema,
		})
		return callErr
	})
	if err != nil {
		return nil, nil, fmt.Errorf("extract concepts: %w", err)
	}

	var payload conceptPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	if len(payload.Concepts) == 0 {
		return nil, nil, fmt.Errorf("%w: no concepts returned", domain.ErrMalformedResponse)
	}

	concepts := make([]domain.Concept, 0, len(payload.Concepts))
	for _, pc := range payload.Concepts {
		if strings.TrimSpace(pc.ID) == "" || strings.TrimSpace(pc.Name) == "" {
			continue
		}
		concepts = append(concepts, domain.Concept{
			ID:            pc.ID,
			Name:          pc.Name,
			Description:   pc.Description,
			Difficulty:    normaliseDifficulty(pc.Difficulty),
			Prerequisites: pc.Prerequisites,
		})
	}

	graph, dropped := domain.NewConceptGraph(concepts)
	for _, edge := range dropped {
		logger.Warn("extractor: %v", edge)
	}
	return graph, dropped, nil
}

// buildExtractPrompt assembles the full-text extraction prompt.
func buildExtractPrompt(src *driven.SourceText, sourceType domain.SourceType) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", src.Title)
	if src.Author != "" {
		fmt.Fprintf(&b, "Author: %s\n", src.Author)
	}
	fmt.Fprintf(&b, "Source type: %s\n\nFull text:\n", sourceType)
	b.WriteString(src.Text)
	return b.String()
}

// normaliseDifficulty folds the "beginner" alias into the basic tier.
func normaliseDifficulty(d string) domain.Difficulty {
	switch domain.Difficulty(d) {
	case domain.DifficultyBasic, "beginner":
		return domain.DifficultyBasic
	case domain.DifficultyIntermediate:
		return domain.DifficultyIntermediate
	case domain.DifficultyAdvanced:
		return domain.DifficultyAdvanced
	}
	return domain.DifficultyIntermediate
}
