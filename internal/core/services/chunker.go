package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/tutorkit/internal/core/domain"
	"github.com/custodia-labs/tutorkit/internal/core/ports/driven"
	"github.com/custodia-labs/tutorkit/internal/logger"
	"github.com/custodia-labs/tutorkit/internal/retry"
)

// chunkSchema constrains the understanding response for one section.
var chunkSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"chunks": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"type": {"type": "string", "enum": ["definition", "example", "explanation", "exercise", "overview"]},
					"text": {"type": "string"},
					"concept_ids": {"type": "array", "items": {"type": "string"}}
				},
				"required": ["type", "text"],
				"additionalProperties": false
			}
		}
	},
	"required": ["chunks"],
	"additionalProperties": false
}`)

// chunkPayload mirrors chunkSchema for decoding.
type chunkPayload struct {
	Chunks []struct {
		Type       string   `json:"type"`
		Text       string   `json:"text"`
		ConceptIDs []string `json:"concept_ids"`
	} `json:"chunks"`
}

const chunkSystemPrompt = `You split educational material into self-contained chunks of roughly 300-800 tokens.
Keep a definition together with its explanation and example.
Classify each chunk as definition, example, explanation, exercise or overview.
When a concept vocabulary is supplied, tag chunks only with IDs from that vocabulary.`

// Chunker decomposes a source into provenance-tagged semantic chunks.
// A failing section contributes zero chunks and is logged; it does not
// abort the stage.
type Chunker struct {
	understanding driven.UnderstandingService
	retryPolicy   retry.Policy

	segmentGap      float64
	maxSegmentLines int
}

// ChunkerOption configures the chunker.
type ChunkerOption func(*Chunker)

// WithSegmentGap sets the transcript silence gap (seconds) that starts
// a new section.
func WithSegmentGap(gap float64) ChunkerOption {
	return func(c *Chunker) {
		if gap > 0 {
			c.segmentGap = gap
		}
	}
}

// WithChunkerRetryPolicy overrides the per-section retry policy.
func WithChunkerRetryPolicy(p retry.Policy) ChunkerOption {
	return func(c *Chunker) {
		c.retryPolicy = p
	}
}

// NewChunker creates a semantic chunker backed by the understanding
// service.
func NewChunker(understanding driven.UnderstandingService, opts ...ChunkerOption) *Chunker {
	c := &Chunker{
		understanding:   understanding,
		retryPolicy:     retry.Policy{},
		segmentGap:      defaultSegmentGap,
		maxSegmentLines: defaultMaxSegmentLines,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chunk splits the source into sections, runs the understanding pass per
// section and attaches provenance to every produced chunk. The supplied
// vocabulary pins concept tags to canonical IDs. An error is returned
// only when the service is unavailable or every section failed.
func (c *Chunker) Chunk(
	ctx context.Context,
	lib domain.Library,
	src *driven.SourceText,
	vocabulary []domain.Concept,
) ([]domain.Chunk, error) {
	if c.understanding == nil {
		return nil, domain.ErrUnderstandingUnavailable
	}
	if src == nil || strings.TrimSpace(src.Text) == "" {
		return nil, fmt.Errorf("%w: empty source text", domain.ErrInvalidInput)
	}

	var sections []sectionSpan
	if lib.Type.Spoken() {
		sections = segmentTranscript(src.Text, c.segmentGap, c.maxSegmentLines)
	} else {
		sections = splitSections(src.Text)
	}
	logger.Debug("chunker: %d sections for library %s", len(sections), lib.ID)

	vocabIDs := make(map[string]bool, len(vocabulary))
	for _, concept := range vocabulary {
		vocabIDs[concept.ID] = true
	}

	var chunks []domain.Chunk
	failed := 0
	position := 0

	for _, section := range sections {
		sectionChunks, err := c.chunkSection(ctx, lib, section, vocabulary, vocabIDs, &position)
		if err != nil {
			failed++
			logger.Warn("chunker: section %q failed: %v", section.Heading, err)
			continue
		}
		chunks = append(chunks, sectionChunks...)
	}

	if len(chunks) == 0 && failed > 0 {
		return nil, fmt.Errorf("all %d sections failed", failed)
	}
	return chunks, nil
}

// chunkSection runs the understanding pass for one section.
func (c *Chunker) chunkSection(
	ctx context.Context,
	lib domain.Library,
	section sectionSpan,
	vocabulary []domain.Concept,
	vocabIDs map[string]bool,
	position *int,
) ([]domain.Chunk, error) {
	text := stripEmptyFences(section.Text)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	prompt := buildChunkPrompt(lib, section, text, vocabulary)

	var raw json.RawMessage
	err := retry.Do(ctx, c.retryPolicy, func(ctx context.Context) error {
		var callErr error
		raw, callErr = c.understanding.Complete(ctx, driven.CompletionRequest{
			System:     chunkSystemPrompt,
			Prompt:     prompt,
			SchemaName: "section_chunks",
			Schema:     chunkSchema,
		})
		return callErr
	})
	if err != nil {
		return nil, err
	}

	var payload chunkPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}

	chunks := make([]domain.Chunk, 0, len(payload.Chunks))
	for _, pc := range payload.Chunks {
		if strings.TrimSpace(pc.Text) == "" {
			continue
		}

		chunkType := domain.ChunkType(pc.Type)
		if !chunkType.Valid() {
			chunkType = domain.ChunkExplanation
		}

		conceptIDs := pc.ConceptIDs
		if len(vocabIDs) > 0 {
			conceptIDs = filterKnownIDs(conceptIDs, vocabIDs)
		}

		chunks = append(chunks, domain.Chunk{
			ID:         uuid.New().String(),
			LibraryID:  lib.ID,
			Type:       chunkType,
			Text:       pc.Text,
			ConceptIDs: conceptIDs,
			Position:   *position,
			Provenance: domain.Provenance{
				LibraryID:   lib.ID,
				Section:     section.Heading,
				HeadingPath: section.Path,
				Anchor:      section.Anchor,
				StartLine:   section.StartLine,
				EndLine:     section.EndLine,
				StartTime:   section.StartTime,
				EndTime:     section.EndTime,
			},
		})
		*position++
	}

	return chunks, nil
}

// buildChunkPrompt assembles the per-section prompt, including the
// concept vocabulary when one is available.
func buildChunkPrompt(lib domain.Library, section sectionSpan, text string, vocabulary []domain.Concept) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Source: %s (%s)\nSection: %s\n", lib.Title, lib.Type, section.Heading)

	if len(vocabulary) > 0 {
		b.WriteString("\nConcept vocabulary (id: name):\n")
		for _, concept := range vocabulary {
			fmt.Fprintf(&b, "- %s: %s\n", concept.ID, concept.Name)
		}
	}

	b.WriteString("\nSection content:\n")
	b.WriteString(text)
	return b.String()
}

// filterKnownIDs drops concept references outside the vocabulary.
func filterKnownIDs(ids []string, known map[string]bool) []string {
	kept := ids[:0]
	for _, id := range ids {
		if known[id] {
			kept = append(kept, id)
		}
	}
	return kept
}
