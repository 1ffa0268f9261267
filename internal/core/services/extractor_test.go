package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tutorkit/internal/core/domain"
	"github.com/custodia-labs/tutorkit/internal/core/ports/driven"
)

func conceptResponse(concepts ...map[string]any) json.RawMessage {
	raw, _ := json.Marshal(map[string]any{"concepts": concepts})
	return raw
}

func TestExtractBuildsGraph(t *testing.T) {
	understanding := &mockUnderstanding{
		respond: func(_ driven.CompletionRequest, _ int) (json.RawMessage, error) {
			return conceptResponse(
				map[string]any{"id": "variables", "name": "Variables", "description": "Named storage.", "difficulty": "basic"},
				map[string]any{"id": "functions", "name": "Functions", "description": "Reusable logic.", "difficulty": "intermediate", "prerequisites": []string{"variables"}},
			), nil
		},
	}

	extractor := NewExtractor(understanding)
	graph, dropped, err := extractor.Extract(context.Background(),
		&driven.SourceText{Title: "Go Course", Text: "full text"}, domain.SourceMarkdown)
	require.NoError(t, err)
	assert.Empty(t, dropped)
	require.Equal(t, 2, graph.Len())

	functions, ok := graph.Get("functions")
	require.True(t, ok)
	assert.Equal(t, []string{"variables"}, functions.Prerequisites)
}

func TestExtractDropsDanglingPrerequisites(t *testing.T) {
	understanding := &mockUnderstanding{
		respond: func(_ driven.CompletionRequest, _ int) (json.RawMessage, error) {
			return conceptResponse(
				map[string]any{"id": "slices", "name": "Slices", "description": "Views.", "difficulty": "basic", "prerequisites": []string{"arrays"}},
			), nil
		},
	}

	extractor := NewExtractor(understanding)
	graph, dropped, err := extractor.Extract(context.Background(),
		&driven.SourceText{Title: "Go Course", Text: "full text"}, domain.SourceMarkdown)
	require.NoError(t, err)

	require.Len(t, dropped, 1)
	assert.ErrorIs(t, dropped[0], domain.ErrDanglingPrerequisite)
	assert.Contains(t, dropped[0].Error(), "arrays")

	slices, ok := graph.Get("slices")
	require.True(t, ok)
	assert.Empty(t, slices.Prerequisites)
}

func TestExtractNormalisesDifficulty(t *testing.T) {
	understanding := &mockUnderstanding{
		respond: func(_ driven.CompletionRequest, _ int) (json.RawMessage, error) {
			return conceptResponse(
				map[string]any{"id": "a", "name": "A", "description": "d", "difficulty": "beginner"},
				map[string]any{"id": "b", "name": "B", "description": "d", "difficulty": "expert"},
			), nil
		},
	}

	extractor := NewExtractor(understanding)
	graph, _, err := extractor.Extract(context.Background(),
		&driven.SourceText{Title: "T", Text: "text"}, domain.SourceMarkdown)
	require.NoError(t, err)

	a, _ := graph.Get("a")
	assert.Equal(t, domain.DifficultyBasic, a.Difficulty)
	b, _ := graph.Get("b")
	assert.Equal(t, domain.DifficultyIntermediate, b.Difficulty)
}

func TestExtractValidatesInput(t *testing.T) {
	extractor := NewExtractor(&mockUnderstanding{})

	_, _, err := extractor.Extract(context.Background(), nil, domain.SourceMarkdown)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, _, err = extractor.Extract(context.Background(),
		&driven.SourceText{Title: "T", Text: "   "}, domain.SourceMarkdown)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, _, err = extractor.Extract(context.Background(),
		&driven.SourceText{Title: "", Text: "text"}, domain.SourceMarkdown)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestExtractMalformedResponse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"unparseable", "not json"},
		{"empty concept list", `{"concepts": []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			understanding := &mockUnderstanding{
				respond: func(_ driven.CompletionRequest, _ int) (json.RawMessage, error) {
					return json.RawMessage(tt.raw), nil
				},
			}
			extractor := NewExtractor(understanding)
			_, _, err := extractor.Extract(context.Background(),
				&driven.SourceText{Title: "T", Text: "text"}, domain.SourceMarkdown)
			assert.ErrorIs(t, err, domain.ErrMalformedResponse)
		})
	}
}
