package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConceptGraph_KeepsValidEdges(t *testing.T) {
	g, dropped := NewConceptGraph([]Concept{
		{ID: "vars", Name: "Variables"},
		{ID: "loops", Name: "Loops", Prerequisites: []string{"vars"}},
	})

	assert.Empty(t, dropped)
	require.Equal(t, 2, g.Len())

	loops, ok := g.Get("loops")
	require.True(t, ok)
	assert.Equal(t, []string{"vars"}, loops.Prerequisites)
}

func TestNewConceptGraph_DropsDanglingEdges(t *testing.T) {
	g, dropped := NewConceptGraph([]Concept{
		{ID: "vars", Name: "Variables"},
		{ID: "loops", Name: "Loops", Prerequisites: []string{"vars", "ghost"}},
	})

	require.Len(t, dropped, 1)
	assert.ErrorIs(t, dropped[0], ErrDanglingPrerequisite)
	assert.Contains(t, dropped[0].Error(), "loops -> ghost")

	loops, ok := g.Get("loops")
	require.True(t, ok)
	assert.Equal(t, []string{"vars"}, loops.Prerequisites)

	// The dangling endpoint is absent from the graph entirely.
	assert.False(t, g.Contains("ghost"))
}

func TestNewConceptGraph_DropsSelfEdges(t *testing.T) {
	g, dropped := NewConceptGraph([]Concept{
		{ID: "recursion", Prerequisites: []string{"recursion"}},
	})

	require.Len(t, dropped, 1)
	c, ok := g.Get("recursion")
	require.True(t, ok)
	assert.Empty(t, c.Prerequisites)
}

func TestNewConceptGraph_IgnoresDuplicateIDs(t *testing.T) {
	g, _ := NewConceptGraph([]Concept{
		{ID: "vars", Name: "Variables"},
		{ID: "vars", Name: "Variables Again"},
	})

	require.Equal(t, 1, g.Len())
	c, _ := g.Get("vars")
	assert.Equal(t, "Variables", c.Name)
}

func TestConceptGraph_UnlockCounts(t *testing.T) {
	g, _ := NewConceptGraph([]Concept{
		{ID: "a"},
		{ID: "b", Prerequisites: []string{"a"}},
		{ID: "c", Prerequisites: []string{"a", "b"}},
	})

	counts := g.UnlockCounts()
	assert.Equal(t, 2, counts["a"])
	assert.Equal(t, 1, counts["b"])
	assert.Equal(t, 0, counts["c"])
}

func TestDifficulty_Rank(t *testing.T) {
	assert.Less(t, DifficultyBasic.Rank(), DifficultyIntermediate.Rank())
	assert.Less(t, DifficultyIntermediate.Rank(), DifficultyAdvanced.Rank())

	// "beginner" is an accepted alias for the basic tier.
	assert.Equal(t, DifficultyBasic.Rank(), Difficulty("beginner").Rank())

	// Unknown tiers sort after every known tier.
	assert.Greater(t, Difficulty("impossible").Rank(), DifficultyAdvanced.Rank())
}

func TestChunk_DedupKey(t *testing.T) {
	a := Chunk{Provenance: Provenance{Section: "Intro", StartLine: 0, EndLine: 10}}
	b := Chunk{Provenance: Provenance{Section: "Intro", StartLine: 0, EndLine: 10}}
	c := Chunk{Provenance: Provenance{Section: "Intro", StartLine: 11, EndLine: 20}}

	assert.Equal(t, a.DedupKey(), b.DedupKey())
	assert.NotEqual(t, a.DedupKey(), c.DedupKey())
}

func TestMapping_Mapped(t *testing.T) {
	assert.True(t, Mapping{ChunkID: "c1", ConceptID: "vars"}.Mapped())
	assert.False(t, Mapping{ChunkID: "c1", ConceptID: UnmappedConcept}.Mapped())
	assert.False(t, Mapping{ChunkID: "c1"}.Mapped())
}
