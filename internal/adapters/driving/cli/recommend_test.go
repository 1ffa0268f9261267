package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tutorkit/internal/core/domain"
	"github.com/custodia-labs/tutorkit/internal/core/ports/driving"
)

func setupRecommendTest(readiness *mockReadiness, concepts *mockConceptStore) func() {
	oldReadiness, oldConcepts := readinessService, conceptStore
	readinessService = readiness
	conceptStore = concepts
	return func() {
		readinessService = oldReadiness
		conceptStore = oldConcepts
	}
}

func TestRecommendCmd_RanksReadyConcepts(t *testing.T) {
	slices := domain.Concept{ID: "slices", Name: "Slices", Difficulty: domain.DifficultyBasic, Description: "Views over arrays."}
	maps := domain.Concept{ID: "maps", Name: "Maps", Difficulty: domain.DifficultyBasic}

	cleanup := setupRecommendTest(
		&mockReadiness{
			classification: driving.Classification{
				Mastered: []domain.Concept{{ID: "variables"}},
				Ready:    []domain.Concept{slices, maps},
			},
			recommendations: []driving.Recommendation{
				{Concept: slices, Unlocks: 2},
				{Concept: maps},
			},
		},
		&mockConceptStore{concepts: []domain.Concept{
			{ID: "variables", Name: "Variables"}, slices, maps,
		}},
	)
	defer cleanup()

	out, err := runCommand("recommend", "lib-1", "--mastered", "Variables")

	require.NoError(t, err)
	assert.Contains(t, out, "1 mastered, 2 ready, 0 locked")
	assert.Contains(t, out, "1. Slices (basic, unlocks 2)")
	assert.Contains(t, out, "2. Maps (basic)")
	assert.Contains(t, out, "Views over arrays.")
}

func TestRecommendCmd_NoConcepts(t *testing.T) {
	cleanup := setupRecommendTest(&mockReadiness{}, &mockConceptStore{})
	defer cleanup()

	out, err := runCommand("recommend", "lib-1")

	require.NoError(t, err)
	assert.Contains(t, out, "No concepts extracted yet")
}

func TestRecommendCmd_NothingReady(t *testing.T) {
	cleanup := setupRecommendTest(
		&mockReadiness{},
		&mockConceptStore{concepts: []domain.Concept{{ID: "a", Name: "A"}}},
	)
	defer cleanup()

	out, err := runCommand("recommend", "lib-1")

	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to recommend")
}

func TestMasteredSet(t *testing.T) {
	concepts := []domain.Concept{
		{ID: "slices", Name: "Slices"},
		{ID: "maps", Name: "Maps"},
	}

	mastered := masteredSet(concepts, []string{"slices", "MAPS", " ", "unknown"})

	assert.True(t, mastered["slices"])
	assert.True(t, mastered["maps"], "names resolve case-insensitively to IDs")
	assert.True(t, mastered["unknown"], "unrecognised entries kept verbatim")
	assert.Len(t, mastered, 3)
}
