package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tutorkit/internal/core/domain"
	"github.com/custodia-labs/tutorkit/internal/core/ports/driving"
)

func setupContextTest(mock *mockRetrieval) func() {
	old := retrievalService
	retrievalService = mock
	return func() {
		retrievalService = old
	}
}

func TestContextCmd_PrintsFormattedText(t *testing.T) {
	cleanup := setupContextTest(&mockRetrieval{result: driving.ContextResult{
		FormattedText: "From Go Course - Basics (lines 1-10):\nVariables hold values.",
		Found:         true,
	}})
	defer cleanup()

	out, err := runCommand("context", "lib-1", "variables")

	require.NoError(t, err)
	assert.Contains(t, out, "Variables hold values.")
}

func TestContextCmd_PrintsSources(t *testing.T) {
	cleanup := setupContextTest(&mockRetrieval{result: driving.ContextResult{
		FormattedText: "context",
		Found:         true,
		Sources: []driving.SourceRef{
			{ChunkID: "c1", Type: domain.ChunkDefinition, Section: "Basics", StartLine: 1, EndLine: 10, Similarity: 0.82},
			{ChunkID: "c2", Type: domain.ChunkExample, Section: "Lecture", StartTime: 30, EndTime: 90, Similarity: 0.61},
		},
	}})
	defer cleanup()

	out, err := runCommand("context", "lib-1", "variables", "--sources")

	require.NoError(t, err)
	assert.Contains(t, out, "Basics (definition, lines 1-10, similarity 0.82)")
	assert.Contains(t, out, "Lecture (example, 30s-90s, similarity 0.61)")
}

func TestContextCmd_SentinelResult(t *testing.T) {
	cleanup := setupContextTest(&mockRetrieval{result: driving.ContextResult{
		FormattedText: "No relevant sections found in the source material.",
	}})
	defer cleanup()

	out, err := runCommand("context", "lib-1", "quaternions")

	require.NoError(t, err)
	assert.Contains(t, out, "No relevant sections found")
}

func TestContextCmd_NotConfigured(t *testing.T) {
	old := retrievalService
	retrievalService = nil
	defer func() { retrievalService = old }()

	_, err := runCommand("context", "lib-1", "variables")
	assert.Error(t, err)
}
