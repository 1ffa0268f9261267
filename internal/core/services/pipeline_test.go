package services

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tutorkit/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/tutorkit/internal/core/domain"
	"github.com/custodia-labs/tutorkit/internal/core/ports/driven"
)

const pipelineSource = `# Slices
A slice is a view over an array.

# Maps
A map is a hash table.`

// stageResponder answers every pipeline stage with a minimal valid
// payload so a full run can complete against in-memory stores.
func stageResponder(req driven.CompletionRequest, _ int) (json.RawMessage, error) {
	switch req.SchemaName {
	case "concept_graph":
		return conceptResponse(
			map[string]any{"id": "slices", "name": "Slices", "description": "Views.", "difficulty": "basic"},
			map[string]any{"id": "maps", "name": "Maps", "description": "Hash tables.", "difficulty": "basic", "prerequisites": []string{"slices"}},
		), nil
	case "section_chunks":
		return chunkResponse(map[string]any{
			"type": "definition", "text": "chunk text", "concept_ids": []string{"slices"},
		}), nil
	case "concept_enrichment":
		return validEnrichment, nil
	case "chunk_mappings":
		var mappings []map[string]any
		for _, line := range strings.Split(req.Prompt, "\n") {
			if id, ok := strings.CutPrefix(line, "--- chunk_id: "); ok {
				mappings = append(mappings, map[string]any{
					"chunk_id": id, "concept_id": "slices", "confidence": 0.9,
				})
			}
		}
		return mappingResponse(mappings...), nil
	}
	return nil, domain.ErrMalformedResponse
}

// pipelineFixture wires a full orchestrator over in-memory stores.
type pipelineFixture struct {
	libraries     *memory.LibraryStore
	graph         *memory.GraphStore
	understanding *mockUnderstanding
	embedding     *mockEmbedding
	orchestrator  *Orchestrator
}

func newPipelineFixture(t *testing.T, lib domain.Library) *pipelineFixture {
	t.Helper()

	libraries := memory.NewLibraryStore()
	require.NoError(t, libraries.Save(context.Background(), lib))

	graph := memory.NewGraphStore()
	understanding := &mockUnderstanding{respond: stageResponder}
	embedding := newMockEmbedding(3)
	reader := &mockSourceReader{src: &driven.SourceText{Title: lib.Title, Text: pipelineSource}}

	orchestrator := NewOrchestrator(
		libraries, graph, graph, graph, graph, libraries, reader,
		NewChunker(understanding),
		NewExtractor(understanding),
		NewEnricher(understanding, WithEnrichBatchDelay(0)),
		NewMapper(understanding),
		NewIndexer(embedding),
	)

	return &pipelineFixture{
		libraries:     libraries,
		graph:         graph,
		understanding: understanding,
		embedding:     embedding,
		orchestrator:  orchestrator,
	}
}

func pendingLibrary() domain.Library {
	return domain.Library{
		ID:     "lib-1",
		URL:    "/course/slices.md",
		Type:   domain.SourceMarkdown,
		Title:  "Go Course",
		Status: domain.StatusPending,
	}
}

func TestProcessFullRun(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t, pendingLibrary())

	require.NoError(t, f.orchestrator.Process(ctx, "lib-1"))

	lib, err := f.libraries.Get(ctx, "lib-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReady, lib.Status)
	assert.Equal(t, 2, lib.Stats.Concepts)
	assert.Equal(t, 2, lib.Stats.Chunks)
	assert.Equal(t, 2, lib.Stats.Embeddings)

	for _, stage := range domain.Stages(domain.SourceMarkdown) {
		exists, err := f.graph.HasArtifact(ctx, "lib-1", stage)
		require.NoError(t, err)
		assert.True(t, exists, string(stage))
	}

	logs, err := f.libraries.GetLogs(ctx, "lib-1")
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Contains(t, logs[len(logs)-1].Message, "ready:")

	mappings, err := f.graph.GetMappings(ctx, "lib-1")
	require.NoError(t, err)
	assert.Len(t, mappings, 2)
}

func TestProcessSkipsStagesWithArtifacts(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t, pendingLibrary())

	require.NoError(t, f.orchestrator.Process(ctx, "lib-1"))

	// Reset to pending as a crashed run would leave it, keeping every
	// stage artifact in place.
	require.NoError(t, f.libraries.UpdateStatus(ctx, "lib-1", domain.StatusPending, "pending", domain.LibraryStats{}))
	callsBefore := f.understanding.callCount()
	embedsBefore := f.embedding.callCount()

	require.NoError(t, f.orchestrator.Process(ctx, "lib-1"))

	// Resumption with all artifacts present makes no model calls.
	assert.Equal(t, callsBefore, f.understanding.callCount())
	assert.Equal(t, embedsBefore, f.embedding.callCount())

	lib, err := f.libraries.Get(ctx, "lib-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReady, lib.Status)

	logs, err := f.libraries.GetLogs(ctx, "lib-1")
	require.NoError(t, err)
	skipped := 0
	for _, entry := range logs {
		if strings.Contains(entry.Message, "skipping") {
			skipped++
		}
	}
	assert.Equal(t, len(domain.Stages(domain.SourceMarkdown)), skipped)
}

func TestProcessResumesAfterPartialRun(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t, pendingLibrary())

	// Seed the concepts artifact as a prior interrupted run would have.
	require.NoError(t, f.graph.SaveConcepts(ctx, "lib-1", []domain.Concept{
		{ID: "slices", Name: "Slices", Difficulty: domain.DifficultyBasic},
	}))

	require.NoError(t, f.orchestrator.Process(ctx, "lib-1"))

	for _, req := range f.understanding.reqs {
		assert.NotEqual(t, "concept_graph", req.SchemaName, "extraction must be skipped")
	}

	lib, err := f.libraries.Get(ctx, "lib-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReady, lib.Status)
	assert.Equal(t, 1, lib.Stats.Concepts)
}

func TestProcessStageFailureMarksFailed(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t, pendingLibrary())
	f.understanding.respond = func(req driven.CompletionRequest, call int) (json.RawMessage, error) {
		if req.SchemaName == "concept_graph" {
			return json.RawMessage("not json"), nil
		}
		return stageResponder(req, call)
	}

	err := f.orchestrator.Process(ctx, "lib-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)

	lib, getErr := f.libraries.Get(ctx, "lib-1")
	require.NoError(t, getErr)
	assert.Equal(t, domain.StatusFailed, lib.Status)
	assert.Contains(t, lib.Progress, "stage concepts")

	logs, logErr := f.libraries.GetLogs(ctx, "lib-1")
	require.NoError(t, logErr)
	var sawError bool
	for _, entry := range logs {
		if entry.Level == domain.LogError {
			sawError = true
		}
	}
	assert.True(t, sawError)
}

func TestProcessRejectsConcurrentRun(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t, pendingLibrary())

	started := make(chan struct{})
	release := make(chan struct{})
	f.understanding.respond = func(req driven.CompletionRequest, call int) (json.RawMessage, error) {
		if call == 1 {
			close(started)
		}
		<-release
		return stageResponder(req, call)
	}

	done := make(chan error, 1)
	go func() {
		done <- f.orchestrator.Process(ctx, "lib-1")
	}()

	<-started
	err := f.orchestrator.Process(ctx, "lib-1")
	assert.ErrorIs(t, err, domain.ErrProcessingInProgress)

	close(release)
	require.NoError(t, <-done)
}

func TestProcessUnknownLibrary(t *testing.T) {
	f := newPipelineFixture(t, pendingLibrary())
	err := f.orchestrator.Process(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProcessRejectsReadyLibrary(t *testing.T) {
	lib := pendingLibrary()
	lib.Status = domain.StatusReady
	f := newPipelineFixture(t, lib)

	err := f.orchestrator.Process(context.Background(), "lib-1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestReimportClearsArtifactsAndLogs(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t, pendingLibrary())

	require.NoError(t, f.orchestrator.Process(ctx, "lib-1"))
	require.NoError(t, f.orchestrator.Reimport(ctx, "lib-1"))

	lib, err := f.libraries.Get(ctx, "lib-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, lib.Status)
	assert.Equal(t, domain.LibraryStats{}, lib.Stats)

	for _, stage := range domain.Stages(domain.SourceMarkdown) {
		exists, err := f.graph.HasArtifact(ctx, "lib-1", stage)
		require.NoError(t, err)
		assert.False(t, exists, string(stage))
	}

	logs, err := f.libraries.GetLogs(ctx, "lib-1")
	require.NoError(t, err)
	assert.Empty(t, logs)

	// A fresh run recomputes everything from scratch.
	callsBefore := f.understanding.callCount()
	require.NoError(t, f.orchestrator.Process(ctx, "lib-1"))
	assert.Greater(t, f.understanding.callCount(), callsBefore)
}

func TestReimportPendingLibraryIsInvalid(t *testing.T) {
	f := newPipelineFixture(t, pendingLibrary())
	err := f.orchestrator.Reimport(context.Background(), "lib-1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestProcessIndependentLibrariesConcurrently(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t, pendingLibrary())

	second := pendingLibrary()
	second.ID = "lib-2"
	require.NoError(t, f.libraries.Save(ctx, second))

	errs := make(chan error, 2)
	for _, id := range []string{"lib-1", "lib-2"} {
		id := id
		go func() {
			errs <- f.orchestrator.Process(ctx, id)
		}()
	}

	for i := 0; i < 2; i++ {
		select {
		case err := <-errs:
			require.NoError(t, err)
		case <-time.After(30 * time.Second):
			t.Fatal("timed out waiting for concurrent runs")
		}
	}

	for _, id := range []string{"lib-1", "lib-2"} {
		lib, err := f.libraries.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusReady, lib.Status)
	}
}
