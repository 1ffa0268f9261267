package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/tutorkit/internal/core/domain"
	"github.com/custodia-labs/tutorkit/internal/core/ports/driven"
	"github.com/custodia-labs/tutorkit/internal/core/ports/driving"
	"github.com/custodia-labs/tutorkit/internal/logger"
)

// Ensure Orchestrator implements the interface.
var _ driving.Pipeline = (*Orchestrator)(nil)

// Orchestrator sequences the ingestion stages for a library, persists
// status, progress and logs, and guarantees idempotent resumption via
// per-stage artifact checks. Independent libraries process fully
// concurrently; re-processing the same library is rejected while a run
// is active.
type Orchestrator struct {
	libraries  driven.LibraryStore
	concepts   driven.ConceptStore
	chunks     driven.ChunkStore
	embeddings driven.EmbeddingStore
	artifacts  driven.ArtifactStore
	progress   driven.ProgressSink
	reader     driven.SourceReader

	chunker   *Chunker
	extractor *Extractor
	enricher  *Enricher
	mapper    *Mapper
	indexer   *Indexer

	mu         sync.Mutex
	activeRuns map[string]bool
}

// NewOrchestrator creates a pipeline orchestrator.
func NewOrchestrator(
	libraries driven.LibraryStore,
	concepts driven.ConceptStore,
	chunks driven.ChunkStore,
	embeddings driven.EmbeddingStore,
	artifacts driven.ArtifactStore,
	progress driven.ProgressSink,
	reader driven.SourceReader,
	chunker *Chunker,
	extractor *Extractor,
	enricher *Enricher,
	mapper *Mapper,
	indexer *Indexer,
) *Orchestrator {
	return &Orchestrator{
		libraries:  libraries,
		concepts:   concepts,
		chunks:     chunks,
		embeddings: embeddings,
		artifacts:  artifacts,
		progress:   progress,
		reader:     reader,
		chunker:    chunker,
		extractor:  extractor,
		enricher:   enricher,
		mapper:     mapper,
		indexer:    indexer,
		activeRuns: make(map[string]bool),
	}
}

// runState carries data already loaded or produced during one run, so
// stages that were skipped can lazily reload their inputs from the
// store.
type runState struct {
	lib      domain.Library
	src      *driven.SourceText
	concepts []domain.Concept
	chunks   []domain.Chunk
}

// Process runs the stage sequence for the library's source type.
func (o *Orchestrator) Process(ctx context.Context, libraryID string) error {
	if !o.begin(libraryID) {
		return fmt.Errorf("library %s: %w", libraryID, domain.ErrProcessingInProgress)
	}
	defer o.end(libraryID)

	lib, err := o.libraries.Get(ctx, libraryID)
	if err != nil {
		return fmt.Errorf("get library: %w", err)
	}

	// 1. Transition pending -> processing.
	next, err := lib.Status.Transition(domain.StatusProcessing)
	if err != nil {
		return err
	}
	lib.Status = next
	if err := o.libraries.UpdateStatus(ctx, lib.ID, lib.Status, "processing", lib.Stats); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	// 2. Clear prior logs.
	if err := o.progress.ClearLogs(ctx, lib.ID); err != nil {
		return o.fail(ctx, *lib, "start", fmt.Errorf("clear logs: %w", err))
	}

	// 3. Resolve source text.
	src, err := o.reader.Read(ctx, *lib)
	if err != nil {
		return o.fail(ctx, *lib, "read-source", err)
	}
	if src.Title == "" {
		src.Title = lib.Title
	}

	// 4. Run the stage sequence.
	st := &runState{lib: *lib, src: src}
	for _, stage := range domain.Stages(lib.Type) {
		if err := o.runStage(ctx, st, stage); err != nil {
			return o.fail(ctx, *lib, string(stage), err)
		}
	}

	// 5. Record aggregate stats and transition to ready.
	stats, err := o.collectStats(ctx, st)
	if err != nil {
		return o.fail(ctx, *lib, "finalize", err)
	}
	if err := o.libraries.UpdateStatus(ctx, lib.ID, domain.StatusReady, "ready", stats); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	o.appendLog(ctx, lib.ID, domain.LogInfo, "finalize",
		fmt.Sprintf("ready: %d concepts, %d chunks, %d embeddings",
			stats.Concepts, stats.Chunks, stats.Embeddings))
	return nil
}

// Reimport resets a ready or failed library to pending, clearing all
// downstream artifacts and logs so a stale artifact check can never
// wrongly skip recomputation.
func (o *Orchestrator) Reimport(ctx context.Context, libraryID string) error {
	if !o.begin(libraryID) {
		return fmt.Errorf("library %s: %w", libraryID, domain.ErrProcessingInProgress)
	}
	defer o.end(libraryID)

	lib, err := o.libraries.Get(ctx, libraryID)
	if err != nil {
		return fmt.Errorf("get library: %w", err)
	}

	next, err := lib.Status.Transition(domain.StatusPending)
	if err != nil {
		return err
	}

	if err := o.artifacts.ClearArtifacts(ctx, lib.ID); err != nil {
		return fmt.Errorf("clear artifacts: %w", err)
	}
	if err := o.progress.ClearLogs(ctx, lib.ID); err != nil {
		return fmt.Errorf("clear logs: %w", err)
	}
	if err := o.libraries.UpdateStatus(ctx, lib.ID, next, "pending", domain.LibraryStats{}); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

// begin registers an active run, returning false if one already exists.
func (o *Orchestrator) begin(libraryID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.activeRuns[libraryID] {
		return false
	}
	o.activeRuns[libraryID] = true
	return true
}

// end releases the active run slot.
func (o *Orchestrator) end(libraryID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.activeRuns, libraryID)
}

// runStage checks the stage's artifact, skipping when it exists, and
// otherwise executes the stage.
func (o *Orchestrator) runStage(ctx context.Context, st *runState, stage domain.Stage) error {
	exists, err := o.artifacts.HasArtifact(ctx, st.lib.ID, stage)
	if err != nil {
		return fmt.Errorf("check artifact: %w", err)
	}
	if exists {
		logger.Debug("pipeline: skipping %s for %s", stage, st.lib.ID)
		o.appendLog(ctx, st.lib.ID, domain.LogInfo, string(stage), "skipping: artifact exists")
		return nil
	}

	logger.Stage(string(stage))
	o.appendLog(ctx, st.lib.ID, domain.LogInfo, string(stage), "starting")

	switch stage {
	case domain.StageConcepts:
		return o.runConcepts(ctx, st)
	case domain.StageChunk:
		return o.runChunk(ctx, st)
	case domain.StageEnrich:
		return o.runEnrich(ctx, st)
	case domain.StageMap:
		return o.runMap(ctx, st)
	case domain.StageEmbed:
		return o.runEmbed(ctx, st)
	}
	return fmt.Errorf("unknown stage %q", stage)
}

func (o *Orchestrator) runConcepts(ctx context.Context, st *runState) error {
	graph, dropped, err := o.extractor.Extract(ctx, st.src, st.lib.Type)
	if err != nil {
		return err
	}
	for _, edge := range dropped {
		o.appendLog(ctx, st.lib.ID, domain.LogWarn, string(domain.StageConcepts),
			edge.Error())
	}
	if err := o.concepts.SaveConcepts(ctx, st.lib.ID, graph.Concepts); err != nil {
		return fmt.Errorf("save concepts: %w", err)
	}
	st.concepts = graph.Concepts
	o.appendLog(ctx, st.lib.ID, domain.LogInfo, string(domain.StageConcepts),
		fmt.Sprintf("extracted %d concepts", graph.Len()))
	return nil
}

func (o *Orchestrator) runChunk(ctx context.Context, st *runState) error {
	if err := o.ensureConcepts(ctx, st); err != nil {
		return err
	}
	chunks, err := o.chunker.Chunk(ctx, st.lib, st.src, st.concepts)
	if err != nil {
		return err
	}
	if err := o.chunks.SaveChunks(ctx, chunks); err != nil {
		return fmt.Errorf("save chunks: %w", err)
	}
	st.chunks = chunks
	o.appendLog(ctx, st.lib.ID, domain.LogInfo, string(domain.StageChunk),
		fmt.Sprintf("produced %d chunks", len(chunks)))
	return nil
}

func (o *Orchestrator) runEnrich(ctx context.Context, st *runState) error {
	if err := o.ensureConcepts(ctx, st); err != nil {
		return err
	}
	if err := o.ensureChunks(ctx, st); err != nil {
		return err
	}

	graph, _ := domain.NewConceptGraph(st.concepts)
	enrichments, err := o.enricher.Enrich(ctx, graph, st.chunks)
	if err != nil {
		return err
	}
	if err := o.concepts.SaveEnrichments(ctx, st.lib.ID, enrichments); err != nil {
		return fmt.Errorf("save enrichments: %w", err)
	}
	o.appendLog(ctx, st.lib.ID, domain.LogInfo, string(domain.StageEnrich),
		fmt.Sprintf("enriched %d of %d concepts", len(enrichments), graph.Len()))
	return nil
}

func (o *Orchestrator) runMap(ctx context.Context, st *runState) error {
	if err := o.ensureConcepts(ctx, st); err != nil {
		return err
	}
	if err := o.ensureChunks(ctx, st); err != nil {
		return err
	}

	mappings, err := o.mapper.Map(ctx, st.chunks, st.concepts)
	if err != nil {
		return err
	}
	if err := o.chunks.SaveMappings(ctx, st.lib.ID, mappings); err != nil {
		return fmt.Errorf("save mappings: %w", err)
	}

	mapped := 0
	for _, mpg := range mappings {
		if mpg.Mapped() {
			mapped++
		}
	}
	o.appendLog(ctx, st.lib.ID, domain.LogInfo, string(domain.StageMap),
		fmt.Sprintf("mapped %d of %d chunks", mapped, len(mappings)))
	return nil
}

func (o *Orchestrator) runEmbed(ctx context.Context, st *runState) error {
	if err := o.ensureConcepts(ctx, st); err != nil {
		return err
	}
	if err := o.ensureChunks(ctx, st); err != nil {
		return err
	}
	mappings, err := o.chunks.GetMappings(ctx, st.lib.ID)
	if err != nil {
		return fmt.Errorf("get mappings: %w", err)
	}

	embeddings, err := o.indexer.IndexChunks(ctx, st.lib, st.chunks, mappings, st.concepts)
	if err != nil {
		return err
	}
	if err := o.embeddings.SaveEmbeddings(ctx, st.lib.ID, embeddings); err != nil {
		return fmt.Errorf("save embeddings: %w", err)
	}
	o.appendLog(ctx, st.lib.ID, domain.LogInfo, string(domain.StageEmbed),
		fmt.Sprintf("indexed %d embeddings", len(embeddings)))
	return nil
}

// ensureConcepts lazily loads concepts when the stage that produced
// them was skipped.
func (o *Orchestrator) ensureConcepts(ctx context.Context, st *runState) error {
	if st.concepts != nil {
		return nil
	}
	concepts, err := o.concepts.GetConcepts(ctx, st.lib.ID)
	if err != nil {
		return fmt.Errorf("load concepts: %w", err)
	}
	st.concepts = concepts
	return nil
}

// ensureChunks lazily loads chunks when the chunk stage was skipped.
func (o *Orchestrator) ensureChunks(ctx context.Context, st *runState) error {
	if st.chunks != nil {
		return nil
	}
	chunks, err := o.chunks.GetChunks(ctx, st.lib.ID)
	if err != nil {
		return fmt.Errorf("load chunks: %w", err)
	}
	st.chunks = chunks
	return nil
}

// collectStats gathers the aggregate counts recorded on success.
func (o *Orchestrator) collectStats(ctx context.Context, st *runState) (domain.LibraryStats, error) {
	if err := o.ensureConcepts(ctx, st); err != nil {
		return domain.LibraryStats{}, err
	}
	if err := o.ensureChunks(ctx, st); err != nil {
		return domain.LibraryStats{}, err
	}
	embeddings, err := o.embeddings.CountEmbeddings(ctx, st.lib.ID)
	if err != nil {
		return domain.LibraryStats{}, fmt.Errorf("count embeddings: %w", err)
	}
	return domain.LibraryStats{
		Concepts:   len(st.concepts),
		Chunks:     len(st.chunks),
		Embeddings: embeddings,
	}, nil
}

// fail wraps the error with the stage name, logs it, and transitions
// the library to failed. It never aborts processing of other libraries.
func (o *Orchestrator) fail(ctx context.Context, lib domain.Library, stage string, cause error) error {
	wrapped := fmt.Errorf("stage %s: %w", stage, cause)
	logger.Error("pipeline: library %s: %v", lib.ID, wrapped)
	o.appendLog(ctx, lib.ID, domain.LogError, stage, cause.Error())

	if err := o.libraries.UpdateStatus(ctx, lib.ID, domain.StatusFailed, wrapped.Error(), lib.Stats); err != nil {
		logger.Error("pipeline: record failure for %s: %v", lib.ID, err)
	}
	return wrapped
}

// appendLog records a processing log entry, tolerating sink failures.
func (o *Orchestrator) appendLog(ctx context.Context, libraryID string, level domain.LogLevel, stage, message string) {
	entry := domain.NewLogEntry(level, stage, message)
	if err := o.progress.AppendLog(ctx, libraryID, entry); err != nil {
		logger.Warn("pipeline: append log for %s: %v", libraryID, err)
	}
}
