// Command tutorkit is the entry point for the tutorkit CLI.
// It wires configuration, storage and provider adapters into the core
// services and hands the command tree to cobra.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/custodia-labs/tutorkit/internal/adapters/driven/config/file"
	embeddingollama "github.com/custodia-labs/tutorkit/internal/adapters/driven/embedding/ollama"
	embeddingopenai "github.com/custodia-labs/tutorkit/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/tutorkit/internal/adapters/driven/source/filesystem"
	"github.com/custodia-labs/tutorkit/internal/adapters/driven/storage/sqlite"
	understandingopenai "github.com/custodia-labs/tutorkit/internal/adapters/driven/understanding/openai"
	"github.com/custodia-labs/tutorkit/internal/adapters/driving/cli"
	"github.com/custodia-labs/tutorkit/internal/core/ports/driven"
	"github.com/custodia-labs/tutorkit/internal/core/services"
	"github.com/custodia-labs/tutorkit/internal/logger"
)

// version is injected at build time via ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	config, err := file.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := sqlite.NewStore(config.GetString("storage.data_dir"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	understanding := buildUnderstanding(config)
	embedding := buildEmbedding(config)

	chunker := services.NewChunker(understanding)
	extractor := services.NewExtractor(understanding)
	enricher := services.NewEnricher(understanding, enricherOptions(config)...)
	mapper := services.NewMapper(understanding, mapperOptions(config)...)
	indexer := services.NewIndexer(embedding, indexerOptions(config)...)

	orchestrator := services.NewOrchestrator(
		store.LibraryStore(),
		store.ConceptStore(),
		store.ChunkStore(),
		store.EmbeddingStore(),
		store.ArtifactStore(),
		store.ProgressSink(),
		filesystem.NewReader(),
		chunker,
		extractor,
		enricher,
		mapper,
		indexer,
	)

	cli.SetVersion(version)
	cli.SetServices(cli.Services{
		Library:   services.NewLibraryService(store.LibraryStore(), store.ProgressSink(), store.ArtifactStore()),
		Pipeline:  orchestrator,
		Retrieval: services.NewRetrievalService(store.LibraryStore(), store.ChunkStore(), store.EmbeddingStore(), indexer),
		Readiness: services.NewReadinessService(),
		Concepts:  store.ConceptStore(),
	})

	return cli.Execute()
}

// buildUnderstanding constructs the understanding provider from config.
// Returns nil when no provider is configured; the pipeline then reports
// the understanding stages as unavailable instead of failing at startup,
// so read-only commands keep working.
func buildUnderstanding(config driven.ConfigStore) driven.UnderstandingService {
	apiKey := config.GetString("understanding.api_key")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil
	}

	service, err := understandingopenai.NewUnderstandingService(understandingopenai.Config{
		APIKey:            apiKey,
		BaseURL:           config.GetString("understanding.base_url"),
		Model:             config.GetString("understanding.model"),
		RequestsPerSecond: config.GetFloat("understanding.requests_per_second"),
	})
	if err != nil {
		logger.Warn("understanding provider unavailable: %v", err)
		return nil
	}
	return service
}

// buildEmbedding constructs the embedding provider from config.
// Provider "ollama" selects the local client; anything else defaults to
// OpenAI when an API key is present.
func buildEmbedding(config driven.ConfigStore) driven.EmbeddingService {
	if config.GetString("embedding.provider") == "ollama" {
		return embeddingollama.NewEmbeddingService(embeddingollama.Config{
			BaseURL:    config.GetString("embedding.base_url"),
			Model:      config.GetString("embedding.model"),
			Dimensions: config.GetInt("embedding.dimensions"),
		})
	}

	apiKey := config.GetString("embedding.api_key")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil
	}

	service, err := embeddingopenai.NewEmbeddingService(embeddingopenai.Config{
		APIKey:     apiKey,
		BaseURL:    config.GetString("embedding.base_url"),
		Model:      config.GetString("embedding.model"),
		Dimensions: config.GetInt("embedding.dimensions"),
	})
	if err != nil {
		logger.Warn("embedding provider unavailable: %v", err)
		return nil
	}
	return service
}

func enricherOptions(config driven.ConfigStore) []services.EnricherOption {
	var opts []services.EnricherOption
	if n := config.GetInt("pipeline.enrich_batch_size"); n > 0 {
		opts = append(opts, services.WithEnrichBatchSize(n))
	}
	if ms := config.GetInt("pipeline.enrich_batch_delay_ms"); ms > 0 {
		opts = append(opts, services.WithEnrichBatchDelay(time.Duration(ms)*time.Millisecond))
	}
	return opts
}

func mapperOptions(config driven.ConfigStore) []services.MapperOption {
	var opts []services.MapperOption
	if n := config.GetInt("pipeline.map_batch_size"); n > 0 {
		opts = append(opts, services.WithMapBatchSize(n))
	}

	thresholds := services.DefaultBackfillThresholds()
	overridden := false
	for key, field := range map[string]*float64{
		"mapping.backfill_low":              &thresholds.Low,
		"mapping.backfill_shared_neighbour": &thresholds.SharedNeighbour,
		"mapping.backfill_shared_inherit":   &thresholds.SharedInherit,
		"mapping.backfill_single_neighbour": &thresholds.SingleNeighbour,
		"mapping.backfill_single_inherit":   &thresholds.SingleInherit,
	} {
		if v := config.GetFloat(key); v > 0 {
			*field = v
			overridden = true
		}
	}
	if overridden {
		opts = append(opts, services.WithBackfillThresholds(thresholds))
	}
	return opts
}

func indexerOptions(config driven.ConfigStore) []services.IndexerOption {
	var opts []services.IndexerOption
	if n := config.GetInt("pipeline.embed_batch_size"); n > 0 {
		opts = append(opts, services.WithEmbedBatchSize(n))
	}
	return opts
}
