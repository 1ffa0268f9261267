package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var processCmd = &cobra.Command{
	Use:   "process [library-id]",
	Short: "Run the ingestion pipeline for a library",
	Long: `Runs the stage sequence (chunk, concepts, enrich, map, embed) for a
pending library. Stages whose output already exists are skipped, so an
interrupted run resumes where it stopped.`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

var reimportCmd = &cobra.Command{
	Use:   "reimport [library-id]",
	Short: "Reset a library for full reprocessing",
	Long: `Resets a ready or failed library to pending and clears every derived
artifact and log, so the next process run recomputes everything from the
source.`,
	Args: cobra.ExactArgs(1),
	RunE: runReimport,
}

func init() {
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(reimportCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	if pipeline == nil {
		return errors.New("pipeline not configured")
	}
	if libraryService == nil {
		return errors.New("library service not configured")
	}

	ctx := context.Background()
	libraryID := args[0]

	cmd.Printf("Processing library %s...\n", libraryID)
	if err := pipeline.Process(ctx, libraryID); err != nil {
		return fmt.Errorf("processing failed: %w", err)
	}

	lib, err := libraryService.Get(ctx, libraryID)
	if err != nil {
		return fmt.Errorf("load library: %w", err)
	}

	cmd.Printf("Library %s is %s.\n", lib.Title, statusLabel(lib.Status))
	cmd.Printf("  Concepts:   %d\n", lib.Stats.Concepts)
	cmd.Printf("  Chunks:     %d\n", lib.Stats.Chunks)
	cmd.Printf("  Embeddings: %d\n", lib.Stats.Embeddings)
	return nil
}

func runReimport(cmd *cobra.Command, args []string) error {
	if pipeline == nil {
		return errors.New("pipeline not configured")
	}

	if err := pipeline.Reimport(context.Background(), args[0]); err != nil {
		return fmt.Errorf("reimport failed: %w", err)
	}

	cmd.Printf("Library %s reset to pending. Run: tutorkit process %s\n", args[0], args[0])
	return nil
}
