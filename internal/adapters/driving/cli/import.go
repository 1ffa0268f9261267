package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/tutorkit/internal/core/domain"
)

var (
	importType  string
	importTitle string
)

var importCmd = &cobra.Command{
	Use:   "import [url]",
	Short: "Import an educational source",
	Long: `Registers a source for ingestion. The library starts in the pending
state; run "tutorkit process" to build its concept graph and index.

Source types:
  markdown  - markdown course or article
  video     - video transcript (plain cues, WebVTT or SRT)
  notebook  - exported Jupyter notebook`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVarP(&importType, "type", "t", "markdown", "source type (markdown, video, notebook)")
	importCmd.Flags().StringVar(&importTitle, "title", "", "library title (default: derived from the URL)")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	if libraryService == nil {
		return errors.New("library service not configured")
	}

	lib, err := libraryService.Import(context.Background(), args[0], domain.SourceType(importType), importTitle)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	cmd.Printf("Imported %s (%s)\n", lib.Title, lib.Type)
	cmd.Printf("  ID: %s\n", lib.ID)
	cmd.Printf("  Run: tutorkit process %s\n", lib.ID)
	return nil
}
