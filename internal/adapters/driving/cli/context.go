package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	contextTopK      int
	contextThreshold float64
	contextSources   bool
)

var contextCmd = &cobra.Command{
	Use:   "context [library-id] [concept]",
	Short: "Retrieve teaching context for a concept",
	Long: `Embeds the concept name as a query, searches the library's indexed
chunks and prints the surviving excerpts in source order. When nothing
relevant is indexed the command prints a placeholder rather than failing.`,
	Args: cobra.ExactArgs(2),
	RunE: runContext,
}

func init() {
	contextCmd.Flags().IntVarP(&contextTopK, "top-k", "n", 0, "maximum excerpts to return (0 = default)")
	contextCmd.Flags().Float64Var(&contextThreshold, "threshold", 0, "minimum similarity (0 = default)")
	contextCmd.Flags().BoolVar(&contextSources, "sources", false, "list source references after the context")
	rootCmd.AddCommand(contextCmd)
}

func runContext(cmd *cobra.Command, args []string) error {
	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}

	libraryID, concept := args[0], args[1]
	result := retrievalService.RetrieveContext(context.Background(), concept, libraryID, contextTopK, contextThreshold)

	wrap := lipgloss.NewStyle().Width(terminalWidth())
	cmd.Println(wrap.Render(result.FormattedText))

	if !contextSources || len(result.Sources) == 0 {
		return nil
	}

	cmd.Println()
	cmd.Println(headerStyle.Render("Sources"))
	for i, src := range result.Sources {
		location := fmt.Sprintf("lines %d-%d", src.StartLine, src.EndLine)
		if src.EndTime > 0 {
			location = fmt.Sprintf("%.0fs-%.0fs", src.StartTime, src.EndTime)
		}
		cmd.Printf("  [%d] %s (%s, %s, similarity %.2f)\n",
			i+1, src.Section, src.Type, location, src.Similarity)
	}
	return nil
}
