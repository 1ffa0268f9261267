package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/tutorkit/internal/core/domain"
)

var (
	recommendMastered []string
	recommendLimit    int
)

var recommendCmd = &cobra.Command{
	Use:   "recommend [library-id]",
	Short: "Recommend which concepts to study next",
	Long: `Classifies the library's concepts against a mastered set and ranks
the ready ones: easiest first, ties broken by how many further concepts
each unlocks. Mastered concepts are given by ID or name.`,
	Args: cobra.ExactArgs(1),
	RunE: runRecommend,
}

func init() {
	recommendCmd.Flags().StringSliceVarP(&recommendMastered, "mastered", "m", nil, "mastered concept IDs or names")
	recommendCmd.Flags().IntVarP(&recommendLimit, "limit", "n", 0, "maximum recommendations (0 = default)")
	rootCmd.AddCommand(recommendCmd)
}

func runRecommend(cmd *cobra.Command, args []string) error {
	if readinessService == nil {
		return errors.New("readiness service not configured")
	}
	if conceptStore == nil {
		return errors.New("concept store not configured")
	}

	concepts, err := conceptStore.GetConcepts(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("load concepts: %w", err)
	}
	if len(concepts) == 0 {
		cmd.Println("No concepts extracted yet. Run: tutorkit process " + args[0])
		return nil
	}

	graph, dropped := domain.NewConceptGraph(concepts)
	for _, edge := range dropped {
		cmd.PrintErrf("warning: %v\n", edge)
	}

	mastered := masteredSet(concepts, recommendMastered)
	classification := readinessService.Classify(graph, mastered)
	cmd.Printf("%d mastered, %d ready, %d locked\n",
		len(classification.Mastered), len(classification.Ready), len(classification.Locked))

	recommendations := readinessService.Recommend(graph, mastered, recommendLimit)
	if len(recommendations) == 0 {
		cmd.Println("Nothing to recommend: no concept has all prerequisites mastered.")
		return nil
	}

	cmd.Println()
	cmd.Println(headerStyle.Render("Study next"))
	for i, rec := range recommendations {
		cmd.Printf("  %d. %s (%s", i+1, rec.Concept.Name, rec.Concept.Difficulty)
		if rec.Unlocks > 0 {
			cmd.Printf(", unlocks %d", rec.Unlocks)
		}
		cmd.Println(")")
		if rec.Concept.Description != "" {
			cmd.Printf("     %s\n", dimStyle.Render(rec.Concept.Description))
		}
	}
	return nil
}

// masteredSet resolves user-supplied IDs or names to concept IDs.
// Unrecognised entries are kept verbatim so Classify treats them as
// unknown rather than silently dropping them.
func masteredSet(concepts []domain.Concept, entries []string) map[string]bool {
	byName := make(map[string]string, len(concepts))
	byID := make(map[string]bool, len(concepts))
	for _, c := range concepts {
		byName[strings.ToLower(c.Name)] = c.ID
		byID[c.ID] = true
	}

	mastered := make(map[string]bool, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if byID[entry] {
			mastered[entry] = true
			continue
		}
		if id, ok := byName[strings.ToLower(entry)]; ok {
			mastered[id] = true
			continue
		}
		mastered[entry] = true
	}
	return mastered
}
