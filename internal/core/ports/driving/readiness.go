package driving

import "github.com/custodia-labs/tutorkit/internal/core/domain"

// ReadinessService classifies concepts against a mastered set and ranks
// what to learn next. It operates read-only over an already-persisted
// concept graph and supports unbounded concurrent callers.
type ReadinessService interface {
	// Classify partitions the graph's concepts into mastered, ready and
	// locked. The three sets are pairwise disjoint and cover the graph
	// for any mastered set.
	Classify(graph *domain.ConceptGraph, mastered map[string]bool) Classification

	// Recommend ranks the ready concepts: ascending difficulty tier,
	// ties broken by descending unlock-count, capped at n.
	Recommend(graph *domain.ConceptGraph, mastered map[string]bool, n int) []Recommendation
}

// Classification is the three-way readiness partition.
type Classification struct {
	// Mastered are concepts in the mastered set.
	Mastered []domain.Concept

	// Ready are unmastered concepts whose prerequisites are all mastered.
	Ready []domain.Concept

	// Locked are unmastered concepts with at least one unmastered
	// prerequisite.
	Locked []domain.Concept
}

// Recommendation is one ranked next-concept suggestion.
type Recommendation struct {
	// Concept is the suggested concept.
	Concept domain.Concept

	// Unlocks is the number of concepts directly depending on it.
	Unlocks int
}
