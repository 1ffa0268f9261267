package services

import (
	"sort"

	"github.com/custodia-labs/tutorkit/internal/core/domain"
	"github.com/custodia-labs/tutorkit/internal/core/ports/driving"
)

// Ensure ReadinessService implements the interface.
var _ driving.ReadinessService = (*ReadinessService)(nil)

// DefaultRecommendations is the recommendation cap when none is given.
const DefaultRecommendations = 5

// ReadinessService classifies concepts against a mastered set and ranks
// next-concept recommendations. It is stateless and safe for unbounded
// concurrent callers.
type ReadinessService struct{}

// NewReadinessService creates a readiness engine.
func NewReadinessService() *ReadinessService {
	return &ReadinessService{}
}

// Classify partitions the graph into mastered, ready and locked.
// Ready concepts are unmastered with every prerequisite mastered; locked
// concepts have at least one unmastered prerequisite. The three sets are
// pairwise disjoint and cover the graph for any mastered set. A graph
// with a dangling or cyclic prerequisite simply yields an empty ready
// set; classification never loops.
func (s *ReadinessService) Classify(graph *domain.ConceptGraph, mastered map[string]bool) driving.Classification {
	var result driving.Classification
	if graph == nil {
		return result
	}

	for _, concept := range graph.Concepts {
		switch {
		case mastered[concept.ID]:
			result.Mastered = append(result.Mastered, concept)
		case allMastered(concept.Prerequisites, mastered):
			result.Ready = append(result.Ready, concept)
		default:
			result.Locked = append(result.Locked, concept)
		}
	}
	return result
}

// Recommend ranks the ready concepts ascending by difficulty tier,
// ties broken by descending unlock-count, and returns at most n.
func (s *ReadinessService) Recommend(graph *domain.ConceptGraph, mastered map[string]bool, n int) []driving.Recommendation {
	if graph == nil {
		return nil
	}
	if n <= 0 {
		n = DefaultRecommendations
	}

	ready := s.Classify(graph, mastered).Ready
	unlocks := graph.UnlockCounts()

	recommendations := make([]driving.Recommendation, 0, len(ready))
	for _, concept := range ready {
		recommendations = append(recommendations, driving.Recommendation{
			Concept: concept,
			Unlocks: unlocks[concept.ID],
		})
	}

	sort.SliceStable(recommendations, func(i, j int) bool {
		a, b := recommendations[i], recommendations[j]
		if a.Concept.Difficulty.Rank() != b.Concept.Difficulty.Rank() {
			return a.Concept.Difficulty.Rank() < b.Concept.Difficulty.Rank()
		}
		return a.Unlocks > b.Unlocks
	})

	if len(recommendations) > n {
		recommendations = recommendations[:n]
	}
	return recommendations
}

// allMastered reports whether every prerequisite is in the mastered set.
func allMastered(prerequisites []string, mastered map[string]bool) bool {
	for _, p := range prerequisites {
		if !mastered[p] {
			return false
		}
	}
	return true
}
