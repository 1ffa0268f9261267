package domain

import "fmt"

// Difficulty is the learning difficulty tier of a concept.
type Difficulty string

// Difficulty tiers, ordered from easiest to hardest.
const (
	DifficultyBasic        Difficulty = "basic"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Rank returns an ordinal for sorting (basic < intermediate < advanced).
// Unknown tiers sort last.
func (d Difficulty) Rank() int {
	switch d {
	case DifficultyBasic, "beginner":
		return 0
	case DifficultyIntermediate:
		return 1
	case DifficultyAdvanced:
		return 2
	}
	return 3
}

// Concept is a node in the pedagogical prerequisite DAG.
type Concept struct {
	// ID is the canonical concept identifier.
	ID string

	// Name is the human-readable concept name.
	Name string

	// Description summarises what the concept covers.
	Description string

	// Difficulty is the learning tier.
	Difficulty Difficulty

	// Prerequisites are the IDs of concepts that must be mastered first.
	// The graph is acyclic by construction, not runtime-enforced.
	Prerequisites []string
}

// ConceptGraph is the validated concept set for one library, in
// extraction order.
type ConceptGraph struct {
	Concepts []Concept

	byID map[string]int
}

// NewConceptGraph builds a graph from concepts, dropping any
// prerequisite edge whose endpoint is absent from the node set. Each
// dropped edge is returned as an ErrDanglingPrerequisite so callers can
// log it; a dangling edge is a data-quality defect, never a fatal
// error.
func NewConceptGraph(concepts []Concept) (*ConceptGraph, []error) {
	g := &ConceptGraph{
		Concepts: make([]Concept, 0, len(concepts)),
		byID:     make(map[string]int, len(concepts)),
	}
	for _, c := range concepts {
		if _, ok := g.byID[c.ID]; ok {
			continue
		}
		g.byID[c.ID] = len(g.Concepts)
		g.Concepts = append(g.Concepts, c)
	}

	var dropped []error
	for i := range g.Concepts {
		c := &g.Concepts[i]
		kept := c.Prerequisites[:0]
		for _, p := range c.Prerequisites {
			if _, ok := g.byID[p]; ok && p != c.ID {
				kept = append(kept, p)
				continue
			}
			dropped = append(dropped, fmt.Errorf("%w: %s -> %s", ErrDanglingPrerequisite, c.ID, p))
		}
		c.Prerequisites = kept
	}
	return g, dropped
}

// Get returns the concept with the given ID.
func (g *ConceptGraph) Get(id string) (*Concept, bool) {
	i, ok := g.byID[id]
	if !ok {
		return nil, false
	}
	return &g.Concepts[i], true
}

// Contains reports whether the graph holds the given concept ID.
func (g *ConceptGraph) Contains(id string) bool {
	_, ok := g.byID[id]
	return ok
}

// Len returns the number of concepts in the graph.
func (g *ConceptGraph) Len() int {
	return len(g.Concepts)
}

// UnlockCounts returns, per concept ID, the number of concepts that list
// it as a direct prerequisite.
func (g *ConceptGraph) UnlockCounts() map[string]int {
	counts := make(map[string]int, len(g.Concepts))
	for _, c := range g.Concepts {
		for _, p := range c.Prerequisites {
			counts[p]++
		}
	}
	return counts
}

// MasteryIndicator is an assessable skill tied to a concept.
type MasteryIndicator struct {
	// SkillID identifies the skill within the concept.
	SkillID string

	// Description says what the learner can do.
	Description string

	// Tier is the difficulty tier of the skill.
	Tier Difficulty

	// TestMethod describes how mastery is judged in dialogue.
	TestMethod string
}

// Misconception is a common wrong belief with its correction.
type Misconception struct {
	// Misconception states the wrong belief.
	Misconception string

	// Reality states what is actually true.
	Reality string

	// Correction suggests how to repair the misunderstanding.
	Correction string
}

// Enrichment holds the learning metadata attached to one concept.
// There is at most one enrichment per concept.
type Enrichment struct {
	// ConceptID is the enriched concept.
	ConceptID string

	// LearningObjectives are 3-5 observable goals.
	LearningObjectives []string

	// MasteryIndicators are the assessable skills.
	MasteryIndicators []MasteryIndicator

	// Misconceptions are common wrong beliefs with corrections.
	Misconceptions []Misconception

	// KeyInsights are the ideas worth emphasising.
	KeyInsights []string

	// CommonQuestions are questions learners frequently ask.
	CommonQuestions []string
}
