package domain

import "fmt"

// ChunkType classifies the pedagogical role of a chunk.
type ChunkType string

// Chunk types produced by the semantic chunker.
const (
	ChunkDefinition  ChunkType = "definition"
	ChunkExample     ChunkType = "example"
	ChunkExplanation ChunkType = "explanation"
	ChunkExercise    ChunkType = "exercise"
	ChunkOverview    ChunkType = "overview"
)

// Valid reports whether the chunk type is one of the known kinds.
func (t ChunkType) Valid() bool {
	switch t {
	case ChunkDefinition, ChunkExample, ChunkExplanation, ChunkExercise, ChunkOverview:
		return true
	}
	return false
}

// Section is a structural region of a document, derived deterministically
// from source text. Sections are never persisted independently of their
// chunks; they exist to carry provenance.
type Section struct {
	// Heading is the section heading text.
	Heading string

	// Path is the heading stack from the document root to this section.
	Path []string

	// Anchor is the URL-safe slug for the heading.
	Anchor string

	// StartLine is the inclusive first line of the section.
	StartLine int

	// EndLine is the inclusive last line of the section.
	EndLine int
}

// Provenance links a chunk back to its position in the source.
type Provenance struct {
	// LibraryID is the owning library.
	LibraryID string

	// Section is the heading of the originating section.
	Section string

	// HeadingPath is the heading stack of the originating section.
	HeadingPath []string

	// Anchor is the section anchor slug.
	Anchor string

	// StartLine and EndLine bound the excerpt for text sources.
	StartLine int
	EndLine   int

	// StartTime and EndTime bound the excerpt in seconds for spoken
	// sources. Zero for text sources.
	StartTime float64
	EndTime   float64
}

// Chunk is a semantically self-contained excerpt of a source.
// Chunks are immutable once created by the chunker.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// LibraryID is the owning library.
	LibraryID string

	// Type is the pedagogical classification.
	Type ChunkType

	// Text is the excerpt content.
	Text string

	// ConceptIDs are concept references tagged during chunking, drawn
	// from the canonical concept vocabulary when one was supplied.
	ConceptIDs []string

	// Position is the ordinal position within the source.
	Position int

	// Provenance locates the chunk in its source.
	Provenance Provenance
}

// DedupKey returns the identity used to collapse near-duplicate text
// chunks at retrieval time. Spoken-content chunks are never deduplicated;
// callers check the source type first.
func (c Chunk) DedupKey() string {
	return fmt.Sprintf("%s|%d|%d",
		c.Provenance.Section, c.Provenance.StartLine, c.Provenance.EndLine)
}
