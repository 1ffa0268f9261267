package domain

// UnmappedConcept is the sentinel concept ID for chunks that could not
// be assigned a concept. Unmapped chunks are excluded from
// concept-scoped retrieval but remain retrievable generically.
const UnmappedConcept = "unmapped"

// Mapping assigns a chunk its primary concept. There is exactly one
// mapping per chunk.
type Mapping struct {
	// ChunkID is the mapped chunk.
	ChunkID string

	// ConceptID is the primary concept, or UnmappedConcept.
	ConceptID string

	// Confidence is the assignment confidence in [0,1].
	Confidence float64

	// Secondary are additional related concept IDs.
	Secondary []string

	// Rationale is an optional short justification.
	Rationale string
}

// Mapped reports whether the mapping carries a real concept assignment.
func (m Mapping) Mapped() bool {
	return m.ConceptID != "" && m.ConceptID != UnmappedConcept
}

// Embedding is a unit-normalized vector for one chunk, or ephemeral for
// a query.
type Embedding struct {
	// ChunkID is the embedded chunk. Empty for query vectors.
	ChunkID string

	// Vector is the fixed-length, L2-normalized embedding.
	Vector []float32

	// Model identifies the embedding model.
	Model string

	// Dimensions is the vector length.
	Dimensions int
}

// VectorHit is a similarity search result.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Similarity is the cosine similarity score (0-1).
	Similarity float64
}
