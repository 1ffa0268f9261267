package domain

// Stage identifies one pipeline stage. Each stage writes exactly one
// output artifact, which doubles as the resumption checkpoint.
type Stage string

// Pipeline stages in execution order. Concept extraction runs before
// chunking so the chunker can tag against the canonical concept
// vocabulary instead of inventing drifting IDs.
const (
	StageConcepts Stage = "concepts"
	StageChunk    Stage = "chunk"
	StageEnrich   Stage = "enrich"
	StageMap      Stage = "map"
	StageEmbed    Stage = "embed"
)

// Stages returns the stage sequence for a source type. The sequence is
// identical across source types; sectioning behaviour differs inside
// the chunker instead.
func Stages(SourceType) []Stage {
	return []Stage{StageConcepts, StageChunk, StageEnrich, StageMap, StageEmbed}
}
