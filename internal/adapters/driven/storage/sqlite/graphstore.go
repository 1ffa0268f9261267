package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/custodia-labs/tutorkit/internal/core/domain"
	"github.com/custodia-labs/tutorkit/internal/core/ports/driven"
)

// ==================== Concept Store ====================

// conceptStore implements driven.ConceptStore.
type conceptStore struct {
	store *Store
}

var _ driven.ConceptStore = (*conceptStore)(nil)

// SaveConcepts replaces the concept set for a library.
func (s *conceptStore) SaveConcepts(ctx context.Context, libraryID string, concepts []domain.Concept) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM concepts WHERE library_id = ?", libraryID); err != nil {
		return fmt.Errorf("clearing concepts: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO concepts (library_id, id, name, description, difficulty, prerequisites, position)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i, concept := range concepts {
		prereqJSON, err := json.Marshal(concept.Prerequisites)
		if err != nil {
			return fmt.Errorf("marshalling prerequisites: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, libraryID, concept.ID, concept.Name,
			concept.Description, concept.Difficulty, string(prereqJSON), i); err != nil {
			return fmt.Errorf("saving concept %s: %w", concept.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetConcepts returns a library's concepts in extraction order.
func (s *conceptStore) GetConcepts(ctx context.Context, libraryID string) ([]domain.Concept, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, name, description, difficulty, prerequisites
		FROM concepts WHERE library_id = ? ORDER BY position
	`, libraryID)
	if err != nil {
		return nil, fmt.Errorf("querying concepts: %w", err)
	}
	defer rows.Close()

	var concepts []domain.Concept //nolint:prealloc // size unknown from query
	for rows.Next() {
		var concept domain.Concept
		var prereqJSON string
		if err := rows.Scan(&concept.ID, &concept.Name, &concept.Description,
			&concept.Difficulty, &prereqJSON); err != nil {
			return nil, fmt.Errorf("scanning concept: %w", err)
		}
		if err := json.Unmarshal([]byte(prereqJSON), &concept.Prerequisites); err != nil {
			return nil, fmt.Errorf("unmarshaling prerequisites: %w", err)
		}
		concepts = append(concepts, concept)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating concepts: %w", err)
	}
	return concepts, nil
}

// SaveEnrichments stores enrichments for a library's concepts.
func (s *conceptStore) SaveEnrichments(ctx context.Context, libraryID string, enrichments []domain.Enrichment) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO enrichments (library_id, concept_id, payload)
		VALUES (?, ?, ?)
		ON CONFLICT(library_id, concept_id) DO UPDATE SET payload = excluded.payload
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, enrichment := range enrichments {
		payload, err := json.Marshal(enrichment)
		if err != nil {
			return fmt.Errorf("marshalling enrichment: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, libraryID, enrichment.ConceptID, string(payload)); err != nil {
			return fmt.Errorf("saving enrichment %s: %w", enrichment.ConceptID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetEnrichments returns the enrichments for a library.
func (s *conceptStore) GetEnrichments(ctx context.Context, libraryID string) ([]domain.Enrichment, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT payload FROM enrichments WHERE library_id = ?
	`, libraryID)
	if err != nil {
		return nil, fmt.Errorf("querying enrichments: %w", err)
	}
	defer rows.Close()

	var enrichments []domain.Enrichment //nolint:prealloc // size unknown from query
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning enrichment: %w", err)
		}
		var enrichment domain.Enrichment
		if err := json.Unmarshal([]byte(payload), &enrichment); err != nil {
			return nil, fmt.Errorf("unmarshaling enrichment: %w", err)
		}
		enrichments = append(enrichments, enrichment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating enrichments: %w", err)
	}
	return enrichments, nil
}

// ==================== Chunk Store ====================

// chunkStore implements driven.ChunkStore.
type chunkStore struct {
	store *Store
}

var _ driven.ChunkStore = (*chunkStore)(nil)

// SaveChunks stores chunks for a library in source order.
func (s *chunkStore) SaveChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, library_id, type, text, concept_ids, position,
			section, heading_path, anchor, start_line, end_line, start_time, end_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			text = excluded.text,
			concept_ids = excluded.concept_ids,
			position = excluded.position,
			section = excluded.section,
			heading_path = excluded.heading_path,
			anchor = excluded.anchor,
			start_line = excluded.start_line,
			end_line = excluded.end_line,
			start_time = excluded.start_time,
			end_time = excluded.end_time
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		conceptIDsJSON, err := json.Marshal(chunk.ConceptIDs)
		if err != nil {
			return fmt.Errorf("marshalling concept ids: %w", err)
		}
		pathJSON, err := json.Marshal(chunk.Provenance.HeadingPath)
		if err != nil {
			return fmt.Errorf("marshalling heading path: %w", err)
		}
		p := chunk.Provenance
		if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.LibraryID, chunk.Type,
			chunk.Text, string(conceptIDsJSON), chunk.Position,
			p.Section, string(pathJSON), p.Anchor,
			p.StartLine, p.EndLine, p.StartTime, p.EndTime); err != nil {
			return fmt.Errorf("saving chunk %s: %w", chunk.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

const chunkColumns = `id, library_id, type, text, concept_ids, position,
	section, heading_path, anchor, start_line, end_line, start_time, end_time`

// GetChunks returns a library's chunks ordered by position.
func (s *chunkStore) GetChunks(ctx context.Context, libraryID string) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT "+chunkColumns+" FROM chunks WHERE library_id = ? ORDER BY position", libraryID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		chunk, err := scanChunk(rows.Scan)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

// GetChunk retrieves a specific chunk by ID.
func (s *chunkStore) GetChunk(ctx context.Context, id string) (*domain.Chunk, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+chunkColumns+" FROM chunks WHERE id = ?", id)
	return scanChunk(row.Scan)
}

// SaveMappings stores chunk-concept mappings.
func (s *chunkStore) SaveMappings(ctx context.Context, libraryID string, mappings []domain.Mapping) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO mappings (library_id, chunk_id, concept_id, confidence, secondary, rationale)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(library_id, chunk_id) DO UPDATE SET
			concept_id = excluded.concept_id,
			confidence = excluded.confidence,
			secondary = excluded.secondary,
			rationale = excluded.rationale
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, mapping := range mappings {
		secondaryJSON, err := json.Marshal(mapping.Secondary)
		if err != nil {
			return fmt.Errorf("marshalling secondary concepts: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, libraryID, mapping.ChunkID, mapping.ConceptID,
			mapping.Confidence, string(secondaryJSON), mapping.Rationale); err != nil {
			return fmt.Errorf("saving mapping %s: %w", mapping.ChunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetMappings returns a library's mappings keyed by chunk ID.
func (s *chunkStore) GetMappings(ctx context.Context, libraryID string) (map[string]domain.Mapping, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT chunk_id, concept_id, confidence, secondary, rationale
		FROM mappings WHERE library_id = ?
	`, libraryID)
	if err != nil {
		return nil, fmt.Errorf("querying mappings: %w", err)
	}
	defer rows.Close()

	mappings := make(map[string]domain.Mapping)
	for rows.Next() {
		var mapping domain.Mapping
		var secondaryJSON string
		if err := rows.Scan(&mapping.ChunkID, &mapping.ConceptID,
			&mapping.Confidence, &secondaryJSON, &mapping.Rationale); err != nil {
			return nil, fmt.Errorf("scanning mapping: %w", err)
		}
		if err := json.Unmarshal([]byte(secondaryJSON), &mapping.Secondary); err != nil {
			return nil, fmt.Errorf("unmarshaling secondary concepts: %w", err)
		}
		mappings[mapping.ChunkID] = mapping
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating mappings: %w", err)
	}
	return mappings, nil
}

// scanChunk scans one chunk row via the given scan function.
func scanChunk(scan func(dest ...any) error) (*domain.Chunk, error) {
	var chunk domain.Chunk
	var conceptIDsJSON, pathJSON string
	p := &chunk.Provenance

	err := scan(&chunk.ID, &chunk.LibraryID, &chunk.Type, &chunk.Text,
		&conceptIDsJSON, &chunk.Position,
		&p.Section, &pathJSON, &p.Anchor,
		&p.StartLine, &p.EndLine, &p.StartTime, &p.EndTime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}

	if err := json.Unmarshal([]byte(conceptIDsJSON), &chunk.ConceptIDs); err != nil {
		return nil, fmt.Errorf("unmarshaling concept ids: %w", err)
	}
	if err := json.Unmarshal([]byte(pathJSON), &p.HeadingPath); err != nil {
		return nil, fmt.Errorf("unmarshaling heading path: %w", err)
	}
	p.LibraryID = chunk.LibraryID
	return &chunk, nil
}

// ==================== Embedding Store ====================

// embeddingStore implements driven.EmbeddingStore with brute-force
// cosine search over the stored vectors. Libraries hold hundreds of
// chunks, not millions, so a scan per query is fine.
type embeddingStore struct {
	store *Store
}

var _ driven.EmbeddingStore = (*embeddingStore)(nil)

// SaveEmbeddings stores the embeddings for a library's chunks.
func (s *embeddingStore) SaveEmbeddings(ctx context.Context, libraryID string, embeddings []domain.Embedding) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO embeddings (chunk_id, library_id, vector, model, dimensions)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			vector = excluded.vector,
			model = excluded.model,
			dimensions = excluded.dimensions
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, embedding := range embeddings {
		if _, err := stmt.ExecContext(ctx, embedding.ChunkID, libraryID,
			float32SliceToBytes(embedding.Vector), embedding.Model, embedding.Dimensions); err != nil {
			return fmt.Errorf("saving embedding %s: %w", embedding.ChunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// NearestNeighbours returns the k most similar chunks, best first.
func (s *embeddingStore) NearestNeighbours(ctx context.Context, libraryID string, query []float32, k int) ([]domain.VectorHit, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT chunk_id, vector FROM embeddings WHERE library_id = ?
	`, libraryID)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	var hits []domain.VectorHit //nolint:prealloc // size unknown from query
	for rows.Next() {
		var chunkID string
		var blob []byte
		if err := rows.Scan(&chunkID, &blob); err != nil {
			return nil, fmt.Errorf("scanning embedding: %w", err)
		}
		hits = append(hits, domain.VectorHit{
			ChunkID:    chunkID,
			Similarity: cosineSimilarity(query, bytesToFloat32Slice(blob)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating embeddings: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// CountEmbeddings returns the number of stored vectors for a library.
func (s *embeddingStore) CountEmbeddings(ctx context.Context, libraryID string) (int, error) {
	var count int
	row := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM embeddings WHERE library_id = ?", libraryID)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("counting embeddings: %w", err)
	}
	return count, nil
}

// cosineSimilarity computes cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// ==================== Artifact Store ====================

// artifactStore implements driven.ArtifactStore over the stage tables.
type artifactStore struct {
	store *Store
}

var _ driven.ArtifactStore = (*artifactStore)(nil)

// stageTables maps each stage to the table holding its output.
var stageTables = map[domain.Stage]string{
	domain.StageConcepts: "concepts",
	domain.StageChunk:    "chunks",
	domain.StageEnrich:   "enrichments",
	domain.StageMap:      "mappings",
	domain.StageEmbed:    "embeddings",
}

// HasArtifact reports whether the stage's output exists for the library.
func (s *artifactStore) HasArtifact(ctx context.Context, libraryID string, stage domain.Stage) (bool, error) {
	table, ok := stageTables[stage]
	if !ok {
		return false, fmt.Errorf("unknown stage %q", stage)
	}

	var exists int
	row := s.store.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM "+table+" WHERE library_id = ?)", libraryID)
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("checking %s artifact: %w", stage, err)
	}
	return exists == 1, nil
}

// ClearArtifacts removes every stage artifact for a library.
func (s *artifactStore) ClearArtifacts(ctx context.Context, libraryID string) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, table := range []string{"embeddings", "mappings", "enrichments", "chunks", "concepts"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE library_id = ?", libraryID); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
