package cli

import (
	"bytes"
	"context"

	"github.com/custodia-labs/tutorkit/internal/core/domain"
	"github.com/custodia-labs/tutorkit/internal/core/ports/driving"
)

// mockLibraryService implements driving.LibraryService for testing.
type mockLibraryService struct {
	libraries []domain.Library
	logs      []domain.LogEntry
	err       error
	deleted   []string
}

func (m *mockLibraryService) Import(_ context.Context, url string, sourceType domain.SourceType, title string) (*domain.Library, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Library{
		ID:    "lib-1",
		URL:   url,
		Type:  sourceType,
		Title: title,
	}, nil
}

func (m *mockLibraryService) Get(_ context.Context, id string) (*domain.Library, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.libraries {
		if m.libraries[i].ID == id {
			return &m.libraries[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockLibraryService) List(_ context.Context) ([]domain.Library, error) {
	return m.libraries, m.err
}

func (m *mockLibraryService) Delete(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return m.err
}

func (m *mockLibraryService) Logs(_ context.Context, _ string) ([]domain.LogEntry, error) {
	return m.logs, m.err
}

// mockPipeline implements driving.Pipeline for testing.
type mockPipeline struct {
	processed  []string
	reimported []string
	err        error
}

func (m *mockPipeline) Process(_ context.Context, libraryID string) error {
	m.processed = append(m.processed, libraryID)
	return m.err
}

func (m *mockPipeline) Reimport(_ context.Context, libraryID string) error {
	m.reimported = append(m.reimported, libraryID)
	return m.err
}

// mockRetrieval implements driving.RetrievalService for testing.
type mockRetrieval struct {
	result driving.ContextResult
}

func (m *mockRetrieval) RetrieveContext(_ context.Context, _, _ string, _ int, _ float64) *driving.ContextResult {
	result := m.result
	return &result
}

// mockReadiness implements driving.ReadinessService for testing.
type mockReadiness struct {
	classification  driving.Classification
	recommendations []driving.Recommendation
}

func (m *mockReadiness) Classify(_ *domain.ConceptGraph, _ map[string]bool) driving.Classification {
	return m.classification
}

func (m *mockReadiness) Recommend(_ *domain.ConceptGraph, _ map[string]bool, _ int) []driving.Recommendation {
	return m.recommendations
}

// mockConceptStore implements the concept loading the recommend command needs.
type mockConceptStore struct {
	concepts []domain.Concept
	err      error
}

func (m *mockConceptStore) SaveConcepts(_ context.Context, _ string, _ []domain.Concept) error {
	return nil
}

func (m *mockConceptStore) GetConcepts(_ context.Context, _ string) ([]domain.Concept, error) {
	return m.concepts, m.err
}

func (m *mockConceptStore) SaveEnrichments(_ context.Context, _ string, _ []domain.Enrichment) error {
	return nil
}

func (m *mockConceptStore) GetEnrichments(_ context.Context, _ string) ([]domain.Enrichment, error) {
	return nil, nil
}

// runCommand executes the root command with args and captures output.
func runCommand(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}
