package services

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/tutorkit/internal/core/domain"
	"github.com/custodia-labs/tutorkit/internal/core/ports/driven"
	"github.com/custodia-labs/tutorkit/internal/core/ports/driving"
)

// Ensure LibraryService implements the interface.
var _ driving.LibraryService = (*LibraryService)(nil)

// LibraryService manages imported sources.
type LibraryService struct {
	libraries driven.LibraryStore
	progress  driven.ProgressSink
	artifacts driven.ArtifactStore
}

// NewLibraryService creates a library service.
func NewLibraryService(libraries driven.LibraryStore, progress driven.ProgressSink, artifacts driven.ArtifactStore) *LibraryService {
	return &LibraryService{libraries: libraries, progress: progress, artifacts: artifacts}
}

// Import creates a pending library for a source URL.
func (s *LibraryService) Import(ctx context.Context, url string, sourceType domain.SourceType, title string) (*domain.Library, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("%w: empty url", domain.ErrInvalidInput)
	}
	if !sourceType.Valid() {
		return nil, fmt.Errorf("%w: unknown source type %q", domain.ErrInvalidInput, sourceType)
	}
	if title == "" {
		title = titleFromURL(url)
	}

	now := time.Now()
	lib := domain.Library{
		ID:        uuid.New().String(),
		URL:       url,
		Type:      sourceType,
		Title:     title,
		Status:    domain.StatusPending,
		Progress:  "pending",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.libraries.Save(ctx, lib); err != nil {
		return nil, fmt.Errorf("save library: %w", err)
	}
	return &lib, nil
}

// Get retrieves a library by ID.
func (s *LibraryService) Get(ctx context.Context, id string) (*domain.Library, error) {
	return s.libraries.Get(ctx, id)
}

// List returns all libraries.
func (s *LibraryService) List(ctx context.Context) ([]domain.Library, error) {
	return s.libraries.List(ctx)
}

// Delete removes a library and all derived artifacts.
func (s *LibraryService) Delete(ctx context.Context, id string) error {
	if err := s.artifacts.ClearArtifacts(ctx, id); err != nil {
		return fmt.Errorf("clear artifacts: %w", err)
	}
	return s.libraries.Delete(ctx, id)
}

// Logs returns a library's processing log.
func (s *LibraryService) Logs(ctx context.Context, id string) ([]domain.LogEntry, error) {
	if _, err := s.libraries.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.progress.GetLogs(ctx, id)
}

// titleFromURL derives a readable title from the last URL segment.
func titleFromURL(url string) string {
	base := path.Base(strings.TrimRight(url, "/"))
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	base = strings.ReplaceAll(base, "_", " ")
	base = strings.ReplaceAll(base, "-", " ")
	if base == "" || base == "." {
		return url
	}
	return base
}
