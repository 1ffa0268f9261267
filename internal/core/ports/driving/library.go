package driving

import (
	"context"

	"github.com/custodia-labs/tutorkit/internal/core/domain"
)

// LibraryService manages imported sources.
type LibraryService interface {
	// Import creates a pending library for a source URL.
	Import(ctx context.Context, url string, sourceType domain.SourceType, title string) (*domain.Library, error)

	// Get retrieves a library by ID.
	Get(ctx context.Context, id string) (*domain.Library, error)

	// List returns all libraries.
	List(ctx context.Context) ([]domain.Library, error)

	// Delete removes a library and all derived artifacts.
	Delete(ctx context.Context, id string) error

	// Logs returns a library's processing log.
	Logs(ctx context.Context, id string) ([]domain.LogEntry, error)
}
