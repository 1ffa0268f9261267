package driven

import (
	"context"

	"github.com/custodia-labs/tutorkit/internal/core/domain"
)

// SourceReader fetches the raw text for a library's source.
// Implementations resolve the library URL (local path, transcript file,
// exported notebook) into plain text ready for chunking and extraction.
type SourceReader interface {
	// Read returns the source text for a library. A failure here is
	// stage-fatal: the pipeline cannot proceed without source text.
	Read(ctx context.Context, lib domain.Library) (*SourceText, error)
}

// SourceText is the resolved content of a library source.
type SourceText struct {
	// Title is the source title, falling back to the library title.
	Title string

	// Author is the source author, when known.
	Author string

	// Text is the full plain text of the source.
	Text string
}
