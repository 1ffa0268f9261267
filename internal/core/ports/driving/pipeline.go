package driving

import "context"

// Pipeline runs the multi-stage ingestion pipeline for a library.
type Pipeline interface {
	// Process runs the stage sequence for the library's source type.
	// It is idempotent: stages whose output artifact already exists are
	// skipped. On success the library becomes ready; on failure it
	// becomes failed with the causing message. Processing one library
	// never aborts processing of others.
	Process(ctx context.Context, libraryID string) error

	// Reimport resets a ready or failed library to pending and clears
	// all downstream artifacts and logs, so the next Process run
	// recomputes everything.
	Reimport(ctx context.Context, libraryID string) error
}
