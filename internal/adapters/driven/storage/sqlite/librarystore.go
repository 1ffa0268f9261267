package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/tutorkit/internal/core/domain"
	"github.com/custodia-labs/tutorkit/internal/core/ports/driven"
)

// libraryStore implements driven.LibraryStore.
type libraryStore struct {
	store *Store
}

var _ driven.LibraryStore = (*libraryStore)(nil)

// Save stores or updates a library.
func (s *libraryStore) Save(ctx context.Context, lib domain.Library) error {
	now := time.Now().UTC()
	if lib.CreatedAt.IsZero() {
		lib.CreatedAt = now
	}
	lib.UpdatedAt = now

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO libraries (id, url, type, title, author, status, progress,
			concepts_count, chunks_count, embeddings_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			url = excluded.url,
			type = excluded.type,
			title = excluded.title,
			author = excluded.author,
			status = excluded.status,
			progress = excluded.progress,
			concepts_count = excluded.concepts_count,
			chunks_count = excluded.chunks_count,
			embeddings_count = excluded.embeddings_count,
			updated_at = excluded.updated_at
	`, lib.ID, lib.URL, lib.Type, lib.Title, lib.Author, lib.Status, lib.Progress,
		lib.Stats.Concepts, lib.Stats.Chunks, lib.Stats.Embeddings,
		lib.CreatedAt, lib.UpdatedAt)

	if err != nil {
		return fmt.Errorf("saving library: %w", err)
	}
	return nil
}

// Get retrieves a library by ID.
func (s *libraryStore) Get(ctx context.Context, id string) (*domain.Library, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, url, type, title, author, status, progress,
			concepts_count, chunks_count, embeddings_count, created_at, updated_at
		FROM libraries WHERE id = ?
	`, id)
	return scanLibrary(row.Scan)
}

// List returns all libraries ordered by creation time.
func (s *libraryStore) List(ctx context.Context) ([]domain.Library, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, url, type, title, author, status, progress,
			concepts_count, chunks_count, embeddings_count, created_at, updated_at
		FROM libraries ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("querying libraries: %w", err)
	}
	defer rows.Close()

	var libraries []domain.Library //nolint:prealloc // size unknown from query
	for rows.Next() {
		lib, err := scanLibrary(rows.Scan)
		if err != nil {
			return nil, err
		}
		libraries = append(libraries, *lib)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating libraries: %w", err)
	}
	return libraries, nil
}

// Delete removes a library; dependent rows cascade.
func (s *libraryStore) Delete(ctx context.Context, id string) error {
	result, err := s.store.db.ExecContext(ctx, "DELETE FROM libraries WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting library: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting library: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateStatus sets the lifecycle status, progress message and stats.
func (s *libraryStore) UpdateStatus(ctx context.Context, id string, status domain.LibraryStatus, progress string, stats domain.LibraryStats) error {
	result, err := s.store.db.ExecContext(ctx, `
		UPDATE libraries SET status = ?, progress = ?,
			concepts_count = ?, chunks_count = ?, embeddings_count = ?, updated_at = ?
		WHERE id = ?
	`, status, progress, stats.Concepts, stats.Chunks, stats.Embeddings, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating library status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating library status: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// scanLibrary scans one library row via the given scan function.
func scanLibrary(scan func(dest ...any) error) (*domain.Library, error) {
	var lib domain.Library
	err := scan(&lib.ID, &lib.URL, &lib.Type, &lib.Title, &lib.Author,
		&lib.Status, &lib.Progress,
		&lib.Stats.Concepts, &lib.Stats.Chunks, &lib.Stats.Embeddings,
		&lib.CreatedAt, &lib.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning library: %w", err)
	}
	return &lib, nil
}

// progressSink implements driven.ProgressSink.
type progressSink struct {
	store *Store
}

var _ driven.ProgressSink = (*progressSink)(nil)

// AppendLog appends one log entry.
func (s *progressSink) AppendLog(ctx context.Context, libraryID string, entry domain.LogEntry) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO library_logs (library_id, at, level, stage, message)
		VALUES (?, ?, ?, ?, ?)
	`, libraryID, entry.At.UTC(), entry.Level, entry.Stage, entry.Message)
	if err != nil {
		return fmt.Errorf("appending log: %w", err)
	}
	return nil
}

// ClearLogs removes all log entries for a library.
func (s *progressSink) ClearLogs(ctx context.Context, libraryID string) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM library_logs WHERE library_id = ?", libraryID); err != nil {
		return fmt.Errorf("clearing logs: %w", err)
	}
	return nil
}

// GetLogs returns a library's log entries in append order.
func (s *progressSink) GetLogs(ctx context.Context, libraryID string) ([]domain.LogEntry, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT at, level, stage, message FROM library_logs
		WHERE library_id = ? ORDER BY id
	`, libraryID)
	if err != nil {
		return nil, fmt.Errorf("querying logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.LogEntry //nolint:prealloc // size unknown from query
	for rows.Next() {
		var entry domain.LogEntry
		if err := rows.Scan(&entry.At, &entry.Level, &entry.Stage, &entry.Message); err != nil {
			return nil, fmt.Errorf("scanning log entry: %w", err)
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating logs: %w", err)
	}
	return logs, nil
}
