// Package memory provides in-memory store implementations, used by
// tests and as an ephemeral storage mode.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/tutorkit/internal/core/domain"
	"github.com/custodia-labs/tutorkit/internal/core/ports/driven"
)

// Ensure LibraryStore implements the interfaces.
var (
	_ driven.LibraryStore = (*LibraryStore)(nil)
	_ driven.ProgressSink = (*LibraryStore)(nil)
)

// LibraryStore is an in-memory implementation of driven.LibraryStore
// and driven.ProgressSink.
type LibraryStore struct {
	mu        sync.RWMutex
	libraries map[string]domain.Library
	logs      map[string][]domain.LogEntry
}

// NewLibraryStore creates a new in-memory library store.
func NewLibraryStore() *LibraryStore {
	return &LibraryStore{
		libraries: make(map[string]domain.Library),
		logs:      make(map[string][]domain.LogEntry),
	}
}

// Save stores or updates a library.
func (s *LibraryStore) Save(_ context.Context, lib domain.Library) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.libraries[lib.ID] = lib
	return nil
}

// Get retrieves a library by ID.
func (s *LibraryStore) Get(_ context.Context, id string) (*domain.Library, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lib, ok := s.libraries[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &lib, nil
}

// List returns all libraries.
func (s *LibraryStore) List(_ context.Context) ([]domain.Library, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	libraries := make([]domain.Library, 0, len(s.libraries))
	for _, lib := range s.libraries {
		libraries = append(libraries, lib)
	}
	return libraries, nil
}

// Delete removes a library and its logs.
func (s *LibraryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.libraries[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.libraries, id)
	delete(s.logs, id)
	return nil
}

// UpdateStatus sets the lifecycle status, progress message and stats.
func (s *LibraryStore) UpdateStatus(_ context.Context, id string, status domain.LibraryStatus, progress string, stats domain.LibraryStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lib, ok := s.libraries[id]
	if !ok {
		return domain.ErrNotFound
	}
	lib.Status = status
	lib.Progress = progress
	lib.Stats = stats
	lib.UpdatedAt = time.Now()
	s.libraries[id] = lib
	return nil
}

// AppendLog appends one log entry.
func (s *LibraryStore) AppendLog(_ context.Context, libraryID string, entry domain.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[libraryID] = append(s.logs[libraryID], entry)
	return nil
}

// ClearLogs removes all log entries for a library.
func (s *LibraryStore) ClearLogs(_ context.Context, libraryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.logs, libraryID)
	return nil
}

// GetLogs returns a library's log entries in append order.
func (s *LibraryStore) GetLogs(_ context.Context, libraryID string) ([]domain.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	logs := make([]domain.LogEntry, len(s.logs[libraryID]))
	copy(logs, s.logs[libraryID])
	return logs, nil
}
