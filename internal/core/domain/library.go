package domain

import (
	"fmt"
	"time"
)

// SourceType identifies the kind of educational source a library was
// imported from.
type SourceType string

// Supported source types.
const (
	SourceVideo    SourceType = "video"
	SourceMarkdown SourceType = "markdown"
	SourceNotebook SourceType = "notebook"
)

// Valid reports whether the source type is one of the supported kinds.
func (t SourceType) Valid() bool {
	switch t {
	case SourceVideo, SourceMarkdown, SourceNotebook:
		return true
	}
	return false
}

// Spoken reports whether the source carries spoken content ordered by
// timestamp rather than by document line.
func (t SourceType) Spoken() bool {
	return t == SourceVideo
}

// LibraryStatus is the lifecycle state of a library.
type LibraryStatus string

// Library lifecycle states.
const (
	StatusPending    LibraryStatus = "pending"
	StatusProcessing LibraryStatus = "processing"
	StatusReady      LibraryStatus = "ready"
	StatusFailed     LibraryStatus = "failed"
)

// CanTransition reports whether moving from s to next is a legal
// lifecycle transition. Transitions are monotonic within one processing
// run; only reimport moves a terminal state back to pending.
func (s LibraryStatus) CanTransition(next LibraryStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusReady || next == StatusFailed
	case StatusReady, StatusFailed:
		return next == StatusPending
	}
	return false
}

// Transition returns next if the move from s is legal, or an error
// wrapping ErrInvalidTransition otherwise.
func (s LibraryStatus) Transition(next LibraryStatus) (LibraryStatus, error) {
	if !s.CanTransition(next) {
		return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
	}
	return next, nil
}

// LibraryStats aggregates the artifact counts recorded when processing
// completes.
type LibraryStats struct {
	// Concepts is the number of concepts extracted.
	Concepts int

	// Chunks is the number of chunks produced.
	Chunks int

	// Embeddings is the number of vectors indexed.
	Embeddings int
}

// Library is the identity and lifecycle record of an imported source.
// It is created on import and mutated only by the pipeline orchestrator.
type Library struct {
	// ID is the unique identifier for the library.
	ID string

	// URL is the original source location.
	URL string

	// Type is the source kind (video, markdown, notebook).
	Type SourceType

	// Title is the human-readable title.
	Title string

	// Author is the source author, when known.
	Author string

	// Status is the current lifecycle state.
	Status LibraryStatus

	// Progress is a short human-readable progress message.
	Progress string

	// Stats holds aggregate artifact counts once processing succeeds.
	Stats LibraryStats

	// CreatedAt is when the library was imported.
	CreatedAt time.Time

	// UpdatedAt is when the library record last changed.
	UpdatedAt time.Time
}

// LogLevel classifies processing log entries.
type LogLevel string

// Log levels.
const (
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// MaxLogMessageLen bounds the stored length of a log message in runes.
const MaxLogMessageLen = 500

// LogEntry is one append-only processing log record for a library.
type LogEntry struct {
	// At is when the entry was recorded.
	At time.Time

	// Level is the entry severity.
	Level LogLevel

	// Stage names the pipeline stage that produced the entry.
	Stage string

	// Message is the truncated log text.
	Message string
}

// NewLogEntry builds a log entry, truncating the message to
// MaxLogMessageLen runes.
func NewLogEntry(level LogLevel, stage, message string) LogEntry {
	runes := []rune(message)
	if len(runes) > MaxLogMessageLen {
		message = string(runes[:MaxLogMessageLen])
	}
	return LogEntry{
		At:      time.Now(),
		Level:   level,
		Stage:   stage,
		Message: message,
	}
}
