package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLibraryStatus_CanTransition(t *testing.T) {
	tests := []struct {
		name string
		from LibraryStatus
		to   LibraryStatus
		ok   bool
	}{
		{"pending to processing", StatusPending, StatusProcessing, true},
		{"processing to ready", StatusProcessing, StatusReady, true},
		{"processing to failed", StatusProcessing, StatusFailed, true},
		{"ready to pending (reimport)", StatusReady, StatusPending, true},
		{"failed to pending (reimport)", StatusFailed, StatusPending, true},
		{"pending to ready skips processing", StatusPending, StatusReady, false},
		{"ready to processing", StatusReady, StatusProcessing, false},
		{"failed to ready", StatusFailed, StatusReady, false},
		{"processing to pending", StatusProcessing, StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransition(tt.to))
		})
	}
}

func TestLibraryStatus_Transition(t *testing.T) {
	t.Run("legal transition returns next state", func(t *testing.T) {
		next, err := StatusPending.Transition(StatusProcessing)
		require.NoError(t, err)
		assert.Equal(t, StatusProcessing, next)
	})

	t.Run("illegal transition keeps state and errors", func(t *testing.T) {
		next, err := StatusFailed.Transition(StatusReady)
		require.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, StatusFailed, next)
	})
}

func TestSourceType_Valid(t *testing.T) {
	assert.True(t, SourceVideo.Valid())
	assert.True(t, SourceMarkdown.Valid())
	assert.True(t, SourceNotebook.Valid())
	assert.False(t, SourceType("podcast").Valid())
}

func TestSourceType_Spoken(t *testing.T) {
	assert.True(t, SourceVideo.Spoken())
	assert.False(t, SourceMarkdown.Spoken())
	assert.False(t, SourceNotebook.Spoken())
}

func TestNewLogEntry_TruncatesLongMessages(t *testing.T) {
	long := strings.Repeat("x", MaxLogMessageLen*2)
	entry := NewLogEntry(LogError, "enrich", long)

	assert.Len(t, []rune(entry.Message), MaxLogMessageLen)
	assert.Equal(t, LogError, entry.Level)
	assert.Equal(t, "enrich", entry.Stage)
	assert.False(t, entry.At.IsZero())
}

func TestNewLogEntry_KeepsShortMessages(t *testing.T) {
	entry := NewLogEntry(LogWarn, "chunk", "section failed: parse error")
	assert.Equal(t, "section failed: parse error", entry.Message)
}
