package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tutorkit/internal/core/domain"
)

// writeSource drops a source file in a temp dir and returns its path.
func writeSource(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestReadMarkdown(t *testing.T) {
	path := writeSource(t, "course.md", "# Go Basics\n\nVariables hold values.\n")

	src, err := NewReader().Read(context.Background(), domain.Library{
		URL:   path,
		Type:  domain.SourceMarkdown,
		Title: "go-course",
	})
	require.NoError(t, err)

	assert.Equal(t, "Go Basics", src.Title)
	assert.Contains(t, src.Text, "Variables hold values.")
}

func TestReadFileURI(t *testing.T) {
	path := writeSource(t, "course.md", "# Title\n\nBody.\n")

	src, err := NewReader().Read(context.Background(), domain.Library{
		URL:  "file://" + path,
		Type: domain.SourceMarkdown,
	})
	require.NoError(t, err)
	assert.Contains(t, src.Text, "Body.")
}

func TestReadFrontMatter(t *testing.T) {
	content := `---
title: "Structured Concurrency"
author: Jo Bloggs
---

# Ignored Heading

Body text.
`
	path := writeSource(t, "course.md", content)

	src, err := NewReader().Read(context.Background(), domain.Library{
		URL:  path,
		Type: domain.SourceMarkdown,
	})
	require.NoError(t, err)

	assert.Equal(t, "Structured Concurrency", src.Title)
	assert.Equal(t, "Jo Bloggs", src.Author)
	assert.NotContains(t, src.Text, "title:")
	assert.Contains(t, src.Text, "Body text.")
}

func TestReadMissingFile(t *testing.T) {
	_, err := NewReader().Read(context.Background(), domain.Library{
		URL:  filepath.Join(t.TempDir(), "missing.md"),
		Type: domain.SourceMarkdown,
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReadEmptyURL(t *testing.T) {
	_, err := NewReader().Read(context.Background(), domain.Library{Type: domain.SourceMarkdown})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestReadDirectory(t *testing.T) {
	_, err := NewReader().Read(context.Background(), domain.Library{
		URL:  t.TempDir(),
		Type: domain.SourceMarkdown,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestReadNotebook(t *testing.T) {
	content := `{
  "cells": [
    {"cell_type": "markdown", "source": ["# Slices\n", "\n", "Slices are views."]},
    {"cell_type": "code", "source": ["s := []int{1, 2}\n", "fmt.Println(s)"]},
    {"cell_type": "markdown", "source": []}
  ],
  "metadata": {"language_info": {"name": "go"}}
}`
	path := writeSource(t, "course.ipynb", content)

	src, err := NewReader().Read(context.Background(), domain.Library{
		URL:  path,
		Type: domain.SourceNotebook,
	})
	require.NoError(t, err)

	assert.Equal(t, "Slices", src.Title)
	assert.Contains(t, src.Text, "Slices are views.")
	assert.Contains(t, src.Text, "```go\ns := []int{1, 2}\nfmt.Println(s)\n```")
}

func TestReadNotebookMalformed(t *testing.T) {
	path := writeSource(t, "course.ipynb", "not a notebook")

	_, err := NewReader().Read(context.Background(), domain.Library{
		URL:  path,
		Type: domain.SourceNotebook,
	})
	assert.Error(t, err)
}

func TestReadWebVTT(t *testing.T) {
	content := `WEBVTT

00:00.000 --> 00:12.000
Welcome to the course.

01:02:45.500 --> 01:02:50.000
Closing remarks.
`
	path := writeSource(t, "lecture.vtt", content)

	src, err := NewReader().Read(context.Background(), domain.Library{
		URL:  path,
		Type: domain.SourceVideo,
	})
	require.NoError(t, err)

	assert.Contains(t, src.Text, "[0:00] Welcome to the course.")
	assert.Contains(t, src.Text, "[1:02:45] Closing remarks.")
}

func TestReadSRT(t *testing.T) {
	content := `1
00:00:05,000 --> 00:00:10,000
First cue.

2
00:03:25,000 --> 00:03:30,000
Second cue.
`
	path := writeSource(t, "lecture.srt", content)

	src, err := NewReader().Read(context.Background(), domain.Library{
		URL:  path,
		Type: domain.SourceVideo,
	})
	require.NoError(t, err)

	assert.Contains(t, src.Text, "[0:05] First cue.")
	assert.Contains(t, src.Text, "[3:25] Second cue.")
}

func TestReadPlainTranscriptPassesThrough(t *testing.T) {
	content := "[0:00] Already cue formatted.\n[2:00] Second segment.\n"
	path := writeSource(t, "lecture.txt", content)

	src, err := NewReader().Read(context.Background(), domain.Library{
		URL:  path,
		Type: domain.SourceVideo,
	})
	require.NoError(t, err)
	assert.Equal(t, content, src.Text)
}

func TestParseCaptionTime(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"00:00:05.000", 5, true},
		{"00:03:25,000", 205, true},
		{"01:02:45.500", 3765, true},
		{"02:15.000", 135, true},
		{"bogus", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseCaptionTime(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
