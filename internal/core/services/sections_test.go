package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSectionsPrimaryLevel(t *testing.T) {
	text := strings.Join([]string{
		"## Variables",
		"Variables hold values.",
		"## Functions",
		"Functions compute things.",
		"### Closures",
		"Closures capture scope.",
	}, "\n")

	sections := splitSections(text)
	require.Len(t, sections, 2)

	assert.Equal(t, "Variables", sections[0].Heading)
	assert.Equal(t, 0, sections[0].StartLine)
	assert.Equal(t, 1, sections[0].EndLine)

	// The deeper heading stays inside its parent section.
	assert.Equal(t, "Functions", sections[1].Heading)
	assert.Equal(t, 2, sections[1].StartLine)
	assert.Equal(t, 5, sections[1].EndLine)
	assert.Contains(t, sections[1].Text, "Closures capture scope.")
}

func TestSplitSectionsIgnoresHeadingsInFences(t *testing.T) {
	text := strings.Join([]string{
		"# Shell",
		"Run the commands below.",
		"```",
		"# not a heading",
		"echo hi",
		"```",
		"# Output",
		"You should see hi.",
	}, "\n")

	sections := splitSections(text)
	require.Len(t, sections, 2)
	assert.Equal(t, "Shell", sections[0].Heading)
	assert.Equal(t, "Output", sections[1].Heading)
	assert.Contains(t, sections[0].Text, "# not a heading")
}

func TestSplitSectionsNoHeadings(t *testing.T) {
	sections := splitSections("just prose\nwith two lines")
	require.Len(t, sections, 1)
	assert.Equal(t, ImplicitSectionHeading, sections[0].Heading)
	assert.Equal(t, 0, sections[0].StartLine)
	assert.Equal(t, 1, sections[0].EndLine)
}

func TestSplitSectionsPreambleBecomesIntroduction(t *testing.T) {
	text := strings.Join([]string{
		"Welcome to the course.",
		"",
		"# Setup",
		"Install the tools.",
	}, "\n")

	sections := splitSections(text)
	require.Len(t, sections, 2)
	assert.Equal(t, ImplicitSectionHeading, sections[0].Heading)
	assert.Equal(t, 0, sections[0].StartLine)
	assert.Equal(t, 1, sections[0].EndLine)
	assert.Equal(t, "Setup", sections[1].Heading)
}

func TestAnchorSlug(t *testing.T) {
	assert.Equal(t, "getting-started", anchorSlug("Getting Started"))
	assert.Equal(t, "what-s-new-in-2-0", anchorSlug("What's New in 2.0?"))
}

func TestStripEmptyFences(t *testing.T) {
	text := strings.Join([]string{
		"before",
		"```",
		"",
		"```",
		"after",
		"```go",
		"code",
		"```",
	}, "\n")

	stripped := stripEmptyFences(text)
	assert.NotContains(t, stripped, "```\n\n```")
	assert.Contains(t, stripped, "code")
	assert.Contains(t, stripped, "before")
	assert.Contains(t, stripped, "after")
}

func TestStripEmptyFencesKeepsAdjacentBlocks(t *testing.T) {
	text := strings.Join([]string{
		"```go",
		"code",
		"```",
		"",
		"```py",
		"more",
		"```",
	}, "\n")

	// Two adjacent non-empty blocks survive intact: the blank gap between
	// them must not be mistaken for an empty block.
	assert.Equal(t, text, stripEmptyFences(text))
}

func TestStripEmptyFencesKeepsUnterminatedFence(t *testing.T) {
	text := "intro\n```go\ncode without closing fence"
	assert.Equal(t, text, stripEmptyFences(text))
}

func TestParseCueTime(t *testing.T) {
	tests := []struct {
		line string
		want float64
		ok   bool
	}{
		{"[03:25] hello", 205, true},
		{"[1:02:45] hello", 3765, true},
		{"[0:00] start", 0, true},
		{"no cue here", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseCueTime(tt.line)
		assert.Equal(t, tt.ok, ok, tt.line)
		assert.Equal(t, tt.want, got, tt.line)
	}
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "3:25", formatTimestamp(205))
	assert.Equal(t, "1:02:45", formatTimestamp(3765))
	assert.Equal(t, "0:00", formatTimestamp(0))
}

func TestSegmentTranscriptSplitsOnGap(t *testing.T) {
	text := strings.Join([]string{
		"[0:00] welcome everyone",
		"[0:20] today we cover slices",
		"[2:00] now a new topic",
		"[2:10] append and copy",
	}, "\n")

	sections := segmentTranscript(text, 45, 120)
	require.Len(t, sections, 2)

	assert.Equal(t, 0.0, sections[0].StartTime)
	assert.Equal(t, 20.0, sections[0].EndTime)
	assert.Equal(t, "Segment at 0:00", sections[0].Heading)

	assert.Equal(t, 120.0, sections[1].StartTime)
	assert.Equal(t, 130.0, sections[1].EndTime)
	assert.Contains(t, sections[1].Text, "append and copy")
}

func TestSegmentTranscriptNoCues(t *testing.T) {
	sections := segmentTranscript("plain text\nwithout cues", 45, 120)
	require.Len(t, sections, 1)
	assert.Equal(t, ImplicitSectionHeading, sections[0].Heading)
}
