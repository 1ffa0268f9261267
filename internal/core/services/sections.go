package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/custodia-labs/tutorkit/internal/core/domain"
)

// ImplicitSectionHeading is used when a document has no headings at all.
const ImplicitSectionHeading = "Introduction"

// sectionSpan pairs a derived section with the text it covers.
type sectionSpan struct {
	domain.Section

	// Text is the raw section content including the heading line.
	Text string

	// StartTime and EndTime bound the span in seconds for transcripts.
	StartTime float64
	EndTime   float64
}

var (
	headingRe = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	anchorRe  = regexp.MustCompile(`[^a-z0-9]+`)

	// cueRe matches transcript cue prefixes like [03:25] or [1:02:45].
	cueRe = regexp.MustCompile(`^\[(\d{1,2}):(\d{2})(?::(\d{2}))?\]`)
)

// isFenceLine reports whether the line opens or closes a fenced code block.
func isFenceLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~")
}

// anchorSlug converts a heading into a URL-safe anchor.
func anchorSlug(heading string) string {
	slug := anchorRe.ReplaceAllString(strings.ToLower(heading), "-")
	return strings.Trim(slug, "-")
}

// splitSections derives the structural sections of a text document.
// The document is split at its primary heading level (the shallowest
// heading depth present), with heading-like lines inside fenced code
// blocks ignored. A document with no headings yields one implicit
// section spanning the whole document.
func splitSections(text string) []sectionSpan {
	lines := strings.Split(text, "\n")

	primary := primaryHeadingLevel(lines)
	if primary == 0 {
		return []sectionSpan{implicitSection(lines)}
	}

	var sections []sectionSpan
	var current *sectionSpan
	inFence := false

	flush := func(endLine int) {
		if current == nil {
			return
		}
		current.EndLine = endLine
		current.Text = strings.Join(lines[current.StartLine:endLine+1], "\n")
		sections = append(sections, *current)
		current = nil
	}

	for i, line := range lines {
		if isFenceLine(line) {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}

		m := headingRe.FindStringSubmatch(line)
		if m == nil || len(m[1]) != primary {
			continue
		}

		flush(i - 1)
		heading := strings.TrimSpace(m[2])
		current = &sectionSpan{
			Section: domain.Section{
				Heading:   heading,
				Path:      []string{heading},
				Anchor:    anchorSlug(heading),
				StartLine: i,
			},
		}
	}
	flush(len(lines) - 1)

	// Preamble before the first heading becomes an implicit section.
	if len(sections) > 0 && sections[0].StartLine > 0 {
		pre := lines[:sections[0].StartLine]
		if strings.TrimSpace(strings.Join(pre, "\n")) != "" {
			intro := sectionSpan{
				Section: domain.Section{
					Heading:   ImplicitSectionHeading,
					Path:      []string{ImplicitSectionHeading},
					Anchor:    anchorSlug(ImplicitSectionHeading),
					StartLine: 0,
					EndLine:   sections[0].StartLine - 1,
				},
				Text: strings.Join(pre, "\n"),
			}
			sections = append([]sectionSpan{intro}, sections...)
		}
	}

	return sections
}

// primaryHeadingLevel returns the shallowest heading depth outside
// fenced code blocks, or 0 when the document has no headings.
func primaryHeadingLevel(lines []string) int {
	level := 0
	inFence := false
	for _, line := range lines {
		if isFenceLine(line) {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if m := headingRe.FindStringSubmatch(line); m != nil {
			if level == 0 || len(m[1]) < level {
				level = len(m[1])
			}
		}
	}
	return level
}

// implicitSection wraps a heading-less document in one section.
func implicitSection(lines []string) sectionSpan {
	return sectionSpan{
		Section: domain.Section{
			Heading:   ImplicitSectionHeading,
			Path:      []string{ImplicitSectionHeading},
			Anchor:    anchorSlug(ImplicitSectionHeading),
			StartLine: 0,
			EndLine:   len(lines) - 1,
		},
		Text: strings.Join(lines, "\n"),
	}
}

// stripEmptyFences removes fenced code blocks that contain nothing but
// whitespace. They carry no semantic value and confuse the
// understanding pass.
func stripEmptyFences(text string) string {
	lines := strings.Split(text, "\n")
	keep := make([]string, 0, len(lines))

	for i := 0; i < len(lines); i++ {
		if !isFenceLine(lines[i]) {
			keep = append(keep, lines[i])
			continue
		}

		// Find this block's own closing fence before deciding anything,
		// so the gap between two adjacent blocks is never mistaken for
		// an empty block.
		j := i + 1
		for j < len(lines) && !isFenceLine(lines[j]) {
			j++
		}
		if j >= len(lines) {
			// Unterminated fence, keep the line and carry on.
			keep = append(keep, lines[i])
			continue
		}

		interior := strings.Join(lines[i+1:j], "\n")
		if strings.TrimSpace(interior) == "" {
			i = j // drop the whole empty block
			continue
		}

		keep = append(keep, lines[i:j+1]...)
		i = j
	}

	return strings.Join(keep, "\n")
}

// transcript segmentation defaults.
const (
	// defaultSegmentGap starts a new transcript section when consecutive
	// cues are further apart than this many seconds.
	defaultSegmentGap = 45.0

	// defaultMaxSegmentLines caps a transcript section's length.
	defaultMaxSegmentLines = 120
)

// parseCueTime extracts the timestamp in seconds from a cue-prefixed
// line, returning false for lines without a cue.
func parseCueTime(line string) (float64, bool) {
	m := cueRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return 0, false
	}
	var h, mnt, sec int
	if m[3] != "" {
		fmt.Sscanf(m[1], "%d", &h)
		fmt.Sscanf(m[2], "%d", &mnt)
		fmt.Sscanf(m[3], "%d", &sec)
	} else {
		fmt.Sscanf(m[1], "%d", &mnt)
		fmt.Sscanf(m[2], "%d", &sec)
	}
	return float64(h*3600 + mnt*60 + sec), true
}

// formatTimestamp renders seconds as mm:ss or hh:mm:ss.
func formatTimestamp(seconds float64) string {
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// segmentTranscript derives sections from a timestamped transcript.
// Consecutive cues are grouped until a silence gap or a length cap
// starts a new section. Transcripts without any cues fall back to the
// single implicit section.
func segmentTranscript(text string, gap float64, maxLines int) []sectionSpan {
	lines := strings.Split(text, "\n")
	if gap <= 0 {
		gap = defaultSegmentGap
	}
	if maxLines <= 0 {
		maxLines = defaultMaxSegmentLines
	}

	var sections []sectionSpan
	var current *sectionSpan
	lastCue := 0.0

	flush := func(endLine int) {
		if current == nil {
			return
		}
		current.EndLine = endLine
		current.EndTime = lastCue
		current.Text = strings.Join(lines[current.StartLine:endLine+1], "\n")
		sections = append(sections, *current)
		current = nil
	}

	for i, line := range lines {
		t, ok := parseCueTime(line)
		if !ok {
			continue
		}

		startNew := current == nil ||
			t-lastCue > gap ||
			i-current.StartLine >= maxLines

		if startNew {
			flush(i - 1)
			heading := "Segment at " + formatTimestamp(t)
			current = &sectionSpan{
				Section: domain.Section{
					Heading:   heading,
					Path:      []string{heading},
					Anchor:    fmt.Sprintf("t-%d", int(t)),
					StartLine: i,
				},
				StartTime: t,
			}
		}
		lastCue = t
	}
	flush(len(lines) - 1)

	if len(sections) == 0 {
		return []sectionSpan{implicitSection(lines)}
	}
	return sections
}
