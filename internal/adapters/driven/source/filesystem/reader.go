// Package filesystem provides a source reader for local files.
// Markdown and notebook sources are read as text; video sources are
// read as transcripts, with WebVTT and SRT files converted to
// cue-prefixed lines.
package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/tutorkit/internal/core/domain"
	"github.com/custodia-labs/tutorkit/internal/core/ports/driven"
)

// Ensure Reader implements the interface.
var _ driven.SourceReader = (*Reader)(nil)

// MaxSourceSize caps the source file size (10 MiB). Educational sources
// are text; anything larger is almost certainly the wrong file.
const MaxSourceSize = 10 << 20

// Reader resolves library URLs to local files and loads their text.
type Reader struct{}

// NewReader creates a filesystem source reader.
func NewReader() *Reader {
	return &Reader{}
}

// Read loads the source text for a library.
func (r *Reader) Read(_ context.Context, lib domain.Library) (*driven.SourceText, error) {
	path := resolvePath(lib.URL)
	if path == "" {
		return nil, fmt.Errorf("%w: library has no source URL", domain.ErrInvalidInput)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: source file %s", domain.ErrNotFound, path)
		}
		return nil, fmt.Errorf("stat source: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", domain.ErrInvalidInput, path)
	}
	if info.Size() > MaxSourceSize {
		return nil, fmt.Errorf("%w: source file exceeds %d bytes", domain.ErrInvalidInput, MaxSourceSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	text := strings.TrimPrefix(string(data), "\uFEFF")
	if !utf8.ValidString(text) {
		return nil, fmt.Errorf("%w: source file is not valid UTF-8", domain.ErrInvalidInput)
	}

	src := &driven.SourceText{
		Author: lib.Author,
	}

	switch {
	case lib.Type == domain.SourceNotebook || strings.HasSuffix(path, ".ipynb"):
		text, err = notebookText(data)
		if err != nil {
			return nil, fmt.Errorf("parse notebook: %w", err)
		}
	case lib.Type == domain.SourceVideo:
		text = transcriptText(path, text)
	}

	if title, author, body, ok := splitFrontMatter(text); ok {
		if title != "" {
			src.Title = title
		}
		if author != "" {
			src.Author = author
		}
		text = body
	}
	if src.Title == "" {
		src.Title = firstHeading(text)
	}

	src.Text = text
	return src, nil
}

// resolvePath converts a library URL to a local path.
// Handles file:// URIs and bare paths.
func resolvePath(url string) string {
	return strings.TrimPrefix(url, "file://")
}

// splitFrontMatter extracts title and author from a YAML front matter
// block. Only flat "key: value" lines are read; anything else is left
// for the body.
func splitFrontMatter(text string) (title, author, body string, ok bool) {
	lines := strings.Split(text, "\n")
	if len(lines) < 2 || strings.TrimSpace(lines[0]) != "---" {
		return "", "", "", false
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			end = i
			break
		}
	}
	if end < 0 {
		return "", "", "", false
	}

	for _, line := range lines[1:end] {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		switch strings.TrimSpace(strings.ToLower(key)) {
		case "title":
			title = value
		case "author":
			author = value
		}
	}

	body = strings.TrimLeft(strings.Join(lines[end+1:], "\n"), "\n")
	return title, author, body, true
}

// firstHeading returns the text of the first level-one heading.
func firstHeading(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if rest, found := strings.CutPrefix(line, "# "); found {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}

// notebookCell is the subset of the Jupyter cell format we read.
type notebookCell struct {
	CellType string   `json:"cell_type"`
	Source   []string `json:"source"`
}

// notebook is the subset of the Jupyter notebook format we read.
type notebook struct {
	Cells    []notebookCell `json:"cells"`
	Metadata struct {
		LanguageInfo struct {
			Name string `json:"name"`
		} `json:"language_info"`
	} `json:"metadata"`
}

// notebookText flattens a Jupyter notebook into markdown. Markdown
// cells pass through; code cells become fenced blocks so the chunker
// treats their contents as code rather than structure.
func notebookText(data []byte) (string, error) {
	var nb notebook
	if err := json.Unmarshal(data, &nb); err != nil {
		return "", err
	}

	lang := nb.Metadata.LanguageInfo.Name
	var b strings.Builder
	for _, cell := range nb.Cells {
		content := strings.TrimRight(strings.Join(cell.Source, ""), "\n")
		if content == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		switch cell.CellType {
		case "markdown":
			b.WriteString(content)
		case "code":
			b.WriteString("```" + lang + "\n" + content + "\n```")
		}
	}
	return b.String(), nil
}

// transcriptText normalises a transcript into cue-prefixed lines.
// Plain transcripts that already carry [mm:ss] cues pass through.
func transcriptText(path, text string) string {
	switch {
	case strings.HasSuffix(path, ".vtt"), strings.HasPrefix(text, "WEBVTT"):
		return convertCaptions(text, "WEBVTT")
	case strings.HasSuffix(path, ".srt"):
		return convertCaptions(text, "")
	default:
		return text
	}
}

// convertCaptions turns WebVTT or SRT caption blocks into one
// "[m:ss] text" line per cue.
func convertCaptions(text, header string) string {
	var out []string
	var pending string

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "" || line == header || strings.HasPrefix(line, "NOTE"):
			continue
		case strings.Contains(line, "-->"):
			start := strings.TrimSpace(strings.SplitN(line, "-->", 2)[0])
			if seconds, ok := parseCaptionTime(start); ok {
				pending = fmt.Sprintf("[%s] ", formatCue(seconds))
			}
		case isCueIndex(line):
			continue
		default:
			out = append(out, pending+line)
			pending = ""
		}
	}
	return strings.Join(out, "\n")
}

// parseCaptionTime parses "hh:mm:ss.mmm", "mm:ss.mmm" or the SRT comma
// variant into seconds.
func parseCaptionTime(s string) (int, bool) {
	s = strings.ReplaceAll(s, ",", ".")
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		s = s[:dot]
	}

	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}

	total := 0
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return 0, false
		}
		total = total*60 + n
	}
	return total, true
}

// isCueIndex reports whether a line is a bare SRT cue number.
func isCueIndex(line string) bool {
	_, err := strconv.Atoi(line)
	return err == nil
}

// formatCue renders seconds as m:ss or h:mm:ss.
func formatCue(seconds int) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
