package indexer

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

const (
	// DefaultMaxChunkSize is the chunk size bound in runes when none is configured.
	DefaultMaxChunkSize = 2000
	// overlapSize is the number of trailing runes carried from the previous
	// piece into each split piece after the first, preserving cross-boundary
	// retrieval context.
	overlapSize = 200
	// introHeadingText labels content appearing before the first heading.
	introHeadingText = "Introduction"
)

// Chunker splits markdown into size-bounded chunks organized by heading
// hierarchy. Goldmark locates the ATX headings; content between heading
// lines is kept as raw source so splitting is loss-free and content-type
// classification sees the original syntax.
type Chunker struct {
	parser       goldmark.Markdown
	maxChunkSize int
}

// NewChunker creates a chunker with the given maximum chunk size in runes.
// A non-positive size falls back to DefaultMaxChunkSize.
func NewChunker(maxChunkSize int) *Chunker {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}
	return &Chunker{
		parser: goldmark.New(
			goldmark.WithExtensions(extension.Table),
		),
		maxChunkSize: maxChunkSize,
	}
}

// ChunkMarkdown parses markdown and returns the chunk sequence in document
// order. Chunk indexes form 0..N-1 and every chunk carries TotalChunks=N.
// The result is deterministic for a given input.
func ChunkMarkdown(markdown string, maxChunkSize int) []Chunk {
	return NewChunker(maxChunkSize).ChunkMarkdown(markdown)
}

// ChunkMarkdown chunks a single markdown document.
func (c *Chunker) ChunkMarkdown(markdown string) []Chunk {
	if strings.TrimSpace(markdown) == "" {
		return []Chunk{}
	}

	source := []byte(markdown)
	marks := c.headingMarks(source)
	sections := buildSections(source, marks)

	var chunks []Chunk
	for _, sec := range sections {
		contentType := classifyContent(sec.content)
		for _, piece := range c.splitContent(sec.content) {
			chunks = append(chunks, Chunk{
				Content:      piece,
				Chapter:      sec.chapter,
				Section:      sec.section,
				HeadingLevel: sec.level,
				HeadingText:  sec.heading,
				ContentType:  contentType,
				CharCount:    utf8.RuneCountInString(piece),
			})
		}
	}

	for i := range chunks {
		chunks[i].Index = i
		chunks[i].TotalChunks = len(chunks)
	}

	return chunks
}

// headingMark locates one ATX heading in the source.
type headingMark struct {
	level        int
	text         string
	lineStart    int // byte offset of the heading line
	contentStart int // byte offset just past the heading line
}

// headingMarks walks the goldmark AST and records every `#`-prefixed
// heading with its source offsets. Setext headings and headings nested in
// other blocks (e.g. quoted headings) are left as plain content.
func (c *Chunker) headingMarks(source []byte) []headingMark {
	doc := c.parser.Parser().Parse(text.NewReader(source))

	var marks []headingMark
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		heading, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		if heading.Lines().Len() == 0 {
			// Bare "#" with no text; its line stays in surrounding content.
			return ast.WalkContinue, nil
		}

		seg := heading.Lines().At(0)
		lineStart := bytes.LastIndexByte(source[:seg.Start], '\n') + 1
		if lineStart >= len(source) || source[lineStart] != '#' {
			return ast.WalkContinue, nil
		}

		contentStart := len(source)
		if nl := bytes.IndexByte(source[seg.Stop:], '\n'); nl != -1 {
			contentStart = seg.Stop + nl + 1
		}

		marks = append(marks, headingMark{
			level:        heading.Level,
			text:         extractTextFromNode(heading, source),
			lineStart:    lineStart,
			contentStart: contentStart,
		})
		return ast.WalkSkipChildren, nil
	})

	return marks
}

// docSection is one heading's accumulated content with its hierarchy path.
type docSection struct {
	level   int
	heading string
	chapter string
	section string
	content string
}

// headingInfo tracks heading level and text on the hierarchy stack.
type headingInfo struct {
	level int
	text  string
}

// buildSections slices raw content between heading lines and resolves each
// heading's chapter (nearest level-1 ancestor, self included) and section
// (nearest level-2 ancestor). Content before the first heading is emitted
// under level 0 / "Introduction".
func buildSections(source []byte, marks []headingMark) []docSection {
	var sections []docSection

	preEnd := len(source)
	if len(marks) > 0 {
		preEnd = marks[0].lineStart
	}
	if pre := strings.TrimSpace(string(source[:preEnd])); pre != "" {
		sections = append(sections, docSection{
			level:   0,
			heading: introHeadingText,
			content: pre,
		})
	}

	stack := []headingInfo{}
	for i, mark := range marks {
		for len(stack) > 0 && stack[len(stack)-1].level >= mark.level {
			stack = stack[:len(stack)-1]
		}
		stack = append(stack, headingInfo{level: mark.level, text: mark.text})

		contentEnd := len(source)
		if i+1 < len(marks) {
			contentEnd = marks[i+1].lineStart
		}
		content := strings.TrimSpace(string(source[mark.contentStart:contentEnd]))
		if content == "" {
			continue
		}

		var chapter, section string
		for _, h := range stack {
			switch h.level {
			case 1:
				chapter = h.text
			case 2:
				section = h.text
			}
		}

		sections = append(sections, docSection{
			level:   mark.level,
			heading: mark.text,
			chapter: chapter,
			section: section,
			content: content,
		})
	}

	return sections
}

// extractTextFromNode extracts text content from a node and its children.
func extractTextFromNode(n ast.Node, source []byte) string {
	var textBuilder strings.Builder

	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := node.(type) {
		case *ast.Text:
			textBuilder.Write(v.Segment.Value(source))
		case *ast.String:
			textBuilder.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(textBuilder.String())
}

// classifyContent tags a section's full accumulated content, before any
// splitting, from its leading syntax.
func classifyContent(content string) string {
	trimmed := strings.TrimSpace(content)

	if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
		return ContentTypeCode
	}

	firstLine := trimmed
	if nl := strings.IndexByte(trimmed, '\n'); nl != -1 {
		firstLine = trimmed[:nl]
	}

	if strings.HasPrefix(firstLine, "|") && strings.Count(firstLine, "|") >= 2 {
		return ContentTypeTable
	}
	if hasListMarker(firstLine) {
		return ContentTypeList
	}
	if strings.HasPrefix(firstLine, ">") {
		return ContentTypeQuote
	}
	return ContentTypeText
}

// hasListMarker reports whether a line starts with a bullet or numbered
// list marker.
func hasListMarker(line string) bool {
	if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") || strings.HasPrefix(line, "+ ") {
		return true
	}

	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i == 0 || i >= len(line) {
		return false
	}
	if line[i] != '.' && line[i] != ')' {
		return false
	}
	return i+1 < len(line) && line[i+1] == ' '
}

// splitContent splits oversized content at blank-line boundaries, falling
// back to a hard cutoff, and prepends a fixed-size overlap from the end of
// the previous piece to every piece after the first. Sizes are in runes.
func (c *Chunker) splitContent(content string) []string {
	runes := []rune(content)
	if len(runes) <= c.maxChunkSize {
		return []string{content}
	}

	var pieces []string
	start := 0
	for start < len(runes) {
		end := start + c.maxChunkSize
		if end >= len(runes) {
			pieces = append(pieces, string(runes[start:]))
			break
		}

		// Scan backward from the hard cutoff for a blank line, accepting it
		// only past half of the chunk size.
		window := string(runes[start:end])
		split := end
		if idx := strings.LastIndex(window, "\n\n"); idx != -1 {
			boundary := utf8.RuneCountInString(window[:idx]) + 2
			if boundary > c.maxChunkSize/2 {
				split = start + boundary
			}
		}

		pieces = append(pieces, string(runes[start:split]))
		start = split
	}

	result := make([]string, len(pieces))
	result[0] = pieces[0]
	for i := 1; i < len(pieces); i++ {
		prev := []rune(pieces[i-1])
		overlap := overlapSize
		if len(prev) < overlap {
			overlap = len(prev)
		}
		result[i] = string(prev[len(prev)-overlap:]) + pieces[i]
	}

	return result
}
