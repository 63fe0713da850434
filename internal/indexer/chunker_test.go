package indexer

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNewChunker(t *testing.T) {
	chunker := NewChunker(0)
	if chunker == nil {
		t.Fatal("NewChunker() returned nil")
	}
	if chunker.maxChunkSize != DefaultMaxChunkSize {
		t.Errorf("NewChunker(0) maxChunkSize = %d, want %d", chunker.maxChunkSize, DefaultMaxChunkSize)
	}
}

func TestChunker_ChunkMarkdown(t *testing.T) {
	chunker := NewChunker(DefaultMaxChunkSize)

	tests := []struct {
		name    string
		content string
		check   func(t *testing.T, chunks []Chunk)
	}{
		{
			name:    "empty content",
			content: "",
			check: func(t *testing.T, chunks []Chunk) {
				if len(chunks) != 0 {
					t.Errorf("got %d chunks, want 0", len(chunks))
				}
			},
		},
		{
			name:    "whitespace only",
			content: "  \n\n  \t\n",
			check: func(t *testing.T, chunks []Chunk) {
				if len(chunks) != 0 {
					t.Errorf("got %d chunks, want 0", len(chunks))
				}
			},
		},
		{
			name:    "content before first heading",
			content: "Preamble text here.\n\n# Chapter One\n\nBody.",
			check: func(t *testing.T, chunks []Chunk) {
				if len(chunks) != 2 {
					t.Fatalf("got %d chunks, want 2", len(chunks))
				}
				if chunks[0].HeadingLevel != 0 {
					t.Errorf("intro HeadingLevel = %d, want 0", chunks[0].HeadingLevel)
				}
				if chunks[0].HeadingText != "Introduction" {
					t.Errorf("intro HeadingText = %q, want Introduction", chunks[0].HeadingText)
				}
				if chunks[0].Content != "Preamble text here." {
					t.Errorf("intro Content = %q", chunks[0].Content)
				}
			},
		},
		{
			name:    "chapter and section hierarchy",
			content: "# Chapter One\n\nChapter intro.\n\n## Section A\n\nSection body.\n\n### Deep\n\nDeep body.",
			check: func(t *testing.T, chunks []Chunk) {
				if len(chunks) != 3 {
					t.Fatalf("got %d chunks, want 3", len(chunks))
				}
				if chunks[0].Chapter != "Chapter One" || chunks[0].Section != "" {
					t.Errorf("chunk 0 chapter/section = %q/%q", chunks[0].Chapter, chunks[0].Section)
				}
				if chunks[1].Chapter != "Chapter One" || chunks[1].Section != "Section A" {
					t.Errorf("chunk 1 chapter/section = %q/%q", chunks[1].Chapter, chunks[1].Section)
				}
				if chunks[2].Chapter != "Chapter One" || chunks[2].Section != "Section A" {
					t.Errorf("chunk 2 chapter/section = %q/%q", chunks[2].Chapter, chunks[2].Section)
				}
				if chunks[2].HeadingLevel != 3 || chunks[2].HeadingText != "Deep" {
					t.Errorf("chunk 2 level/heading = %d/%q", chunks[2].HeadingLevel, chunks[2].HeadingText)
				}
			},
		},
		{
			name:    "skipped heading level leaves section empty",
			content: "# Top\n\nIntro.\n\n### Jumped\n\nJumped body.",
			check: func(t *testing.T, chunks []Chunk) {
				if len(chunks) != 2 {
					t.Fatalf("got %d chunks, want 2", len(chunks))
				}
				if chunks[1].Chapter != "Top" {
					t.Errorf("chunk 1 Chapter = %q, want Top", chunks[1].Chapter)
				}
				if chunks[1].Section != "" {
					t.Errorf("chunk 1 Section = %q, want empty", chunks[1].Section)
				}
			},
		},
		{
			name:    "new chapter resets section",
			content: "# One\n\n## Sub\n\nFirst.\n\n# Two\n\nSecond.",
			check: func(t *testing.T, chunks []Chunk) {
				if len(chunks) != 2 {
					t.Fatalf("got %d chunks, want 2", len(chunks))
				}
				if chunks[1].Chapter != "Two" || chunks[1].Section != "" {
					t.Errorf("chunk 1 chapter/section = %q/%q, want Two/empty", chunks[1].Chapter, chunks[1].Section)
				}
			},
		},
		{
			name:    "heading with no content is skipped",
			content: "# Empty Chapter\n\n## Full Section\n\nBody here.",
			check: func(t *testing.T, chunks []Chunk) {
				if len(chunks) != 1 {
					t.Fatalf("got %d chunks, want 1", len(chunks))
				}
				if chunks[0].HeadingText != "Full Section" {
					t.Errorf("HeadingText = %q, want Full Section", chunks[0].HeadingText)
				}
				if chunks[0].Chapter != "Empty Chapter" {
					t.Errorf("Chapter = %q, want Empty Chapter", chunks[0].Chapter)
				}
			},
		},
		{
			name:    "quoted heading stays in content",
			content: "# Real\n\nSome text.\n\n> # Not a heading\n> quoted line",
			check: func(t *testing.T, chunks []Chunk) {
				if len(chunks) != 1 {
					t.Fatalf("got %d chunks, want 1", len(chunks))
				}
				if !strings.Contains(chunks[0].Content, "> # Not a heading") {
					t.Errorf("quoted heading missing from content: %q", chunks[0].Content)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, chunker.ChunkMarkdown(tt.content))
		})
	}
}

func TestChunker_ChunkMarkdown_NoHeadings(t *testing.T) {
	content := "Just plain prose without any headings.\n\nAnother paragraph of it."
	chunks := ChunkMarkdown(content, DefaultMaxChunkSize)

	if len(chunks) == 0 {
		t.Fatal("got no chunks for non-empty content")
	}
	for i, chunk := range chunks {
		if chunk.HeadingLevel != 0 {
			t.Errorf("chunk %d HeadingLevel = %d, want 0", i, chunk.HeadingLevel)
		}
		if chunk.HeadingText != "Introduction" {
			t.Errorf("chunk %d HeadingText = %q, want Introduction", i, chunk.HeadingText)
		}
		if chunk.Chapter != "" || chunk.Section != "" {
			t.Errorf("chunk %d chapter/section = %q/%q, want empty", i, chunk.Chapter, chunk.Section)
		}
	}
}

func TestChunker_ChunkMarkdown_NoHeadings_SplitNumbering(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 8; i++ {
		b.WriteString(strings.Repeat("prose ", 30))
		b.WriteString("\n\n")
	}

	chunks := ChunkMarkdown(b.String(), 200)
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want a split into at least 2", len(chunks))
	}
	for i, chunk := range chunks {
		if chunk.HeadingLevel != 0 || chunk.HeadingText != "Introduction" {
			t.Errorf("chunk %d heading = %d/%q, want 0/Introduction", i, chunk.HeadingLevel, chunk.HeadingText)
		}
		if chunk.Index != i {
			t.Errorf("chunk %d Index = %d", i, chunk.Index)
		}
		if chunk.TotalChunks != len(chunks) {
			t.Errorf("chunk %d TotalChunks = %d, want %d", i, chunk.TotalChunks, len(chunks))
		}
	}
}

func TestChunker_ChunkMarkdown_Numbering(t *testing.T) {
	chunks := ChunkMarkdown("# A\n\nOne.\n\n## B\n\nTwo.\n\n## C\n\nThree.", DefaultMaxChunkSize)

	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	for i, chunk := range chunks {
		if chunk.Index != i {
			t.Errorf("chunk %d Index = %d", i, chunk.Index)
		}
		if chunk.TotalChunks != len(chunks) {
			t.Errorf("chunk %d TotalChunks = %d, want %d", i, chunk.TotalChunks, len(chunks))
		}
		if chunk.CharCount != utf8.RuneCountInString(chunk.Content) {
			t.Errorf("chunk %d CharCount = %d, want %d", i, chunk.CharCount, utf8.RuneCountInString(chunk.Content))
		}
	}
}

func TestChunker_ChunkMarkdown_ContentTypes(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"fenced code", "# H\n\n```go\nfunc main() {}\n```", ContentTypeCode},
		{"tilde fence", "# H\n\n~~~\nraw\n~~~", ContentTypeCode},
		{"table", "# H\n\n| a | b |\n|---|---|\n| 1 | 2 |", ContentTypeTable},
		{"bullet list", "# H\n\n- one\n- two", ContentTypeList},
		{"numbered list", "# H\n\n1. one\n2. two", ContentTypeList},
		{"quote", "# H\n\n> quoted", ContentTypeQuote},
		{"plain text", "# H\n\nJust prose.", ContentTypeText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := ChunkMarkdown(tt.content, DefaultMaxChunkSize)
			if len(chunks) != 1 {
				t.Fatalf("got %d chunks, want 1", len(chunks))
			}
			if chunks[0].ContentType != tt.want {
				t.Errorf("ContentType = %q, want %q", chunks[0].ContentType, tt.want)
			}
		})
	}
}

func TestChunker_ChunkMarkdown_SplitsLongSections(t *testing.T) {
	const maxSize = 300

	var b strings.Builder
	b.WriteString("# Long\n\n")
	for i := 0; i < 10; i++ {
		b.WriteString(strings.Repeat("x", 120))
		b.WriteString("\n\n")
	}

	chunks := ChunkMarkdown(b.String(), maxSize)
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want at least 2", len(chunks))
	}

	for i, chunk := range chunks {
		// Pieces after the first carry up to overlapSize extra runes of overlap.
		limit := maxSize
		if i > 0 {
			limit += overlapSize
		}
		if chunk.CharCount > limit {
			t.Errorf("chunk %d CharCount = %d, exceeds %d", i, chunk.CharCount, limit)
		}
		if chunk.Chapter != "Long" {
			t.Errorf("chunk %d Chapter = %q, want Long", i, chunk.Chapter)
		}
	}
}

func TestChunker_ChunkMarkdown_OverlapPrefix(t *testing.T) {
	const maxSize = 250

	content := "# H\n\n" + strings.Repeat("a", 200) + "\n\n" + strings.Repeat("b", 200)
	chunks := ChunkMarkdown(content, maxSize)

	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}

	first := []rune(chunks[0].Content)
	overlap := overlapSize
	if len(first) < overlap {
		overlap = len(first)
	}
	wantPrefix := string(first[len(first)-overlap:])
	if !strings.HasPrefix(chunks[1].Content, wantPrefix) {
		t.Error("second chunk does not start with the tail of the first")
	}
	if !strings.HasSuffix(chunks[1].Content, strings.Repeat("b", 200)) {
		t.Error("second chunk lost its own content")
	}
}

func TestChunker_ChunkMarkdown_PrefersBlankLineBoundary(t *testing.T) {
	const maxSize = 100

	// The blank line sits past maxSize/2, so the split lands on it instead
	// of the hard cutoff.
	content := "# H\n\n" + strings.Repeat("a", 70) + "\n\n" + strings.Repeat("b", 70)
	chunks := ChunkMarkdown(content, maxSize)

	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if !strings.HasPrefix(chunks[0].Content, strings.Repeat("a", 70)) {
		t.Errorf("first chunk = %q", chunks[0].Content)
	}
	if strings.Contains(chunks[0].Content, "b") {
		t.Error("first chunk crossed the blank-line boundary")
	}
}

func TestChunker_ChunkMarkdown_Deterministic(t *testing.T) {
	content := "# A\n\n" + strings.Repeat("text ", 600) + "\n\n## B\n\n- item\n- item"
	chunker := NewChunker(500)

	first := chunker.ChunkMarkdown(content)
	second := chunker.ChunkMarkdown(content)

	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func TestChunker_ChunkMarkdown_MultiByte(t *testing.T) {
	const maxSize = 50

	content := "# H\n\n" + strings.Repeat("世", 120)
	chunks := ChunkMarkdown(content, maxSize)

	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want at least 2", len(chunks))
	}
	for i, chunk := range chunks {
		if !utf8.ValidString(chunk.Content) {
			t.Errorf("chunk %d content is not valid UTF-8", i)
		}
	}
}
