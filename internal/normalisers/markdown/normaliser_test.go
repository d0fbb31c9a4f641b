package markdown

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/libris/internal/core/domain"
	"github.com/custodia-labs/libris/internal/core/ports/driven"
)

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.Normaliser = New()
	assert.Equal(t, 50, New().Priority())
	assert.ElementsMatch(t, []string{"text/markdown", "text/x-markdown"}, New().SupportedMIMETypes())
}

func TestNormalise_Success(t *testing.T) {
	raw := &domain.RawDocument{
		URI:      "/path/to/document.md",
		MIMEType: "text/markdown",
		Content:  []byte("# Hello World\n\nThis is a test."),
	}

	result, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)

	doc := result.Document
	assert.Empty(t, doc.ID)
	assert.Equal(t, "Hello World", doc.Title)
	assert.Equal(t, "Hello World\n\nThis is a test.", doc.Content)
	assert.Equal(t, "text/markdown", doc.MIMEType)
	assert.Equal(t, "markdown", doc.Metadata["format"])
	assert.Equal(t, "/path/to/document.md", doc.Metadata["source_uri"])
}

func TestNormalise_NilDocument(t *testing.T) {
	_, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNormalise_TitleExtraction(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		uri      string
		metadata map[string]any
		want     string
	}{
		{name: "first h1", content: "intro\n# Main\n# Second", uri: "a.md", want: "Main"},
		{name: "h2 ignored", content: "## Sub\ntext", uri: "/docs/my_notes-file.md", want: "my notes file"},
		{name: "metadata wins", content: "# Heading", uri: "a.md", metadata: map[string]any{"title": "Given"}, want: "Given"},
		{name: "no uri", content: "plain", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := New().Normalise(context.Background(), &domain.RawDocument{
				URI:      tt.uri,
				Content:  []byte(tt.content),
				Metadata: tt.metadata,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Document.Title)
		})
	}
}

func TestStripMarkdown(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "headings", input: "## Section\nbody", want: "Section\nbody"},
		{name: "links keep text", input: "see [the docs](http://x.io) now", want: "see the docs now"},
		{name: "images keep alt", input: "![diagram](a.png)", want: "diagram"},
		{name: "bold and italic", input: "**bold** and *italic* and _under_", want: "bold and italic and under"},
		{name: "snake case untouched", input: "call snake_case_name here", want: "call snake_case_name here"},
		{name: "inline code", input: "run `go test` first", want: "run go test first"},
		{name: "code block body kept", input: "```go\nfmt.Println()\n```", want: "fmt.Println()"},
		{name: "lists", input: "- one\n* two\n1. three", want: "one\ntwo\nthree"},
		{name: "blockquote", input: "> quoted line", want: "quoted line"},
		{name: "rule removed", input: "above\n\n---\n\nbelow", want: "above\n\nbelow"},
		{name: "table separator removed", input: "| a | b |\n|---|---|\n| 1 | 2 |", want: "| a | b |\n\n| 1 | 2 |"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripMarkdown(tt.input))
		})
	}
}

func TestNormalise_FrontMatterDropped(t *testing.T) {
	raw := &domain.RawDocument{
		URI:     "post.md",
		Content: []byte("---\ntitle: ignored\n---\n# Post\n\nBody text."),
	}

	result, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "Post", result.Document.Title)
	assert.NotContains(t, result.Document.Content, "ignored")
}

func TestNormalise_MetadataPreserved(t *testing.T) {
	raw := &domain.RawDocument{
		URI:      "a.md",
		Content:  []byte("text"),
		Metadata: map[string]any{"author": "Ada"},
	}

	result, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "Ada", result.Document.Metadata["author"])
	_, leaked := raw.Metadata["format"]
	assert.False(t, leaked)
}
