package pdf

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/libris/internal/core/domain"
	"github.com/custodia-labs/libris/internal/core/ports/driven"
)

// mockPages is a test double for PageExtractor.
type mockPages struct {
	pages []string
	err   error
}

func (m *mockPages) Pages(_ context.Context, _ []byte) ([]string, error) {
	return m.pages, m.err
}

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.Normaliser = (*Normaliser)(nil)
	assert.Equal(t, []string{"application/pdf"}, New().SupportedMIMETypes())
	assert.Equal(t, 50, New().Priority())
}

func TestNormalise_WithMockExtractor(t *testing.T) {
	n := NewWithExtractor(&mockPages{pages: []string{
		"PDF Title\n\nThis is page one.\n",
		"   ",
		"Page three.",
	}})

	result, err := n.Normalise(context.Background(), &domain.RawDocument{
		URI:      "/path/to/document.pdf",
		MIMEType: "application/pdf",
		Content:  []byte("%PDF-1.4 fake pdf content"),
		Metadata: map[string]any{"author": "Ann"},
	})
	require.NoError(t, err)

	doc := result.Document
	assert.Empty(t, doc.ID)
	assert.Equal(t, "PDF Title", doc.Title)
	assert.Equal(t, "PDF Title\n\nThis is page one.\n\nPage three.", doc.Content)
	assert.Equal(t, "application/pdf", doc.MIMEType)
	assert.Equal(t, 3, doc.Metadata["pages"])
	assert.Equal(t, "Ann", doc.Metadata["author"])
	assert.Equal(t, "/path/to/document.pdf", doc.Metadata["source_uri"])
}

func TestNormalise_Errors(t *testing.T) {
	t.Run("nil document", func(t *testing.T) {
		_, err := New().Normalise(context.Background(), nil)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("empty content", func(t *testing.T) {
		_, err := NewWithExtractor(&mockPages{}).Normalise(context.Background(), &domain.RawDocument{})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("extractor failure", func(t *testing.T) {
		boom := errors.New("encrypted")
		_, err := NewWithExtractor(&mockPages{err: boom}).Normalise(context.Background(),
			&domain.RawDocument{Content: []byte("%PDF")})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.ErrorIs(t, err, boom)
	})
}

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		uri      string
		expected string
	}{
		{name: "first line as title", content: "Document Title\n\nSome content here.", uri: "/doc.pdf", expected: "Document Title"},
		{name: "skip empty lines", content: "\n\n\nActual Title\nContent", uri: "/doc.pdf", expected: "Actual Title"},
		{name: "fallback to filename", content: "", uri: "/path/to/my_document.pdf", expected: "my document"},
		{name: "skip very long first line", content: strings.Repeat("x", 250) + "\nShort Title", uri: "/doc.pdf", expected: "Short Title"},
		{name: "nothing usable", content: "", uri: "", expected: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, extractTitle(tc.content, tc.uri))
		})
	}
}
