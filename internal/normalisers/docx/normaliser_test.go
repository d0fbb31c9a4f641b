package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/libris/internal/core/domain"
	"github.com/custodia-labs/libris/internal/core/ports/driven"
)

const docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// buildDOCX zips the given parts into an in-memory archive.
func buildDOCX(t *testing.T, parts map[string]string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)
	for name, body := range parts {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func wordDocument(body string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body + `</w:body></w:document>`
}

const coreXML = `<?xml version="1.0" encoding="UTF-8"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties"
 xmlns:dc="http://purl.org/dc/elements/1.1/">
<dc:title> The Novel </dc:title><dc:creator>Jane Author</dc:creator>
</cp:coreProperties>`

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.Normaliser = New()
	assert.Equal(t, []string{docxMIME}, New().SupportedMIMETypes())
	assert.Equal(t, 50, New().Priority())
}

func TestNormalise_Success(t *testing.T) {
	content := buildDOCX(t, map[string]string{
		documentPart: wordDocument(
			`<w:p><w:r><w:t>Hello</w:t></w:r><w:r><w:t xml:space="preserve"> World</w:t></w:r></w:p>` +
				`<w:p></w:p>` +
				`<w:p><w:r><w:t>Col A</w:t><w:tab/><w:t>Col B</w:t></w:r></w:p>`),
		corePropsPart: coreXML,
	})

	result, err := New().Normalise(context.Background(), &domain.RawDocument{
		URI:      "/books/novel.docx",
		MIMEType: docxMIME,
		Content:  content,
	})
	require.NoError(t, err)

	doc := result.Document
	assert.Equal(t, "The Novel", doc.Title)
	assert.Equal(t, "Hello World\nCol A\tCol B", doc.Content)
	assert.Equal(t, "Jane Author", doc.Metadata["author"])
	assert.Equal(t, "docx", doc.Metadata["format"])
	assert.Equal(t, "/books/novel.docx", doc.Metadata["source_uri"])
}

func TestNormalise_CallerMetadataWins(t *testing.T) {
	content := buildDOCX(t, map[string]string{
		documentPart:  wordDocument(`<w:p><w:r><w:t>x</w:t></w:r></w:p>`),
		corePropsPart: coreXML,
	})

	result, err := New().Normalise(context.Background(), &domain.RawDocument{
		Content:  content,
		Metadata: map[string]any{"title": "Mine", "author": "Me"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Mine", result.Document.Title)
	assert.Equal(t, "Me", result.Document.Metadata["author"])
}

func TestNormalise_TitleFromFilename(t *testing.T) {
	content := buildDOCX(t, map[string]string{
		documentPart: wordDocument(`<w:p><w:r><w:t>x</w:t></w:r></w:p>`),
	})

	result, err := New().Normalise(context.Background(), &domain.RawDocument{
		URI:     "/tmp/annual_report-2023.docx",
		Content: content,
	})
	require.NoError(t, err)
	assert.Equal(t, "annual report 2023", result.Document.Title)
}

func TestNormalise_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  *domain.RawDocument
	}{
		{name: "nil", raw: nil},
		{name: "not a zip", raw: &domain.RawDocument{Content: []byte("plain text")}},
		{name: "missing document part", raw: &domain.RawDocument{
			Content: buildDOCX(t, map[string]string{corePropsPart: coreXML}),
		}},
		{name: "malformed xml", raw: &domain.RawDocument{
			Content: buildDOCX(t, map[string]string{documentPart: "<w:document><w:body>"}),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Normalise(context.Background(), tt.raw)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}
