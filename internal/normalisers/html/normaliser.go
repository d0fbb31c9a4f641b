package html

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/custodia-labs/libris/internal/core/domain"
	"github.com/custodia-labs/libris/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

var (
	multiSpaces   = regexp.MustCompile(`[ \t\f\r]+`)
	multiNewlines = regexp.MustCompile(`\n{3,}`)
)

// skipped elements contribute no text.
var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Head:     true,
	atom.Svg:      true,
	atom.Template: true,
}

// block elements are separated by line breaks.
var block = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Hr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Li: true, atom.Tr: true, atom.Blockquote: true, atom.Pre: true, atom.Table: true,
	atom.Section: true, atom.Article: true, atom.Header: true, atom.Footer: true,
	atom.Ul: true, atom.Ol: true, atom.Dt: true, atom.Dd: true,
}

// Normaliser handles HTML documents.
type Normaliser struct{}

// New creates a new HTML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Generic MIME normaliser, higher than plaintext
}

// Normalise converts an HTML document to readable text.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	title, content, err := extract(raw.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %w", domain.ErrInvalidInput, err)
	}
	if given, ok := raw.Metadata["title"].(string); ok && given != "" {
		title = given
	}
	if title == "" {
		title = titleFromURI(raw.URI)
	}

	doc := domain.Document{
		Title:    title,
		Content:  content,
		MIMEType: raw.MIMEType,
		Metadata: copyMetadata(raw.Metadata),
	}
	doc.Metadata["format"] = "html"
	if raw.URI != "" {
		doc.Metadata["source_uri"] = raw.URI
	}

	return &driven.NormaliseResult{
		Document: doc,
	}, nil
}

// extract walks the token stream once, collecting the <title> text and the
// visible body text.
func extract(content []byte) (title, text string, err error) {
	z := xhtml.NewTokenizer(bytes.NewReader(content))

	var (
		buf     strings.Builder
		titleSB strings.Builder
		depth   int
		inTitle bool
	)

	for {
		tt := z.Next()
		switch tt {
		case xhtml.ErrorToken:
			if z.Err() != nil && !errors.Is(z.Err(), io.EOF) {
				return "", "", z.Err()
			}
			return strings.TrimSpace(titleSB.String()), tidy(buf.String()), nil

		case xhtml.StartTagToken, xhtml.SelfClosingTagToken:
			tok := z.Token()
			switch {
			case tok.DataAtom == atom.Title:
				inTitle = tt == xhtml.StartTagToken
			case skipped[tok.DataAtom] && tt == xhtml.StartTagToken:
				depth++
			case block[tok.DataAtom]:
				buf.WriteByte('\n')
			}

		case xhtml.EndTagToken:
			tok := z.Token()
			switch {
			case tok.DataAtom == atom.Title:
				inTitle = false
			case skipped[tok.DataAtom] && depth > 0:
				depth--
			case block[tok.DataAtom]:
				buf.WriteByte('\n')
			}

		case xhtml.TextToken:
			data := string(z.Text())
			switch {
			case inTitle:
				titleSB.WriteString(data)
			case depth == 0:
				buf.WriteString(data)
			}
		}
	}
}

// tidy collapses whitespace and drops blank lines.
func tidy(s string) string {
	s = multiSpaces.ReplaceAllString(s, " ")
	s = multiNewlines.ReplaceAllString(s, "\n\n")

	lines := strings.Split(s, "\n")
	result := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			result = append(result, line)
		}
	}
	return strings.Join(result, "\n")
}

func titleFromURI(uri string) string {
	if uri == "" {
		return ""
	}
	filename := filepath.Base(uri)
	filename = strings.TrimSuffix(filename, filepath.Ext(filename))
	filename = strings.ReplaceAll(filename, "_", " ")
	return strings.ReplaceAll(filename, "-", " ")
}

// copyMetadata creates a shallow copy of metadata. The result is never nil.
func copyMetadata(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
