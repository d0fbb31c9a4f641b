package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/libris/internal/core/domain"
	"github.com/custodia-labs/libris/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

const (
	documentPart   = "word/document.xml"
	corePropsPart  = "docProps/core.xml"
	maxPartSize    = 64 << 20
	wordprocessing = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
)

// Normaliser handles DOCX documents.
type Normaliser struct{}

// New creates a new DOCX normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise reads paragraph text from word/document.xml. Title and author
// come from docProps/core.xml when present.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	reader, err := zip.NewReader(bytes.NewReader(raw.Content), int64(len(raw.Content)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a docx archive: %w", domain.ErrInvalidInput, err)
	}

	body, err := readPart(reader, documentPart)
	if err != nil {
		return nil, err
	}
	content, err := paragraphText(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, documentPart, err)
	}

	doc := domain.Document{
		Content:  content,
		MIMEType: raw.MIMEType,
		Metadata: copyMetadata(raw.Metadata),
	}
	doc.Metadata["format"] = "docx"
	if raw.URI != "" {
		doc.Metadata["source_uri"] = raw.URI
	}

	props := readCoreProps(reader)
	if _, ok := doc.Metadata["author"]; !ok && props.Creator != "" {
		doc.Metadata["author"] = props.Creator
	}

	switch title, _ := raw.Metadata["title"].(string); {
	case title != "":
		doc.Title = title
	case props.Title != "":
		doc.Title = props.Title
	default:
		doc.Title = titleFromURI(raw.URI)
	}

	return &driven.NormaliseResult{
		Document: doc,
	}, nil
}

func readPart(reader *zip.Reader, name string) ([]byte, error) {
	f, err := reader.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%w: missing %s", domain.ErrInvalidInput, name)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxPartSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", domain.ErrInvalidInput, name, err)
	}
	return data, nil
}

// paragraphText streams the document part, emitting one line per <w:p>.
// Tabs and line breaks inside a paragraph are kept.
func paragraphText(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var (
		out    strings.Builder
		para   strings.Builder
		inText bool
	)
	flush := func() {
		line := strings.TrimSpace(para.String())
		para.Reset()
		if line == "" {
			return
		}
		if out.Len() > 0 {
			out.WriteByte('\n')
		}
		out.WriteString(line)
	}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != wordprocessing {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				para.WriteByte('\t')
			case "br", "cr":
				para.WriteByte('\n')
			}
		case xml.EndElement:
			if t.Name.Space != wordprocessing {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				flush()
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}
	flush()

	return out.String(), nil
}

type coreProps struct {
	Title   string `xml:"title"`
	Creator string `xml:"creator"`
}

// readCoreProps returns zero values when the part is absent or malformed.
func readCoreProps(reader *zip.Reader) coreProps {
	var props coreProps
	data, err := readPart(reader, corePropsPart)
	if err != nil {
		return props
	}
	if err := xml.Unmarshal(data, &props); err != nil {
		return coreProps{}
	}
	props.Title = strings.TrimSpace(props.Title)
	props.Creator = strings.TrimSpace(props.Creator)
	return props
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
