// Package pdf provides a Normaliser that extracts page text from PDF files
// with UniPDF.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"

	"github.com/custodia-labs/libris/internal/core/domain"
	"github.com/custodia-labs/libris/internal/core/ports/driven"
	"github.com/custodia-labs/libris/internal/logger"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// EnvLicenseKey names the variable holding the UniDoc metered licence key.
const EnvLicenseKey = "UNIDOC_LICENSE_KEY"

// maxTitleLength bounds the first-line title heuristic.
const maxTitleLength = 200

// PageExtractor returns the text of each page of a PDF.
type PageExtractor interface {
	Pages(ctx context.Context, content []byte) ([]string, error)
}

// Normaliser handles PDF documents.
type Normaliser struct {
	pages PageExtractor
}

// New creates a PDF normaliser backed by UniPDF.
func New() *Normaliser {
	return &Normaliser{pages: &unipdfExtractor{}}
}

// NewWithExtractor creates a PDF normaliser with a custom page extractor.
func NewWithExtractor(pages PageExtractor) *Normaliser {
	return &Normaliser{pages: pages}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"application/pdf"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise extracts text page by page. Pages are separated by a blank line.
func (n *Normaliser) Normalise(ctx context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	if len(raw.Content) == 0 {
		return nil, fmt.Errorf("%w: empty pdf", domain.ErrInvalidInput)
	}

	pages, err := n.pages.Pages(ctx, raw.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: extract pdf text: %w", domain.ErrInvalidInput, err)
	}

	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	content := strings.Join(parts, "\n\n")

	title, _ := raw.Metadata["title"].(string)
	if title == "" {
		title = extractTitle(content, raw.URI)
	}

	doc := domain.Document{
		Title:    title,
		Content:  content,
		MIMEType: raw.MIMEType,
		Metadata: copyMetadata(raw.Metadata),
	}
	doc.Metadata["format"] = "pdf"
	doc.Metadata["pages"] = len(pages)
	if raw.URI != "" {
		doc.Metadata["source_uri"] = raw.URI
	}

	return &driven.NormaliseResult{
		Document: doc,
	}, nil
}

// extractTitle uses the first non-empty short line, then the filename.
func extractTitle(content, uri string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && len(line) <= maxTitleLength {
			return line
		}
	}

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

var licenseOnce sync.Once

// setLicense applies the metered key once per process. A missing or rejected
// key is logged; UniPDF then refuses to extract and the error surfaces per file.
func setLicense() {
	licenseOnce.Do(func() {
		key := os.Getenv(EnvLicenseKey)
		if key == "" {
			logger.Warn("%s not set, pdf extraction will fail", EnvLicenseKey)
			return
		}
		if err := license.SetMeteredKey(key); err != nil {
			logger.Warn("unidoc licence rejected: %v", err)
		}
	})
}

type unipdfExtractor struct{}

func (unipdfExtractor) Pages(ctx context.Context, content []byte) ([]string, error) {
	setLicense()

	reader, err := model.NewPdfReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	numPages, err := reader.GetNumPages()
	if err != nil {
		return nil, err
	}

	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := reader.GetPage(i)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		ex, err := extractor.New(page)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		text, err := ex.ExtractText()
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}
