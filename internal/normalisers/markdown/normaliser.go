package markdown

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/custodia-labs/libris/internal/core/domain"
	"github.com/custodia-labs/libris/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

var (
	codeBlockRe    = regexp.MustCompile("(?s)```[^\n]*\n(.*?)```")
	inlineCodeRe   = regexp.MustCompile("`([^`]+)`")
	imageRe        = regexp.MustCompile(`!\[([^\]]*)\]\([^)]+\)`)
	linkRe         = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	headingRe      = regexp.MustCompile(`(?m)^#{1,6}[ \t]+`)
	emphasisRe     = regexp.MustCompile(`(\*\*|\*)([^*\n]+)(\*\*|\*)|\b(__|_)([^_\n]+)(__|_)\b`)
	blockquoteRe   = regexp.MustCompile(`(?m)^>\s?`)
	ruleRe         = regexp.MustCompile(`(?m)^[ \t]*([-*_][ \t]*){3,}$`)
	bulletRe       = regexp.MustCompile(`(?m)^[ \t]*[-*+][ \t]+`)
	numberedRe     = regexp.MustCompile(`(?m)^[ \t]*\d+\.[ \t]+`)
	tableRuleRe    = regexp.MustCompile(`(?m)^[ \t]*\|?[ \t:|-]+\|[ \t:|-]*$`)
	frontMatterRe  = regexp.MustCompile(`(?s)\A---\n(.*?)\n---\n`)
	multiNewlineRe = regexp.MustCompile(`\n{3,}`)
)

// Normaliser handles Markdown documents.
type Normaliser struct{}

// New creates a new Markdown normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Generic MIME normaliser, higher than plaintext
}

// Normalise converts a markdown document to readable text.
// Code block bodies and link text are kept; markup is dropped.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	rawContent := strings.ReplaceAll(string(raw.Content), "\r\n", "\n")
	rawContent = strings.ToValidUTF8(rawContent, "�")
	rawContent = frontMatterRe.ReplaceAllString(rawContent, "")

	title, _ := raw.Metadata["title"].(string)
	if title == "" {
		title = extractMarkdownTitle(rawContent, raw.URI)
	}

	doc := domain.Document{
		Title:    title,
		Content:  stripMarkdown(rawContent),
		MIMEType: raw.MIMEType,
		Metadata: copyMetadata(raw.Metadata),
	}
	doc.Metadata["format"] = "markdown"
	if raw.URI != "" {
		doc.Metadata["source_uri"] = raw.URI
	}

	return &driven.NormaliseResult{
		Document: doc,
	}, nil
}

// extractMarkdownTitle returns the first H1 heading, or a title built from the filename.
func extractMarkdownTitle(content, uri string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "#"))
		}
	}

	if uri == "" {
		return ""
	}
	filename := filepath.Base(uri)
	filename = strings.TrimSuffix(filename, filepath.Ext(filename))
	filename = strings.ReplaceAll(filename, "_", " ")
	filename = strings.ReplaceAll(filename, "-", " ")
	return filename
}

// stripMarkdown removes common markdown formatting.
func stripMarkdown(content string) string {
	content = codeBlockRe.ReplaceAllString(content, "$1")
	content = inlineCodeRe.ReplaceAllString(content, "$1")
	content = imageRe.ReplaceAllString(content, "$1")
	content = linkRe.ReplaceAllString(content, "$1")
	content = headingRe.ReplaceAllString(content, "")
	content = ruleRe.ReplaceAllString(content, "")
	content = emphasisRe.ReplaceAllString(content, "$2$5")
	content = blockquoteRe.ReplaceAllString(content, "")
	content = bulletRe.ReplaceAllString(content, "")
	content = numberedRe.ReplaceAllString(content, "")
	content = tableRuleRe.ReplaceAllString(content, "")
	content = multiNewlineRe.ReplaceAllString(content, "\n\n")

	return strings.TrimSpace(content)
}

// copyMetadata creates a shallow copy of metadata. The result is never nil.
func copyMetadata(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
