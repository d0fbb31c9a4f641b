// Package keywords annotates chunks with their most frequent terms.
package keywords

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/libris/internal/core/domain"
	"github.com/custodia-labs/libris/internal/core/ports/driven"
)

// MetadataKey is the chunk metadata key holding the keyword list.
const MetadataKey = "keywords"

// DefaultMaxKeywords is the default number of keywords kept per chunk.
const DefaultMaxKeywords = 10

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

var stopWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`的 了 在 是 我 有 和 就 不 人 都 一 一个 上 也 很 到 说 要 去 你 会 着 没有 看 好 自己 这
		the a an and or but in on at to for of with by is are was were be been have has had do does did will would could should`) {
		stopWords[w] = struct{}{}
	}
}

var _ driven.PostProcessor = (*Processor)(nil)

// Processor stores frequency-ranked keywords on every chunk.
type Processor struct {
	limit int
}

// New creates a keywords processor keeping at most limit terms per chunk.
func New(limit int) *Processor {
	if limit <= 0 {
		limit = DefaultMaxKeywords
	}
	return &Processor{limit: limit}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "keywords"
}

// Process annotates the given chunks. It never adds or removes chunks.
func (p *Processor) Process(_ context.Context, _ *domain.Document, chunks []domain.DocumentChunk) ([]domain.DocumentChunk, error) {
	for i := range chunks {
		kw := Extract(chunks[i].Content, p.limit)
		if len(kw) == 0 {
			continue
		}
		if chunks[i].Metadata == nil {
			chunks[i].Metadata = make(map[string]any)
		}
		chunks[i].Metadata[MetadataKey] = kw
	}
	return chunks, nil
}

// Extract returns up to limit words of at least two runes, most frequent
// first, skipping common stop words. Ties keep first-occurrence order.
func Extract(text string, limit int) []string {
	if text == "" || limit <= 0 {
		return nil
	}

	counts := make(map[string]int)
	var order []string
	for _, w := range wordPattern.FindAllString(text, -1) {
		if utf8.RuneCountInString(w) < 2 {
			continue
		}
		if _, stop := stopWords[strings.ToLower(w)]; stop {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	if len(order) > limit {
		order = order[:limit]
	}
	return order
}
