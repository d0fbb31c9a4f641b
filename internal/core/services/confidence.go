package services

import (
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/libris/internal/core/domain"
)

// Confidence scores a ranked context list as the rank-weighted mean of
// chunk scores, with weight 1/(i+1) for rank i, clamped to [0, 1].
// An empty list scores 0.
func Confidence(chunks []domain.ContextChunk) float64 {
	if len(chunks) == 0 {
		return 0
	}
	var weighted, total float64
	for i, c := range chunks {
		w := 1.0 / float64(i+1)
		weighted += c.Score * w
		total += w
	}
	score := weighted / total
	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	default:
		return score
	}
}

// BuildContext joins chunk contents in rank order with blank lines,
// stopping before the first chunk that would exceed maxLen runes.
// A first chunk longer than maxLen on its own is truncated.
// It returns the context text and the chunks that contributed to it.
func BuildContext(chunks []domain.ContextChunk, maxLen int) (string, []domain.ContextChunk) {
	if len(chunks) == 0 {
		return "", nil
	}
	if maxLen <= 0 {
		maxLen = domain.DefaultMaxContextLength
	}

	const sep = "\n\n"
	var (
		b    strings.Builder
		used []domain.ContextChunk
		size int
	)
	for i, c := range chunks {
		n := utf8.RuneCountInString(c.Content)
		if i == 0 && n > maxLen {
			b.WriteString(string([]rune(c.Content)[:maxLen]))
			used = append(used, c)
			break
		}
		extra := n
		if i > 0 {
			extra += len(sep)
		}
		if size+extra > maxLen {
			break
		}
		if i > 0 {
			b.WriteString(sep)
		}
		b.WriteString(c.Content)
		size += extra
		used = append(used, c)
	}
	return b.String(), used
}

// retrievalKeywords trigger the RAG path in chat. They cover
// interrogatives, explanation requests and references to the book.
var retrievalKeywords = []string{
	"什么", "如何", "为什么", "哪里", "谁", "何时",
	"解释", "说明", "描述", "定义", "介绍",
	"书中", "文中", "内容", "章节", "段落",
	"what", "how", "why", "where", "who", "when", "which",
	"explain", "describe", "define", "summarize", "summarise",
	"chapter", "passage", "book", "author",
}

// DecideUseRetrieval reports whether a chat message looks like a question
// about the document. It is a keyword heuristic, not a classifier.
func DecideUseRetrieval(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range retrievalKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// extractiveAnswer is the reply used when generation is unavailable.
func extractiveAnswer(context string) string {
	excerpt := context
	if utf8.RuneCountInString(excerpt) > domain.ExtractiveExcerptLength {
		excerpt = string([]rune(excerpt)[:domain.ExtractiveExcerptLength])
	}
	return strings.Replace(domain.ExtractiveAnswerTemplate, "%s", excerpt, 1)
}
