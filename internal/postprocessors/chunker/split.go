package chunker

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MinChunkLength is the shortest chunk, in runes, that Split returns.
const MinChunkLength = 50

// lookahead bounds how far the fixed-length split searches for a boundary.
const lookahead = 50

var (
	paragraphBreak = regexp.MustCompile(`\n\s*\n`)
	sentenceEnd    = regexp.MustCompile(`[。！？.!?]\s*`)
)

const (
	allowedPunct    = "，。！？；：“”‘’（）【】《》、.!?;:\"'()[]<>,-"
	sentenceMarks   = "。！？.!?"
	boundaryMarks   = " \n\t，。！？,.!?"
	paragraphGlue   = "\n\n"
	sentenceGlue    = " "
	cjkTerminator   = "。"
	latinTerminator = "."
)

// Clean normalises text before chunking.
// Runes outside the word, whitespace, CJK and punctuation whitelist are
// dropped. Whitespace runs become a single space, a single newline, or one
// blank line when the run held two or more newlines, so paragraph breaks
// survive. The result is trimmed.
func Clean(text string) string {
	if text == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(text))

	inSpace := false
	newlines := 0
	flush := func() {
		switch {
		case newlines >= 2:
			b.WriteString(paragraphGlue)
		case newlines == 1:
			b.WriteByte('\n')
		default:
			b.WriteByte(' ')
		}
		inSpace = false
		newlines = 0
	}

	for _, r := range text {
		if unicode.IsSpace(r) {
			inSpace = true
			if r == '\n' {
				newlines++
			}
			continue
		}
		if !allowed(r) {
			continue
		}
		if inSpace {
			flush()
		}
		b.WriteRune(r)
	}

	return strings.TrimSpace(b.String())
}

func allowed(r rune) bool {
	switch {
	case r == '_':
		return true
	case unicode.IsLetter(r), unicode.IsNumber(r), unicode.IsMark(r):
		return true
	case isCJK(r):
		return true
	default:
		return strings.ContainsRune(allowedPunct, r)
	}
}

func isCJK(r rune) bool {
	return r >= 0x4e00 && r <= 0x9fff
}

func hasCJK(s string) bool {
	for _, r := range s {
		if isCJK(r) {
			return true
		}
	}
	return false
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// tail returns the last n runes of s.
func tail(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

// normalise applies the degenerate parameter rules.
func normalise(chunkSize, chunkOverlap int) (int, int) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 2
	}
	return chunkSize, chunkOverlap
}

// Split cleans text and divides it into chunks of roughly chunkSize runes,
// preferring paragraph, then sentence, then fixed-length boundaries.
// A strategy is abandoned only when it yields no chunks. Chunks shorter
// than MinChunkLength are dropped, except that text no longer than
// chunkSize is returned whole. Split is pure and deterministic.
func Split(text string, chunkSize, chunkOverlap int) []string {
	cleaned := Clean(text)
	if cleaned == "" {
		return nil
	}

	chunkSize, chunkOverlap = normalise(chunkSize, chunkOverlap)
	if runeLen(cleaned) <= chunkSize {
		return []string{cleaned}
	}

	chunks := splitParagraphs(cleaned, chunkSize, chunkOverlap)
	if len(chunks) == 0 {
		chunks = splitSentences(cleaned, chunkSize, chunkOverlap)
	}
	if len(chunks) == 0 {
		chunks = splitLength(cleaned, chunkSize, chunkOverlap)
	}

	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		c = strings.TrimSpace(c)
		if c == "" || runeLen(c) < MinChunkLength {
			continue
		}
		out = append(out, c)
	}
	return out
}

func splitParagraphs(text string, size, overlap int) []string {
	paragraphs := paragraphBreak.Split(text, -1)
	if len(paragraphs) <= 1 {
		return nil
	}

	var chunks []string
	current := ""

	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}

		if runeLen(p) > size {
			if current != "" {
				chunks = append(chunks, strings.TrimSpace(current))
				current = ""
			}
			sub := splitSentences(p, size, overlap)
			if len(sub) == 0 {
				sub = splitLength(p, size, overlap)
			}
			chunks = append(chunks, sub...)
			continue
		}

		if current != "" && runeLen(current)+runeLen(p)+len(paragraphGlue) > size {
			chunks = append(chunks, strings.TrimSpace(current))
			if overlap > 0 && runeLen(current) > overlap {
				current = tail(current, overlap) + paragraphGlue + p
			} else {
				current = p
			}
			continue
		}

		if current != "" {
			current += paragraphGlue + p
		} else {
			current = p
		}
	}

	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, strings.TrimSpace(current))
	}
	return chunks
}

func splitSentences(text string, size, overlap int) []string {
	sentences := sentenceEnd.Split(text, -1)
	if len(sentences) <= 1 {
		return nil
	}

	var chunks []string
	current := ""
	last := len(sentences) - 1

	for i, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if i < last {
			if hasCJK(s) {
				s += cjkTerminator
			} else {
				s += latinTerminator
			}
		}

		if current != "" && runeLen(current)+runeLen(s)+len(sentenceGlue) > size {
			chunks = append(chunks, strings.TrimSpace(current))
			if overlap > 0 {
				if seed := overlapSentences(current, overlap); seed != "" {
					current = seed + sentenceGlue + s
				} else {
					current = s
				}
			} else {
				current = s
			}
			continue
		}

		if current != "" {
			current += sentenceGlue + s
		} else {
			current = s
		}
	}

	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, strings.TrimSpace(current))
	}
	return chunks
}

// overlapSentences returns the tail window of n runes, advanced past the
// first sentence terminator inside it.
func overlapSentences(text string, n int) string {
	if runeLen(text) <= n {
		return text
	}
	window := []rune(tail(text, n))
	start := 0
	for i, r := range window {
		if strings.ContainsRune(sentenceMarks, r) {
			start = i + 1
			break
		}
	}
	return strings.TrimSpace(string(window[start:]))
}

func splitLength(text string, size, overlap int) []string {
	runes := []rune(text)
	total := len(runes)

	var chunks []string
	start := 0
	for start < total {
		end := start + size
		if end < total {
			limit := min(lookahead, total-end)
			for i := 0; i < limit; i++ {
				if strings.ContainsRune(boundaryMarks, runes[end+i]) {
					end = end + i + 1
					break
				}
			}
		}
		if end > total {
			end = total
		}

		if c := strings.TrimSpace(string(runes[start:end])); c != "" {
			chunks = append(chunks, c)
		}

		if overlap > 0 && end < total {
			start = end - overlap
		} else {
			start = end
		}
	}
	return chunks
}
