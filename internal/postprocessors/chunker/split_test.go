package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	mlParagraph      = "Machine learning is a field of study that gives computers the ability to learn from data."
	cookingParagraph = "Cooking recipes describe how to combine ingredients such as flour, eggs and butter into food."
)

func TestClean(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"collapses spaces and tabs", "Hello,   world!\t\tFoo", "Hello, world! Foo"},
		{"keeps single newline", "line1\nline2", "line1\nline2"},
		{"keeps one blank line", "a\n\n\n b", "a\n\nb"},
		{"drops symbols", "emoji 😀 here ★", "emoji here"},
		{"keeps cjk punctuation", "你好，世界！《书》", "你好，世界！《书》"},
		{"trims", "  padded  ", "padded"},
		{"only symbols", "@#$%", ""},
		{"keeps quotes and dashes", `"quoted" - 'single'`, `"quoted" - 'single'`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.input))
		})
	}
}

func TestSplit_Empty(t *testing.T) {
	assert.Nil(t, Split("", 100, 10))
	assert.Nil(t, Split("   \n\t ", 100, 10))
}

func TestSplit_ShortTextPassthrough(t *testing.T) {
	got := Split("  Short   text.  ", 100, 20)
	assert.Equal(t, []string{"Short text."}, got)
}

func TestSplit_Deterministic(t *testing.T) {
	text := strings.Repeat(mlParagraph+" ", 20) + "\n\n" + strings.Repeat(cookingParagraph+" ", 20)

	first := Split(text, 300, 50)
	second := Split(text, 300, 50)

	require.NotEmpty(t, first)
	assert.Equal(t, first, second)
}

func TestSplit_MinimumChunkFloor(t *testing.T) {
	text := strings.Repeat(mlParagraph+" Tiny. ", 15)

	for _, c := range Split(text, 200, 40) {
		assert.GreaterOrEqual(t, runeLen(c), MinChunkLength, c)
	}
}

func TestSplit_Paragraphs(t *testing.T) {
	t.Run("one chunk per paragraph without overlap", func(t *testing.T) {
		got := Split(mlParagraph+"\n\n"+cookingParagraph, 120, 0)
		assert.Equal(t, []string{mlParagraph, cookingParagraph}, got)
	})

	t.Run("overlap seeds next chunk with tail", func(t *testing.T) {
		got := Split(mlParagraph+"\n\n"+cookingParagraph, 120, 20)

		require.Len(t, got, 2)
		assert.Equal(t, mlParagraph, got[0])
		assert.True(t, strings.HasSuffix(got[1], cookingParagraph))
		assert.Contains(t, got[1], "from data.\n\n")
	})

	t.Run("small paragraphs are merged", func(t *testing.T) {
		text := mlParagraph + "\n\n" + cookingParagraph + "\n\n" + mlParagraph
		got := Split(text, 200, 0)

		require.Len(t, got, 2)
		assert.Equal(t, mlParagraph+"\n\n"+cookingParagraph, got[0])
		assert.Equal(t, mlParagraph, got[1])
	})
}

func TestSplit_SentenceFallback(t *testing.T) {
	text := strings.Repeat("This sentence talks about reading long books slowly! ", 10)

	got := Split(text, 150, 0)

	require.NotEmpty(t, got)
	for _, c := range got {
		assert.True(t, strings.HasSuffix(c, "."), "terminator normalised: %q", c)
		assert.LessOrEqual(t, runeLen(c), 150)
	}
}

func TestSplit_CJKTerminator(t *testing.T) {
	sentence := "机器学习是一门让计算机从数据中学习规律的学科，它在很多领域都有应用"
	text := strings.Repeat(sentence+"！", 6)

	got := Split(text, 80, 0)

	require.NotEmpty(t, got)
	for _, c := range got {
		assert.True(t, strings.HasSuffix(c, "。"), c)
		assert.NotContains(t, c, "！")
	}
}

func TestSplit_LengthFallback(t *testing.T) {
	text := strings.TrimSpace(strings.Repeat("word ", 100))

	got := Split(text, 100, 0)

	require.NotEmpty(t, got)
	for _, c := range got {
		for _, w := range strings.Fields(c) {
			assert.Equal(t, "word", w, "words are not cut")
		}
	}
}

func TestSplit_OverlapClamped(t *testing.T) {
	got := Split(strings.Repeat("a", 300), 100, 150)

	require.Len(t, got, 5)
	for _, c := range got {
		assert.Equal(t, 100, runeLen(c))
	}
}

func TestSplit_Coverage(t *testing.T) {
	sentences := []string{
		"Readers often highlight passages that matter to them",
		"Those highlights become the seeds of later reflection",
		"A retrieval system returns the passages closest to a question",
		"Generation then turns the passages into a readable answer",
	}
	text := strings.Join(sentences, ". ") + "."

	joined := strings.Join(Split(strings.Repeat(text+" ", 3), 120, 30), " ")

	for _, s := range sentences {
		assert.Contains(t, joined, s)
	}
}

func TestOverlapSentences(t *testing.T) {
	assert.Equal(t, "Gamma delta epsilon.", overlapSentences("Alpha beta. Gamma delta epsilon.", 24))
	assert.Equal(t, "short", overlapSentences("short", 24))
}

func TestNormalise(t *testing.T) {
	tests := []struct {
		name                  string
		size, overlap         int
		wantSize, wantOverlap int
	}{
		{"valid", 500, 100, 500, 100},
		{"zero size", 0, 100, DefaultChunkSize, 100},
		{"negative overlap", 500, -5, 500, 0},
		{"overlap equals size", 100, 100, 100, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size, overlap := normalise(tt.size, tt.overlap)
			assert.Equal(t, tt.wantSize, size)
			assert.Equal(t, tt.wantOverlap, overlap)
		})
	}
}
