package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/pdf-assistant/internal/errs"
	"github.com/bull/pdf-assistant/internal/loader"
)

func newDefault(t *testing.T) *Chunker {
	t.Helper()
	c, err := New(1000, 200)
	require.NoError(t, err)
	return c
}

// numberedWords returns "w0001 w0002 ..." so every word is unique.
func numberedWords(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%04d", i+1)
	}
	return strings.Join(words, " ")
}

// longestOverlap is the largest k with a[len(a)-k:] == b[:k].
func longestOverlap(a, b string) int {
	for k := min(len(a), len(b)); k > 0; k-- {
		if a[len(a)-k:] == b[:k] {
			return k
		}
	}
	return 0
}

func TestSplitDocument_ShortDocumentIsOneChunk(t *testing.T) {
	c := newDefault(t)

	for _, text := range []string{
		"The sky is blue.",
		"Para one.\n\nPara two.\nLine three.",
	} {
		chunks, err := c.SplitDocument(loader.Document{Source: "sky.pdf", Text: text})
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, text, chunks[0].Text)
		assert.Equal(t, 0, chunks[0].Index)
		assert.Equal(t, "sky.pdf", chunks[0].Source)
	}
}

func TestSplitDocument_ExactlyChunkSize(t *testing.T) {
	c := newDefault(t)

	// 143 words of 6 letters separated by single spaces: 143*7-1 = 1000.
	spaced := strings.TrimSuffix(strings.Repeat("abcdef ", 143), " ")
	unbroken := strings.Repeat("a", 1000)

	for _, text := range []string{spaced, unbroken} {
		require.Equal(t, 1000, utf8.RuneCountInString(text))

		chunks, err := c.SplitDocument(loader.Document{Source: "exact.pdf", Text: text})
		require.NoError(t, err)
		require.Len(t, chunks, 1, "no trailing empty chunk")
		assert.Equal(t, text, chunks[0].Text)
	}
}

func TestSplitDocument_BlankDocumentHasNoChunks(t *testing.T) {
	c := newDefault(t)

	chunks, err := c.SplitDocument(loader.Document{Source: "scan.pdf", Text: " \n\n \t"})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSplitDocument_OverlapReconstructsText(t *testing.T) {
	c := newDefault(t)
	text := numberedWords(600) // 3599 characters

	chunks, err := c.SplitDocument(loader.Document{Source: "long.pdf", Text: text})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 3)

	rebuilt := chunks[0].Text
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk.Text), 1000)
		if i == 0 {
			continue
		}

		k := longestOverlap(chunks[i-1].Text, chunk.Text)
		assert.Greater(t, k, 0, "chunk %d should overlap its predecessor", i)
		assert.LessOrEqual(t, k, 200, "chunk %d overlap too large", i)
		rebuilt += chunk.Text[k:]
	}

	assert.Equal(t, text, rebuilt)
}

func TestSplitDocument_PrefersParagraphBreaks(t *testing.T) {
	c := newDefault(t)

	paragraphs := make([]string, 10)
	for i := range paragraphs {
		paragraphs[i] = fmt.Sprintf("P%02d %send.", i, strings.Repeat("lorem ", 49))
	}
	text := strings.Join(paragraphs, "\n\n")

	chunks, err := c.SplitDocument(loader.Document{Source: "paras.pdf", Text: text})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for _, chunk := range chunks {
		assert.True(t, strings.HasPrefix(chunk.Text, "P"), "chunk starts mid-paragraph: %q", chunk.Text[:10])
		assert.True(t, strings.HasSuffix(chunk.Text, "end."), "chunk ends mid-paragraph")
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk.Text), 1000)
	}
}

func TestSplit_KeepsSourcePerChunk(t *testing.T) {
	c := newDefault(t)
	docs := []loader.Document{
		{Source: "a.pdf", Text: numberedWords(400)},
		{Source: "b.pdf", Text: "Short one."},
		{Source: "empty.pdf", Text: ""},
	}

	chunks, err := c.Split(docs)
	require.NoError(t, err)

	var fromA, fromB int
	for _, chunk := range chunks {
		switch chunk.Source {
		case "a.pdf":
			assert.Equal(t, fromA, chunk.Index)
			fromA++
		case "b.pdf":
			assert.Equal(t, "Short one.", chunk.Text)
			fromB++
		default:
			t.Fatalf("unexpected source %q", chunk.Source)
		}
	}
	assert.Greater(t, fromA, 1)
	assert.Equal(t, 1, fromB)
}

func TestNew_RejectsInvalidParameters(t *testing.T) {
	for _, tc := range []struct{ size, overlap int }{
		{0, 0},
		{-5, 0},
		{100, -1},
		{100, 100},
		{100, 150},
	} {
		_, err := New(tc.size, tc.overlap)
		assert.ErrorIs(t, err, errs.ErrConfiguration, "size=%d overlap=%d", tc.size, tc.overlap)
	}
}
