package documents

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunker_SplitsOnParagraphs(t *testing.T) {
	text := "First paragraph.\n\nSecond paragraph.\n\n\nThird paragraph."

	chunks := NewChunker().Split(text)

	assert.Equal(t, []string{"First paragraph.", "Second paragraph.", "Third paragraph."}, chunks)
}

func TestChunker_BlankInput(t *testing.T) {
	chunker := NewChunker()

	assert.Empty(t, chunker.Split(""))
	assert.Empty(t, chunker.Split("\n\n   \n\n"))
}

func TestChunker_WindowsLongParagraphs(t *testing.T) {
	long := strings.Repeat("a", 2500)

	chunks := (&Chunker{Size: 1000, Overlap: 200}).Split(long)

	require.Len(t, chunks, 4)

	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 1000)
	}

	// Consecutive windows share overlap characters.
	assert.Equal(t, chunks[0][800:], chunks[1][:200])
}

func TestChunker_ShortParagraphStaysWhole(t *testing.T) {
	text := strings.Repeat("b", 999)

	chunks := (&Chunker{Size: 1000, Overlap: 200}).Split(text)

	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestChunker_InvalidSettingsFallBack(t *testing.T) {
	long := strings.Repeat("c", 3000)

	chunks := (&Chunker{Size: 100, Overlap: 100}).Split(long)

	assert.NotEmpty(t, chunks)
}
