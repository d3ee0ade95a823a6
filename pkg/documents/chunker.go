// Package documents implements the ingestion pipeline: text extraction,
// chunking, embedding and storage of uploaded documents.
package documents

import (
	"regexp"
	"strings"
)

// Chunking defaults, tuned for embedding models with ~2k-token windows.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

var paragraphSplitter = regexp.MustCompile(`\n{2,}`)

// Chunker splits extracted text into embedding-sized pieces. Paragraphs are
// the primary unit; paragraphs longer than Size are windowed with Overlap
// characters of context carried between windows.
type Chunker struct {
	Size    int
	Overlap int
}

// NewChunker creates a chunker with the default size and overlap.
func NewChunker() *Chunker {
	return &Chunker{Size: DefaultChunkSize, Overlap: DefaultChunkOverlap}
}

// Split breaks text into chunks. Empty paragraphs are dropped; the result is
// empty for blank input.
func (c *Chunker) Split(text string) []string {
	size := c.Size
	if size <= 0 {
		size = DefaultChunkSize
	}

	overlap := c.Overlap
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}

	paragraphs := paragraphSplitter.Split(text, -1)
	chunks := make([]string, 0, len(paragraphs))

	for _, paragraph := range paragraphs {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}

		chunks = append(chunks, splitLong(paragraph, size, overlap)...)
	}

	return chunks
}

func splitLong(s string, size, overlap int) []string {
	if len(s) <= size {
		return []string{s}
	}

	var chunks []string

	for i := 0; i < len(s); i += size - overlap {
		end := i + size
		if end > len(s) {
			end = len(s)
		}

		chunks = append(chunks, strings.TrimSpace(s[i:end]))

		if end == len(s) {
			break
		}
	}

	return chunks
}
