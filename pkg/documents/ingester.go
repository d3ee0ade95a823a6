package documents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/genstack/genstack/pkg/knowledge"
	"github.com/genstack/genstack/pkg/models"
	"github.com/genstack/genstack/pkg/persistence"
)

// ErrEmptyDocument indicates a file produced no text to ingest.
var ErrEmptyDocument = errors.New("document contains no extractable text")

// Embedder produces an embedding vector for one document chunk.
type Embedder interface {
	EmbedDocument(ctx context.Context, text string) ([]float32, error)
}

// Ingester runs the document pipeline: extract, chunk, embed, store. The
// document record is saved before embedding starts, so a crash mid-ingestion
// leaves an unprocessed record rather than orphaned chunks.
type Ingester struct {
	persistence persistence.Persistence
	embedder    Embedder
	writer      knowledge.Writer
	chunker     *Chunker
	logger      *slog.Logger
}

// NewIngester creates a document ingester.
func NewIngester(p persistence.Persistence, embedder Embedder, writer knowledge.Writer, logger *slog.Logger) *Ingester {
	return &Ingester{
		persistence: p,
		embedder:    embedder,
		writer:      writer,
		chunker:     NewChunker(),
		logger:      logger,
	}
}

// Ingest processes one uploaded file. A non-nil workflowID attaches the
// document to that workflow for scoped retrieval.
func (i *Ingester) Ingest(ctx context.Context, filename string, data []byte, workflowID *string) (*models.Document, error) {
	text, err := ExtractText(filename, data)
	if err != nil {
		return nil, err
	}

	pieces := i.chunker.Split(text)
	if len(pieces) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, filename)
	}

	document := &models.Document{
		Filename:   filename,
		WorkflowID: workflowID,
	}

	if err := i.persistence.SaveDocument(ctx, document); err != nil {
		return nil, fmt.Errorf("failed to save document record: %w", err)
	}

	i.logger.InfoContext(ctx, "ingesting document",
		"document_id", document.ID, "filename", filename, "chunks", len(pieces))

	chunks := make([]knowledge.Chunk, 0, len(pieces))

	for index, piece := range pieces {
		embedding, err := i.embedder.EmbedDocument(ctx, piece)
		if err != nil {
			return document, fmt.Errorf("failed to embed chunk %d of %s: %w", index, document.ID, err)
		}

		chunks = append(chunks, knowledge.Chunk{
			Index:     index,
			Content:   piece,
			Embedding: embedding,
		})
	}

	if err := i.writer.AddChunks(ctx, document.ID, workflowID, chunks); err != nil {
		return document, fmt.Errorf("failed to store chunks of %s: %w", document.ID, err)
	}

	if err := i.persistence.MarkDocumentProcessed(ctx, document.ID, len(chunks)); err != nil {
		return document, err
	}

	document.Processed = true
	document.ChunkCount = len(chunks)

	return document, nil
}

// Delete removes a document's chunks from the vector store and its record
// from persistence.
func (i *Ingester) Delete(ctx context.Context, documentID string) error {
	if err := i.writer.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("failed to delete chunks of %s: %w", documentID, err)
	}

	return i.persistence.DeleteDocument(ctx, documentID)
}
