package knowledge

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/genstack/genstack/pkg/models"
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// Embedder turns text into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorStore implements Store and Writer on top of a PostgreSQL database
// with the pgvector extension. Embeddings come from the injected Embedder;
// similarity search runs over the document_chunks table by cosine distance.
type VectorStore struct {
	db       *sql.DB
	embedder Embedder
	logger   *slog.Logger
}

// NewVectorStore creates a pgvector-backed knowledge store.
func NewVectorStore(db *sql.DB, embedder Embedder, logger *slog.Logger) *VectorStore {
	return &VectorStore{db: db, embedder: embedder, logger: logger}
}

// Embed delegates to the configured embedder.
func (s *VectorStore) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.embedder.Embed(ctx, text)
}

// Search returns the topK most similar chunks, best match first. No matches
// is an empty result, not an error.
func (s *VectorStore) Search(ctx context.Context, embedding []float32, opts SearchOptions) ([]models.Passage, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = models.DefaultTopK
	}

	query := `
		SELECT c.content, d.filename, 1 - (c.embedding <=> $1) AS score
		FROM document_chunks c
		JOIN documents d ON d.id = c.document_id
		ORDER BY c.embedding <=> $1
		LIMIT $2
	`
	args := []any{pgvector.NewVector(embedding), topK}

	if opts.WorkflowID != "" {
		query = `
			SELECT c.content, d.filename, 1 - (c.embedding <=> $1) AS score
			FROM document_chunks c
			JOIN documents d ON d.id = c.document_id
			WHERE c.workflow_id = $3
			ORDER BY c.embedding <=> $1
			LIMIT $2
		`
		args = append(args, opts.WorkflowID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, Transient(fmt.Errorf("%w: %w", ErrSearchUnavailable, err))
	}

	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	passages := make([]models.Passage, 0, topK)

	for rows.Next() {
		var passage models.Passage
		if err := rows.Scan(&passage.Text, &passage.SourceID, &passage.Score); err != nil {
			return nil, fmt.Errorf("%w: failed to scan chunk: %w", ErrSearchUnavailable, err)
		}

		passages = append(passages, passage)
	}

	if err := rows.Err(); err != nil {
		return nil, Transient(fmt.Errorf("%w: %w", ErrSearchUnavailable, err))
	}

	return passages, nil
}

// AddChunks stores embedded chunks for a document in one transaction.
func (s *VectorStore) AddChunks(ctx context.Context, documentID string, workflowID *string, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	insert := `
		INSERT INTO document_chunks (id, document_id, workflow_id, chunk_index, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	for _, chunk := range chunks {
		_, err := tx.ExecContext(ctx, insert,
			uuid.New().String(),
			documentID,
			workflowID,
			chunk.Index,
			chunk.Content,
			pgvector.NewVector(chunk.Embedding),
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", chunk.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunks: %w", err)
	}

	return nil
}

// DeleteDocument removes all stored chunks of a document.
func (s *VectorStore) DeleteDocument(ctx context.Context, documentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return fmt.Errorf("failed to delete chunks for document %s: %w", documentID, err)
	}

	return nil
}
