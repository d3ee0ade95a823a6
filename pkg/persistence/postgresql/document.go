package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/genstack/genstack/pkg/models"
	"github.com/genstack/genstack/pkg/persistence"
	"github.com/google/uuid"
)

// DocumentRepository handles document metadata database operations. Chunk
// contents and embeddings live in document_chunks, managed by the vector
// store.
type DocumentRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewDocumentRepository creates a new document repository.
func NewDocumentRepository(db *sql.DB, logger *slog.Logger) *DocumentRepository {
	return &DocumentRepository{db: db, logger: logger}
}

// Save inserts or updates a document record.
func (r *DocumentRepository) Save(ctx context.Context, document *models.Document) error {
	if document.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate document ID: %w", err)
		}

		document.ID = id.String()
	}

	if document.CreatedAt.IsZero() {
		document.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO documents (id, filename, workflow_id, chunk_count, processed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			filename = EXCLUDED.filename,
			workflow_id = EXCLUDED.workflow_id,
			chunk_count = EXCLUDED.chunk_count,
			processed = EXCLUDED.processed,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		document.ID,
		document.Filename,
		document.WorkflowID,
		document.ChunkCount,
		document.Processed,
		document.CreatedAt,
		document.UpdatedAt,
	)
	if err != nil {
		return persistence.NewStorageError("SaveDocument", document.ID, err)
	}

	return nil
}

// GetByID returns a document by its ID.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	query := `
		SELECT
			id
		  , filename
		  , workflow_id
		  , chunk_count
		  , processed
		  , created_at
		  , updated_at
		FROM documents
		WHERE id = $1
	`

	var document models.Document

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&document.ID,
		&document.Filename,
		&document.WorkflowID,
		&document.ChunkCount,
		&document.Processed,
		&document.CreatedAt,
		&document.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStorageError("DocumentByID", id, persistence.ErrDocumentNotFound)
		}

		return nil, fmt.Errorf("failed to scan document: %w", err)
	}

	return &document, nil
}

// GetAll returns documents, optionally restricted to one workflow.
func (r *DocumentRepository) GetAll(ctx context.Context, workflowID string) ([]*models.Document, error) {
	query := `
		SELECT
			id
		  , filename
		  , workflow_id
		  , chunk_count
		  , processed
		  , created_at
		  , updated_at
		FROM documents
	`

	var (
		rows *sql.Rows
		err  error
	)

	if workflowID != "" {
		rows, err = r.db.QueryContext(ctx, query+" WHERE workflow_id = $1 ORDER BY created_at DESC", workflowID)
	} else {
		rows, err = r.db.QueryContext(ctx, query+" ORDER BY created_at DESC")
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}

	defer func(ctx context.Context, r *DocumentRepository) {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}(ctx, r)

	documents := make([]*models.Document, 0)

	for rows.Next() {
		var document models.Document

		err := rows.Scan(
			&document.ID,
			&document.Filename,
			&document.WorkflowID,
			&document.ChunkCount,
			&document.Processed,
			&document.CreatedAt,
			&document.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}

		documents = append(documents, &document)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}

	return documents, nil
}

// MarkProcessed records that ingestion finished for a document.
func (r *DocumentRepository) MarkProcessed(ctx context.Context, id string, chunkCount int) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE documents SET processed = true, chunk_count = $2, updated_at = NOW() WHERE id = $1",
		id, chunkCount)
	if err != nil {
		return persistence.NewStorageError("MarkDocumentProcessed", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.NewStorageError("MarkDocumentProcessed", id, persistence.ErrDocumentNotFound)
	}

	return nil
}

// Delete removes a document record; chunks cascade at the database level.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM documents WHERE id = $1", id)
	if err != nil {
		return persistence.NewStorageError("DeleteDocument", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.NewStorageError("DeleteDocument", id, persistence.ErrDocumentNotFound)
	}

	return nil
}
