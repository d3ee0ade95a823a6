package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/genstack/genstack/pkg/models"
	"github.com/genstack/genstack/pkg/persistence"
	"github.com/google/uuid"
)

// DocumentRepository handles document metadata file operations.
type DocumentRepository struct {
	root string
}

// NewDocumentRepository creates a new document repository.
func NewDocumentRepository(root string) *DocumentRepository {
	return &DocumentRepository{root: root}
}

func (dr *DocumentRepository) dir() string {
	return filepath.Join(dr.root, "documents")
}

// Save writes a document record to disk.
func (dr *DocumentRepository) Save(_ context.Context, document *models.Document) error {
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

	return writeJSON(dr.dir(), document.ID, document)
}

// GetByID returns a document by its ID.
func (dr *DocumentRepository) GetByID(_ context.Context, id string) (*models.Document, error) {
	var document models.Document

	if err := readJSON(dr.dir(), id, &document); err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewStorageError("DocumentByID", id, persistence.ErrDocumentNotFound)
		}

		return nil, err
	}

	return &document, nil
}

// GetAll returns documents, optionally restricted to one workflow.
func (dr *DocumentRepository) GetAll(_ context.Context, workflowID string) ([]*models.Document, error) {
	all, err := listJSON[models.Document](dr.dir())
	if err != nil {
		return nil, err
	}

	documents := make([]*models.Document, 0, len(all))

	for _, document := range all {
		if workflowID != "" && (document.WorkflowID == nil || *document.WorkflowID != workflowID) {
			continue
		}

		documents = append(documents, document)
	}

	sort.Slice(documents, func(i, j int) bool {
		return documents[i].CreatedAt.After(documents[j].CreatedAt)
	})

	return documents, nil
}

// MarkProcessed records that ingestion finished for a document.
func (dr *DocumentRepository) MarkProcessed(ctx context.Context, id string, chunkCount int) error {
	document, err := dr.GetByID(ctx, id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	document.Processed = true
	document.ChunkCount = chunkCount
	document.UpdatedAt = &now

	return writeJSON(dr.dir(), document.ID, document)
}

// Delete removes a document record.
func (dr *DocumentRepository) Delete(_ context.Context, id string) error {
	err := os.Remove(filepath.Join(dr.dir(), id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return persistence.NewStorageError("DeleteDocument", id, persistence.ErrDocumentNotFound)
		}

		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}

	return nil
}
