package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/genstack/genstack/pkg/documents"
	"github.com/genstack/genstack/pkg/models"
	"github.com/genstack/genstack/pkg/persistence"
)

// Document handles document upload and lookup operations.
type Document struct {
	persistence persistence.Persistence
	ingester    *documents.Ingester
}

// NewDocument creates a document service.
func NewDocument(p persistence.Persistence, ingester *documents.Ingester) *Document {
	return &Document{
		persistence: p,
		ingester:    ingester,
	}
}

// Upload ingests one uploaded file, optionally attached to a workflow.
func (d *Document) Upload(ctx context.Context, filename string, data []byte, workflowID string) (*models.Document, error) {
	if len(data) == 0 {
		return nil, NewValidationError("UploadDocument", "empty_file", "uploaded file is empty", ErrInvalidRequest)
	}

	var scope *string

	if workflowID != "" {
		if _, err := d.persistence.WorkflowByID(ctx, workflowID); err != nil {
			return nil, err
		}

		scope = &workflowID
	}

	document, err := d.ingester.Ingest(ctx, filename, data, scope)
	if err != nil {
		if isIngestValidationError(err) {
			return nil, NewValidationError("UploadDocument", "unprocessable_file", err.Error(), ErrInvalidRequest)
		}

		return nil, fmt.Errorf("failed to ingest document: %w", err)
	}

	return document, nil
}

// List returns documents, optionally filtered by workflow.
func (d *Document) List(ctx context.Context, workflowID string) ([]*models.Document, error) {
	return d.persistence.Documents(ctx, workflowID)
}

// Get returns one document by ID.
func (d *Document) Get(ctx context.Context, id string) (*models.Document, error) {
	return d.persistence.DocumentByID(ctx, id)
}

// Delete removes a document and its stored chunks.
func (d *Document) Delete(ctx context.Context, id string) error {
	if _, err := d.persistence.DocumentByID(ctx, id); err != nil {
		return err
	}

	return d.ingester.Delete(ctx, id)
}

func isIngestValidationError(err error) bool {
	return errors.Is(err, documents.ErrUnsupportedFormat) || errors.Is(err, documents.ErrEmptyDocument)
}
