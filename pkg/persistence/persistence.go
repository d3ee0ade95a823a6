// Package persistence provides the data storage abstraction layer for
// workflows, chat history and documents.
package persistence

import (
	"context"

	"github.com/genstack/genstack/pkg/models"
)

type Persistence interface {
	Workflows(ctx context.Context) ([]*models.Workflow, error)
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) error

	SaveChatSession(ctx context.Context, session *models.ChatSession) error
	ChatSessionByID(ctx context.Context, id string) (*models.ChatSession, error)
	ChatSessionsByWorkflow(ctx context.Context, workflowID string) ([]*models.ChatSession, error)
	DeleteChatSession(ctx context.Context, id string) error
	SaveChatMessage(ctx context.Context, message *models.ChatMessage) error
	ChatMessages(ctx context.Context, sessionID string) ([]*models.ChatMessage, error)

	SaveDocument(ctx context.Context, document *models.Document) error
	DocumentByID(ctx context.Context, id string) (*models.Document, error)
	Documents(ctx context.Context, workflowID string) ([]*models.Document, error)
	MarkDocumentProcessed(ctx context.Context, id string, chunkCount int) error
	DeleteDocument(ctx context.Context, id string) error

	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
