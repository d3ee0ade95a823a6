// Package postgresql provides PostgreSQL persistence for workflows, chat
// history and documents.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	// PostgreSQL driver registration.
	_ "github.com/lib/pq"

	"github.com/genstack/genstack/pkg/models"
	"github.com/genstack/genstack/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db           *sql.DB
	logger       *slog.Logger
	workflowRepo *WorkflowRepository
	chatRepo     *ChatRepository
	documentRepo *DocumentRepository
}

// NewPersistence creates a new PostgreSQL persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	postgres := &Persistence{
		db:           database,
		logger:       logger,
		workflowRepo: NewWorkflowRepository(database, logger),
		chatRepo:     NewChatRepository(database, logger),
		documentRepo: NewDocumentRepository(database, logger),
	}

	// Run migrations on initialization
	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return postgres, nil
}

// DB exposes the underlying connection pool for collaborators that share it,
// such as the vector store.
func (p *Persistence) DB() *sql.DB {
	return p.db
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Workflows returns all workflows from the database.
func (p *Persistence) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	return p.workflowRepo.GetAll(ctx)
}

// WorkflowByID returns a workflow by its ID.
func (p *Persistence) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	return p.workflowRepo.GetByID(ctx, id)
}

// SaveWorkflow saves a workflow to the database.
func (p *Persistence) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	return p.workflowRepo.Save(ctx, workflow)
}

// DeleteWorkflow soft deletes a workflow by setting deleted_at timestamp.
func (p *Persistence) DeleteWorkflow(ctx context.Context, id string) error {
	return p.workflowRepo.Delete(ctx, id)
}

// SaveChatSession persists a chat session.
func (p *Persistence) SaveChatSession(ctx context.Context, session *models.ChatSession) error {
	return p.chatRepo.SaveSession(ctx, session)
}

// ChatSessionByID returns a chat session by its ID.
func (p *Persistence) ChatSessionByID(ctx context.Context, id string) (*models.ChatSession, error) {
	return p.chatRepo.SessionByID(ctx, id)
}

// ChatSessionsByWorkflow returns all chat sessions for a workflow.
func (p *Persistence) ChatSessionsByWorkflow(ctx context.Context, workflowID string) ([]*models.ChatSession, error) {
	return p.chatRepo.SessionsByWorkflow(ctx, workflowID)
}

// DeleteChatSession removes a chat session and its message history.
func (p *Persistence) DeleteChatSession(ctx context.Context, id string) error {
	return p.chatRepo.DeleteSession(ctx, id)
}

// SaveChatMessage persists one chat turn.
func (p *Persistence) SaveChatMessage(ctx context.Context, message *models.ChatMessage) error {
	return p.chatRepo.SaveMessage(ctx, message)
}

// ChatMessages returns the messages of a session in chronological order.
func (p *Persistence) ChatMessages(ctx context.Context, sessionID string) ([]*models.ChatMessage, error) {
	return p.chatRepo.Messages(ctx, sessionID)
}

// SaveDocument persists a document record.
func (p *Persistence) SaveDocument(ctx context.Context, document *models.Document) error {
	return p.documentRepo.Save(ctx, document)
}

// DocumentByID returns a document by its ID.
func (p *Persistence) DocumentByID(ctx context.Context, id string) (*models.Document, error) {
	return p.documentRepo.GetByID(ctx, id)
}

// Documents returns documents, optionally filtered by workflow.
func (p *Persistence) Documents(ctx context.Context, workflowID string) ([]*models.Document, error) {
	return p.documentRepo.GetAll(ctx, workflowID)
}

// MarkDocumentProcessed records that ingestion finished for a document.
func (p *Persistence) MarkDocumentProcessed(ctx context.Context, id string, chunkCount int) error {
	return p.documentRepo.MarkProcessed(ctx, id, chunkCount)
}

// DeleteDocument removes a document record.
func (p *Persistence) DeleteDocument(ctx context.Context, id string) error {
	return p.documentRepo.Delete(ctx, id)
}
