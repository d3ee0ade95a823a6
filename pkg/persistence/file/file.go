// Package file provides file-based persistence for workflows, chat history
// and documents. It is intended for development and tests; production
// deployments use the postgresql implementation.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/genstack/genstack/pkg/models"
	"github.com/genstack/genstack/pkg/persistence"
)

const dirPermissions = 0o755

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root         string
	workflowRepo *WorkflowRepository
	chatRepo     *ChatRepository
	documentRepo *DocumentRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:         cleanRoot,
		workflowRepo: NewWorkflowRepository(cleanRoot),
		chatRepo:     NewChatRepository(cleanRoot),
		documentRepo: NewDocumentRepository(cleanRoot),
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	return fp.workflowRepo.GetAll(ctx)
}

func (fp *Persistence) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	return fp.workflowRepo.GetByID(ctx, id)
}

func (fp *Persistence) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	return fp.workflowRepo.Save(ctx, workflow)
}

func (fp *Persistence) DeleteWorkflow(ctx context.Context, id string) error {
	return fp.workflowRepo.Delete(ctx, id)
}

func (fp *Persistence) SaveChatSession(ctx context.Context, session *models.ChatSession) error {
	return fp.chatRepo.SaveSession(ctx, session)
}

func (fp *Persistence) ChatSessionByID(ctx context.Context, id string) (*models.ChatSession, error) {
	return fp.chatRepo.SessionByID(ctx, id)
}

func (fp *Persistence) ChatSessionsByWorkflow(ctx context.Context, workflowID string) ([]*models.ChatSession, error) {
	return fp.chatRepo.SessionsByWorkflow(ctx, workflowID)
}

func (fp *Persistence) DeleteChatSession(ctx context.Context, id string) error {
	return fp.chatRepo.DeleteSession(ctx, id)
}

func (fp *Persistence) SaveChatMessage(ctx context.Context, message *models.ChatMessage) error {
	return fp.chatRepo.SaveMessage(ctx, message)
}

func (fp *Persistence) ChatMessages(ctx context.Context, sessionID string) ([]*models.ChatMessage, error) {
	return fp.chatRepo.Messages(ctx, sessionID)
}

func (fp *Persistence) SaveDocument(ctx context.Context, document *models.Document) error {
	return fp.documentRepo.Save(ctx, document)
}

func (fp *Persistence) DocumentByID(ctx context.Context, id string) (*models.Document, error) {
	return fp.documentRepo.GetByID(ctx, id)
}

func (fp *Persistence) Documents(ctx context.Context, workflowID string) ([]*models.Document, error) {
	return fp.documentRepo.GetAll(ctx, workflowID)
}

func (fp *Persistence) MarkDocumentProcessed(ctx context.Context, id string, chunkCount int) error {
	return fp.documentRepo.MarkProcessed(ctx, id, chunkCount)
}

func (fp *Persistence) DeleteDocument(ctx context.Context, id string) error {
	return fp.documentRepo.Delete(ctx, id)
}

// Compile-time interface check.
var _ persistence.Persistence = (*Persistence)(nil)

func writeJSON(dir, id string, record any) error {
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", id, err)
	}

	path := filepath.Join(dir, id+".json")

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}

func readJSON(dir, id string, record any) error {
	path := filepath.Join(dir, id+".json")

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, record); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}

	return nil
}

func listJSON[T any](dir string) ([]*T, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*T{}, nil
		}

		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	records := make([]*T, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		record := new(T)

		id := strings.TrimSuffix(entry.Name(), ".json")
		if err := readJSON(dir, id, record); err != nil {
			return nil, err
		}

		records = append(records, record)
	}

	return records, nil
}
