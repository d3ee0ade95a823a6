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

// ChatRepository handles chat session and message file operations.
type ChatRepository struct {
	root string
}

// NewChatRepository creates a new chat repository.
func NewChatRepository(root string) *ChatRepository {
	return &ChatRepository{root: root}
}

func (cr *ChatRepository) sessionDir() string {
	return filepath.Join(cr.root, "chat_sessions")
}

func (cr *ChatRepository) messageDir(sessionID string) string {
	return filepath.Join(cr.root, "chat_messages", sessionID)
}

// SaveSession writes a chat session to disk.
func (cr *ChatRepository) SaveSession(_ context.Context, session *models.ChatSession) error {
	if session.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate session ID: %w", err)
		}

		session.ID = id.String()
	}

	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	return writeJSON(cr.sessionDir(), session.ID, session)
}

// SessionByID returns a chat session by its ID.
func (cr *ChatRepository) SessionByID(_ context.Context, id string) (*models.ChatSession, error) {
	var session models.ChatSession

	if err := readJSON(cr.sessionDir(), id, &session); err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewStorageError("ChatSessionByID", id, persistence.ErrSessionNotFound)
		}

		return nil, err
	}

	return &session, nil
}

// SessionsByWorkflow returns all sessions of a workflow, newest first.
func (cr *ChatRepository) SessionsByWorkflow(_ context.Context, workflowID string) ([]*models.ChatSession, error) {
	all, err := listJSON[models.ChatSession](cr.sessionDir())
	if err != nil {
		return nil, err
	}

	sessions := make([]*models.ChatSession, 0, len(all))

	for _, session := range all {
		if session.WorkflowID == workflowID {
			sessions = append(sessions, session)
		}
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})

	return sessions, nil
}

// DeleteSession removes a session file and its message directory.
func (cr *ChatRepository) DeleteSession(_ context.Context, id string) error {
	err := os.Remove(filepath.Join(cr.sessionDir(), id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return persistence.NewStorageError("DeleteChatSession", id, persistence.ErrSessionNotFound)
		}

		return fmt.Errorf("failed to delete chat session %s: %w", id, err)
	}

	if err := os.RemoveAll(cr.messageDir(id)); err != nil {
		return fmt.Errorf("failed to delete messages of session %s: %w", id, err)
	}

	return nil
}

// SaveMessage writes one chat turn to disk under its session's directory.
func (cr *ChatRepository) SaveMessage(_ context.Context, message *models.ChatMessage) error {
	if message.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate message ID: %w", err)
		}

		message.ID = id.String()
	}

	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	return writeJSON(cr.messageDir(message.SessionID), message.ID, message)
}

// Messages returns the messages of a session in chronological order.
func (cr *ChatRepository) Messages(_ context.Context, sessionID string) ([]*models.ChatMessage, error) {
	messages, err := listJSON[models.ChatMessage](cr.messageDir(sessionID))
	if err != nil {
		return nil, err
	}

	sort.Slice(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})

	return messages, nil
}
