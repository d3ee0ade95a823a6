package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/genstack/genstack/pkg/models"
	"github.com/genstack/genstack/pkg/persistence"
	"github.com/google/uuid"
)

// ChatRepository handles chat session and message database operations.
type ChatRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewChatRepository creates a new chat repository.
func NewChatRepository(db *sql.DB, logger *slog.Logger) *ChatRepository {
	return &ChatRepository{db: db, logger: logger}
}

// SaveSession inserts a chat session. Sessions are immutable once created.
func (r *ChatRepository) SaveSession(ctx context.Context, session *models.ChatSession) error {
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

	query := `
		INSERT INTO chat_sessions (id, workflow_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query, session.ID, session.WorkflowID, session.CreatedAt)
	if err != nil {
		return persistence.NewStorageError("SaveChatSession", session.ID, err)
	}

	return nil
}

// SessionByID returns a chat session by its ID.
func (r *ChatRepository) SessionByID(ctx context.Context, id string) (*models.ChatSession, error) {
	query := `
		SELECT
			id
		  , workflow_id
		  , created_at
		FROM chat_sessions
		WHERE id = $1
	`

	var session models.ChatSession

	err := r.db.QueryRowContext(ctx, query, id).Scan(&session.ID, &session.WorkflowID, &session.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStorageError("ChatSessionByID", id, persistence.ErrSessionNotFound)
		}

		return nil, fmt.Errorf("failed to scan chat session: %w", err)
	}

	return &session, nil
}

// SessionsByWorkflow returns all sessions of a workflow, newest first.
func (r *ChatRepository) SessionsByWorkflow(ctx context.Context, workflowID string) ([]*models.ChatSession, error) {
	query := `
		SELECT
			id
		  , workflow_id
		  , created_at
		FROM chat_sessions
		WHERE workflow_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat sessions: %w", err)
	}

	defer func(ctx context.Context, r *ChatRepository) {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}(ctx, r)

	sessions := make([]*models.ChatSession, 0)

	for rows.Next() {
		var session models.ChatSession

		err := rows.Scan(&session.ID, &session.WorkflowID, &session.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chat session: %w", err)
		}

		sessions = append(sessions, &session)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating chat sessions: %w", err)
	}

	return sessions, nil
}

// DeleteSession removes a session; its messages cascade.
func (r *ChatRepository) DeleteSession(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM chat_sessions WHERE id = $1", id)
	if err != nil {
		return persistence.NewStorageError("DeleteChatSession", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.NewStorageError("DeleteChatSession", id, persistence.ErrSessionNotFound)
	}

	return nil
}

// SaveMessage inserts one chat turn.
func (r *ChatRepository) SaveMessage(ctx context.Context, message *models.ChatMessage) error {
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

	var metadata []byte

	if message.Metadata != nil {
		encoded, err := json.Marshal(message.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode message metadata: %w", err)
		}

		metadata = encoded
	}

	query := `
		INSERT INTO chat_messages (id, session_id, role, content, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		message.ID,
		message.SessionID,
		message.Role,
		message.Content,
		metadata,
		message.CreatedAt,
	)
	if err != nil {
		return persistence.NewStorageError("SaveChatMessage", message.ID, err)
	}

	return nil
}

// Messages returns the messages of a session in chronological order.
func (r *ChatRepository) Messages(ctx context.Context, sessionID string) ([]*models.ChatMessage, error) {
	query := `
		SELECT
			id
		  , session_id
		  , role
		  , content
		  , metadata
		  , created_at
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat messages: %w", err)
	}

	defer func(ctx context.Context, r *ChatRepository) {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}(ctx, r)

	messages := make([]*models.ChatMessage, 0)

	for rows.Next() {
		var (
			message  models.ChatMessage
			metadata []byte
		)

		err := rows.Scan(
			&message.ID,
			&message.SessionID,
			&message.Role,
			&message.Content,
			&metadata,
			&message.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}

		if len(metadata) > 0 {
			err := json.Unmarshal(metadata, &message.Metadata)
			if err != nil {
				return nil, fmt.Errorf("failed to decode message metadata: %w", err)
			}
		}

		messages = append(messages, &message)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating chat messages: %w", err)
	}

	return messages, nil
}
