package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/genstack/genstack/pkg/models"
	"github.com/genstack/genstack/pkg/persistence"
	"github.com/genstack/genstack/pkg/workflow"
)

// DefaultExecutionTimeout bounds one chat execution's wall-clock time.
const DefaultExecutionTimeout = 2 * time.Minute

// Runner executes a validated graph. Satisfied by *workflow.Engine.
type Runner interface {
	Run(ctx context.Context, g *models.Graph, req workflow.RunRequest) (*models.ExecutionResult, error)
}

// Chat drives one chat turn: it loads the workflow, executes its graph and
// persists the conversation history.
type Chat struct {
	persistence persistence.Persistence
	runner      Runner
	logger      *slog.Logger
	timeout     time.Duration
}

// NewChat creates a chat service.
func NewChat(p persistence.Persistence, runner Runner, logger *slog.Logger) *Chat {
	return &Chat{
		persistence: p,
		runner:      runner,
		logger:      logger,
		timeout:     DefaultExecutionTimeout,
	}
}

// ChatRequest is one chat turn against a workflow. An empty SessionID starts
// a new session.
type ChatRequest struct {
	WorkflowID string `validate:"required"`
	SessionID  string
	Query      string `validate:"required"`
}

// ChatResponse is the outcome of a successful chat turn.
type ChatResponse struct {
	SessionID string             `json:"session_id"`
	Response  string             `json:"response"`
	Sources   []string           `json:"sources"`
	Elapsed   time.Duration      `json:"elapsed"`
	Trace     []models.NodeTrace `json:"trace"`
}

// Execute runs one chat turn. History is only written after the execution
// succeeds: a failed run leaves the session exactly as it was.
func (c *Chat) Execute(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if req.Query == "" {
		return nil, NewValidationError("Chat", "query_required", "query is required", ErrQueryRequired)
	}

	record, err := c.persistence.WorkflowByID(ctx, req.WorkflowID)
	if err != nil {
		return nil, err
	}

	graph, err := models.ParseDefinition(record.Definition)
	if err != nil {
		return nil, NewValidationError("Chat", "invalid_definition", err.Error(), ErrInvalidRequest)
	}

	session, err := c.resolveSession(ctx, req)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.runner.Run(runCtx, graph, workflow.RunRequest{
		Query:      req.Query,
		WorkflowID: req.WorkflowID,
	})
	if err != nil {
		var validationErr *workflow.ValidationFailedError
		if errors.As(err, &validationErr) {
			return nil, NewValidationError("Chat", "workflow_invalid", validationErr.Error(), ErrInvalidRequest)
		}

		c.logger.ErrorContext(ctx, "chat execution failed",
			"workflow_id", req.WorkflowID, "session_id", session.ID, "error", err)

		return nil, err
	}

	if err := c.saveTurn(ctx, session.ID, req.Query, result); err != nil {
		return nil, err
	}

	return &ChatResponse{
		SessionID: session.ID,
		Response:  result.FinalText,
		Sources:   result.Sources,
		Elapsed:   result.Elapsed,
		Trace:     result.Trace,
	}, nil
}

// Sessions returns a workflow's chat sessions.
func (c *Chat) Sessions(ctx context.Context, workflowID string) ([]*models.ChatSession, error) {
	return c.persistence.ChatSessionsByWorkflow(ctx, workflowID)
}

// Session returns one chat session.
func (c *Chat) Session(ctx context.Context, sessionID string) (*models.ChatSession, error) {
	return c.persistence.ChatSessionByID(ctx, sessionID)
}

// DeleteSession removes a session and its message history.
func (c *Chat) DeleteSession(ctx context.Context, sessionID string) error {
	return c.persistence.DeleteChatSession(ctx, sessionID)
}

// Messages returns a session's history in chronological order.
func (c *Chat) Messages(ctx context.Context, sessionID string) ([]*models.ChatMessage, error) {
	if _, err := c.persistence.ChatSessionByID(ctx, sessionID); err != nil {
		return nil, err
	}

	return c.persistence.ChatMessages(ctx, sessionID)
}

func (c *Chat) resolveSession(ctx context.Context, req ChatRequest) (*models.ChatSession, error) {
	if req.SessionID != "" {
		session, err := c.persistence.ChatSessionByID(ctx, req.SessionID)
		if err != nil {
			return nil, err
		}

		if session.WorkflowID != req.WorkflowID {
			return nil, NewValidationError("Chat", "session_mismatch",
				"session belongs to a different workflow", ErrInvalidRequest)
		}

		return session, nil
	}

	session := &models.ChatSession{WorkflowID: req.WorkflowID}
	if err := c.persistence.SaveChatSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create chat session: %w", err)
	}

	return session, nil
}

func (c *Chat) saveTurn(ctx context.Context, sessionID, query string, result *models.ExecutionResult) error {
	userMessage := &models.ChatMessage{
		SessionID: sessionID,
		Role:      models.RoleUser,
		Content:   query,
	}

	if err := c.persistence.SaveChatMessage(ctx, userMessage); err != nil {
		return fmt.Errorf("failed to save user message: %w", err)
	}

	assistantMessage := &models.ChatMessage{
		SessionID: sessionID,
		Role:      models.RoleAssistant,
		Content:   result.FinalText,
		Metadata: map[string]any{
			"sources":    result.Sources,
			"trace":      result.Trace,
			"elapsed_ms": result.Elapsed.Milliseconds(),
		},
	}

	if err := c.persistence.SaveChatMessage(ctx, assistantMessage); err != nil {
		return fmt.Errorf("failed to save assistant message: %w", err)
	}

	return nil
}
