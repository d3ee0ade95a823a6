package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/genstack/genstack/pkg/models"
	"github.com/genstack/genstack/pkg/persistence"
	"github.com/genstack/genstack/pkg/persistence/file"
	"github.com/genstack/genstack/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	result      *models.ExecutionResult
	err         error
	calls       int
	lastRequest workflow.RunRequest
	sawDeadline bool
}

func (f *fakeRunner) Run(ctx context.Context, _ *models.Graph, req workflow.RunRequest) (*models.ExecutionResult, error) {
	f.calls++
	f.lastRequest = req
	_, f.sawDeadline = ctx.Deadline()

	if f.err != nil {
		return &models.ExecutionResult{}, f.err
	}

	return f.result, nil
}

func newChatService(t *testing.T, runner *fakeRunner) (*Chat, persistence.Persistence, string) {
	t.Helper()

	p := file.NewPersistence(t.TempDir())
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	record := &models.Workflow{
		Name:       "chat wf",
		Definition: json.RawMessage(validDefinition),
	}
	require.NoError(t, p.SaveWorkflow(context.Background(), record))

	return NewChat(p, runner, logger), p, record.ID
}

func TestChat_Execute(t *testing.T) {
	runner := &fakeRunner{result: &models.ExecutionResult{
		FinalText: "the answer",
		Sources:   []string{"doc.pdf"},
		Elapsed:   42 * time.Millisecond,
		Trace:     []models.NodeTrace{{NodeID: "query-1", Succeeded: true}},
	}}

	svc, p, workflowID := newChatService(t, runner)

	resp, err := svc.Execute(context.Background(), ChatRequest{
		WorkflowID: workflowID,
		Query:      "what is go",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, "the answer", resp.Response)
	assert.Equal(t, []string{"doc.pdf"}, resp.Sources)

	assert.Equal(t, "what is go", runner.lastRequest.Query)
	assert.Equal(t, workflowID, runner.lastRequest.WorkflowID)
	assert.True(t, runner.sawDeadline)

	messages, err := p.ChatMessages(context.Background(), resp.SessionID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, models.RoleUser, messages[0].Role)
	assert.Equal(t, "what is go", messages[0].Content)
	assert.Equal(t, models.RoleAssistant, messages[1].Role)
	assert.Equal(t, "the answer", messages[1].Content)
	assert.Equal(t, []any{"doc.pdf"}, messages[1].Metadata["sources"])
}

func TestChat_Execute_ReusesSession(t *testing.T) {
	runner := &fakeRunner{result: &models.ExecutionResult{FinalText: "a", Sources: []string{}}}
	svc, _, workflowID := newChatService(t, runner)

	first, err := svc.Execute(context.Background(), ChatRequest{WorkflowID: workflowID, Query: "one"})
	require.NoError(t, err)

	second, err := svc.Execute(context.Background(), ChatRequest{
		WorkflowID: workflowID,
		SessionID:  first.SessionID,
		Query:      "two",
	})
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)

	messages, err := svc.Messages(context.Background(), first.SessionID)
	require.NoError(t, err)
	assert.Len(t, messages, 4)
}

func TestChat_Execute_SessionFromOtherWorkflowRejected(t *testing.T) {
	runner := &fakeRunner{result: &models.ExecutionResult{FinalText: "a"}}
	svc, p, workflowID := newChatService(t, runner)

	foreign := &models.ChatSession{WorkflowID: "other-wf"}
	require.NoError(t, p.SaveChatSession(context.Background(), foreign))

	_, err := svc.Execute(context.Background(), ChatRequest{
		WorkflowID: workflowID,
		SessionID:  foreign.ID,
		Query:      "q",
	})

	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Zero(t, runner.calls)
}

func TestChat_Execute_FailureLeavesNoHistory(t *testing.T) {
	runner := &fakeRunner{err: errors.New("node kb-1 (knowledge_base): knowledge store unavailable")}
	svc, _, workflowID := newChatService(t, runner)

	resp, err := svc.Execute(context.Background(), ChatRequest{WorkflowID: workflowID, Query: "q"})

	require.Error(t, err)
	assert.Nil(t, resp)

	sessions, listErr := svc.Sessions(context.Background(), workflowID)
	require.NoError(t, listErr)
	require.Len(t, sessions, 1)

	messages, listErr := svc.Messages(context.Background(), sessions[0].ID)
	require.NoError(t, listErr)
	assert.Empty(t, messages)
}

func TestChat_Execute_RequiresQuery(t *testing.T) {
	runner := &fakeRunner{}
	svc, _, workflowID := newChatService(t, runner)

	_, err := svc.Execute(context.Background(), ChatRequest{WorkflowID: workflowID})

	assert.ErrorIs(t, err, ErrQueryRequired)
	assert.Zero(t, runner.calls)
}

func TestChat_Execute_WorkflowNotFound(t *testing.T) {
	svc, _, _ := newChatService(t, &fakeRunner{})

	_, err := svc.Execute(context.Background(), ChatRequest{WorkflowID: "missing", Query: "q"})

	assert.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestChat_Execute_ValidationFailureMappedToClientError(t *testing.T) {
	runner := &fakeRunner{err: &workflow.ValidationFailedError{Errors: []workflow.ValidationError{{
		Code:    workflow.CodeMissingOrAmbiguousExit,
		Message: "expected exactly one exit node, found 0",
	}}}}
	svc, _, workflowID := newChatService(t, runner)

	_, err := svc.Execute(context.Background(), ChatRequest{WorkflowID: workflowID, Query: "q"})

	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.True(t, IsValidationError(err))
}

func TestChat_SessionLifecycle(t *testing.T) {
	runner := &fakeRunner{result: &models.ExecutionResult{FinalText: "a", Sources: []string{}}}
	svc, _, workflowID := newChatService(t, runner)

	resp, err := svc.Execute(context.Background(), ChatRequest{WorkflowID: workflowID, Query: "one"})
	require.NoError(t, err)

	session, err := svc.Session(context.Background(), resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, workflowID, session.WorkflowID)

	require.NoError(t, svc.DeleteSession(context.Background(), resp.SessionID))

	_, err = svc.Session(context.Background(), resp.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = svc.Messages(context.Background(), resp.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestChat_DeleteSession_NotFound(t *testing.T) {
	svc, _, _ := newChatService(t, &fakeRunner{})

	err := svc.DeleteSession(context.Background(), "missing")

	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestChat_Messages_UnknownSession(t *testing.T) {
	svc, _, _ := newChatService(t, &fakeRunner{})

	_, err := svc.Messages(context.Background(), "missing")

	assert.ErrorIs(t, err, ErrSessionNotFound)
}
