package workflow

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/genstack/genstack/pkg/components"
	"github.com/genstack/genstack/pkg/eventbus"
	"github.com/genstack/genstack/pkg/events"
	"github.com/genstack/genstack/pkg/generation"
	"github.com/genstack/genstack/pkg/knowledge"
	"github.com/genstack/genstack/pkg/mocks"
	"github.com/genstack/genstack/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu          sync.Mutex
	passages    []models.Passage
	embedErrs   []error
	searchErrs  []error
	embedCalls  int
	searchCalls int
	lastOpts    knowledge.SearchOptions
}

func (f *fakeStore) Embed(_ context.Context, _ string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.embedCalls++
	if len(f.embedErrs) > 0 {
		err := f.embedErrs[0]
		f.embedErrs = f.embedErrs[1:]

		if err != nil {
			return nil, err
		}
	}

	return []float32{0.1, 0.2, 0.3}, nil
}

func (f *fakeStore) Search(_ context.Context, _ []float32, opts knowledge.SearchOptions) ([]models.Passage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.searchCalls++
	f.lastOpts = opts

	if len(f.searchErrs) > 0 {
		err := f.searchErrs[0]
		f.searchErrs = f.searchErrs[1:]

		if err != nil {
			return nil, err
		}
	}

	return f.passages, nil
}

type fakeClient struct {
	mu      sync.Mutex
	text    string
	errs    []error
	calls   int
	prompts []string
	models  []string
	temps   []float64
}

func (f *fakeClient) Generate(_ context.Context, prompt, modelName string, temperature float64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.prompts = append(f.prompts, prompt)
	f.models = append(f.models, modelName)
	f.temps = append(f.temps, temperature)

	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]

		if err != nil {
			return "", err
		}
	}

	return f.text, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func newTestEngine(store *fakeStore, client *fakeClient) *Engine {
	return NewEngine(store, client, testLogger(), WithRetryBackoff(time.Millisecond))
}

func TestEngine_Run_FullChain(t *testing.T) {
	store := &fakeStore{passages: []models.Passage{
		{Text: "Go is a statically typed language.", SourceID: "go-intro.pdf", Score: 0.93},
		{Text: "Goroutines are lightweight threads.", SourceID: "go-intro.pdf", Score: 0.88},
		{Text: "Channels synchronize goroutines.", SourceID: "concurrency.md", Score: 0.81},
	}}
	client := &fakeClient{text: "Go is a typed language with built-in concurrency."}

	engine := newTestEngine(store, client)

	result, err := engine.Run(context.Background(), fullChain(t), RunRequest{
		Query:      "what is go",
		WorkflowID: "wf-1",
	})

	require.NoError(t, err)
	assert.Equal(t, "Go is a typed language with built-in concurrency.", result.FinalText)
	assert.Equal(t, []string{"go-intro.pdf", "concurrency.md"}, result.Sources)
	assert.Positive(t, result.Elapsed)

	require.Len(t, result.Trace, 4)
	assert.Equal(t, []string{"query-1", "kb-1", "llm-1", "out-1"}, traceNodeIDs(result.Trace))

	for _, entry := range result.Trace {
		assert.True(t, entry.Succeeded)
		assert.False(t, entry.StartedAt.IsZero())
	}

	// The llm_engine node in fullChain sets temperature 0.2 explicitly.
	require.Len(t, client.temps, 1)
	assert.InDelta(t, 0.2, client.temps[0], 1e-9)
	assert.Equal(t, models.DefaultModelName, client.models[0])
	assert.Contains(t, client.prompts[0], "Context:\nGo is a statically typed language.")
	assert.Contains(t, client.prompts[0], "Question: what is go")

	// Global search: no workflow scoping unless configured.
	assert.Empty(t, store.lastOpts.WorkflowID)
	assert.Equal(t, 5, store.lastOpts.TopK)
}

func TestEngine_Run_InvalidGraphDoesNotExecute(t *testing.T) {
	g := mustGraph(t,
		[]*models.Node{
			{ID: "query-1", Kind: models.KindUserQuery},
			{ID: "llm-1", Kind: models.KindLLMEngine},
		},
		[]models.Edge{{SourceID: "query-1", TargetID: "llm-1"}},
	)

	store := &fakeStore{}
	client := &fakeClient{}
	engine := newTestEngine(store, client)

	result, err := engine.Run(context.Background(), g, RunRequest{Query: "q"})

	assert.Nil(t, result)

	var vErr *ValidationFailedError

	require.ErrorAs(t, err, &vErr)
	require.Len(t, vErr.Errors, 1)
	assert.Equal(t, CodeMissingOrAmbiguousExit, vErr.Errors[0].Code)

	assert.Zero(t, store.embedCalls)
	assert.Zero(t, client.calls)
}

func TestEngine_Run_TransientRetrievalRecovers(t *testing.T) {
	store := &fakeStore{
		embedErrs: []error{
			knowledge.Transient(knowledge.ErrEmbeddingUnavailable),
			knowledge.Transient(knowledge.ErrEmbeddingUnavailable),
		},
		passages: []models.Passage{{Text: "p", SourceID: "doc.txt", Score: 0.5}},
	}
	client := &fakeClient{text: "answer"}
	engine := newTestEngine(store, client)

	result, err := engine.Run(context.Background(), fullChain(t), RunRequest{Query: "q"})

	require.NoError(t, err)
	assert.Equal(t, "answer", result.FinalText)
	assert.Equal(t, 3, store.embedCalls)
	assert.Equal(t, 1, store.searchCalls)
}

func TestEngine_Run_RetrievalBudgetExhausted(t *testing.T) {
	transient := knowledge.Transient(knowledge.ErrSearchUnavailable)
	store := &fakeStore{searchErrs: []error{transient, transient, transient}}
	client := &fakeClient{}
	engine := newTestEngine(store, client)

	result, err := engine.Run(context.Background(), fullChain(t), RunRequest{Query: "q"})

	var execErr *components.ExecutionError

	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "kb-1", execErr.NodeID)
	assert.Equal(t, models.KindKnowledgeBase, execErr.Kind)
	assert.ErrorIs(t, err, components.ErrKnowledgeUnavailable)
	assert.ErrorIs(t, err, knowledge.ErrSearchUnavailable)

	// Two retries on top of the first attempt, then give up. The chain stops
	// at the failing node; generation never runs.
	assert.Equal(t, 3, store.searchCalls)
	assert.Zero(t, client.calls)

	// The partial trace covers the nodes that started, failing node included.
	require.NotNil(t, result)
	require.Len(t, result.Trace, 2)
	assert.Equal(t, []string{"query-1", "kb-1"}, traceNodeIDs(result.Trace))
	assert.True(t, result.Trace[0].Succeeded)
	assert.False(t, result.Trace[1].Succeeded)
	assert.Positive(t, result.Elapsed)
}

func TestEngine_Run_PermanentRetrievalFailureIsNotRetried(t *testing.T) {
	store := &fakeStore{embedErrs: []error{errors.New("dimension mismatch")}}
	client := &fakeClient{}
	engine := newTestEngine(store, client)

	_, err := engine.Run(context.Background(), fullChain(t), RunRequest{Query: "q"})

	require.ErrorIs(t, err, components.ErrKnowledgeUnavailable)
	assert.Equal(t, 1, store.embedCalls)
}

func TestEngine_Run_InvalidModelFailsImmediately(t *testing.T) {
	store := &fakeStore{}
	client := &fakeClient{errs: []error{generation.ErrInvalidModel}}
	engine := newTestEngine(store, client)

	result, err := engine.Run(context.Background(), fullChain(t), RunRequest{Query: "q"})

	var execErr *components.ExecutionError

	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "llm-1", execErr.NodeID)
	assert.ErrorIs(t, err, components.ErrGenerationRejected)
	assert.ErrorIs(t, err, generation.ErrInvalidModel)

	// No retry on a permanent rejection.
	assert.Equal(t, 1, client.calls)

	require.Len(t, result.Trace, 3)
	assert.False(t, result.Trace[2].Succeeded)
}

func TestEngine_Run_RateLimitRetriedOnce(t *testing.T) {
	store := &fakeStore{}
	client := &fakeClient{text: "recovered", errs: []error{generation.ErrRateLimited}}
	engine := newTestEngine(store, client)

	result, err := engine.Run(context.Background(), fullChain(t), RunRequest{Query: "q"})

	require.NoError(t, err)
	assert.Equal(t, "recovered", result.FinalText)
	assert.Equal(t, 2, client.calls)
}

func TestEngine_Run_GenerationRecoversOnThirdAttempt(t *testing.T) {
	store := &fakeStore{}
	client := &fakeClient{
		text: "recovered",
		errs: []error{generation.ErrUnavailable, generation.ErrUnavailable},
	}

	engine := NewEngine(store, client, testLogger(),
		WithRetryBackoff(time.Millisecond), WithRetryBudgets(2, 2))

	result, err := engine.Run(context.Background(), fullChain(t), RunRequest{Query: "What is AI?"})

	require.NoError(t, err)
	assert.Equal(t, "recovered", result.FinalText)
	assert.Equal(t, 3, client.calls)

	// All attempts fold into the one llm_engine trace entry.
	require.Len(t, result.Trace, 4)
	llmEntry := result.Trace[2]
	assert.Equal(t, "llm-1", llmEntry.NodeID)
	assert.True(t, llmEntry.Succeeded)
	assert.GreaterOrEqual(t, llmEntry.Duration, 2*time.Millisecond)
}

func TestEngine_Run_MinimalChainProducesEmptyResult(t *testing.T) {
	g := mustGraph(t,
		[]*models.Node{
			{ID: "query-1", Kind: models.KindUserQuery},
			{ID: "out-1", Kind: models.KindOutput},
		},
		[]models.Edge{{SourceID: "query-1", TargetID: "out-1"}},
	)

	store := &fakeStore{}
	client := &fakeClient{}
	engine := newTestEngine(store, client)

	result, err := engine.Run(context.Background(), g, RunRequest{Query: "anything"})

	require.NoError(t, err)
	assert.Equal(t, components.EmptyResult, result.FinalText)
	assert.Empty(t, result.Sources)
	assert.NotNil(t, result.Sources)
	require.Len(t, result.Trace, 2)
	assert.Zero(t, store.embedCalls)
	assert.Zero(t, client.calls)
}

func TestEngine_Run_ConfiguredQueryUsedWhenCallerOmitsOne(t *testing.T) {
	g := mustGraph(t,
		[]*models.Node{
			{ID: "query-1", Kind: models.KindUserQuery, Config: map[string]any{"query": "configured question"}},
			{ID: "llm-1", Kind: models.KindLLMEngine},
			{ID: "out-1", Kind: models.KindOutput},
		},
		[]models.Edge{
			{SourceID: "query-1", TargetID: "llm-1"},
			{SourceID: "llm-1", TargetID: "out-1"},
		},
	)

	store := &fakeStore{}
	client := &fakeClient{text: "ok"}
	engine := newTestEngine(store, client)

	_, err := engine.Run(context.Background(), g, RunRequest{})

	require.NoError(t, err)
	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "Question: configured question")
}

func TestEngine_Run_HideSources(t *testing.T) {
	g := mustGraph(t,
		[]*models.Node{
			{ID: "query-1", Kind: models.KindUserQuery},
			{ID: "kb-1", Kind: models.KindKnowledgeBase},
			{ID: "llm-1", Kind: models.KindLLMEngine},
			{ID: "out-1", Kind: models.KindOutput, Config: map[string]any{"show_sources": false}},
		},
		[]models.Edge{
			{SourceID: "query-1", TargetID: "kb-1"},
			{SourceID: "kb-1", TargetID: "llm-1"},
			{SourceID: "llm-1", TargetID: "out-1"},
		},
	)

	store := &fakeStore{passages: []models.Passage{{Text: "p", SourceID: "doc.txt", Score: 0.9}}}
	client := &fakeClient{text: "answer"}
	engine := newTestEngine(store, client)

	result, err := engine.Run(context.Background(), g, RunRequest{Query: "q"})

	require.NoError(t, err)
	assert.Equal(t, "answer", result.FinalText)
	assert.Empty(t, result.Sources)
	assert.NotNil(t, result.Sources)
}

func TestEngine_Run_ScopedSearchPassesWorkflowID(t *testing.T) {
	g := mustGraph(t,
		[]*models.Node{
			{ID: "query-1", Kind: models.KindUserQuery},
			{ID: "kb-1", Kind: models.KindKnowledgeBase, Config: map[string]any{"scope_to_workflow": true}},
			{ID: "out-1", Kind: models.KindOutput},
		},
		[]models.Edge{
			{SourceID: "query-1", TargetID: "kb-1"},
			{SourceID: "kb-1", TargetID: "out-1"},
		},
	)

	store := &fakeStore{}
	engine := newTestEngine(store, &fakeClient{})

	_, err := engine.Run(context.Background(), g, RunRequest{Query: "q", WorkflowID: "wf-42"})

	require.NoError(t, err)
	assert.Equal(t, "wf-42", store.lastOpts.WorkflowID)
	assert.Equal(t, models.DefaultTopK, store.lastOpts.TopK)
}

func TestEngine_Run_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &fakeStore{}
	client := &fakeClient{}
	engine := newTestEngine(store, client)

	result, err := engine.Run(ctx, fullChain(t), RunRequest{Query: "q"})

	var execErr *components.ExecutionError

	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "query-1", execErr.NodeID)
	assert.ErrorIs(t, err, components.ErrCancelled)

	// No node started, so the trace is empty but the result still reports
	// elapsed time.
	require.NotNil(t, result)
	assert.Empty(t, result.Trace)
	assert.Zero(t, store.embedCalls)
}

func TestEngine_Run_DeadlineStopsBetweenNodes(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	engine := newTestEngine(&fakeStore{}, &fakeClient{})

	result, err := engine.Run(ctx, fullChain(t), RunRequest{Query: "q"})

	require.ErrorIs(t, err, components.ErrDeadlineExceeded)
	require.NotNil(t, result)
	assert.Empty(t, result.Trace)
}

func TestEngine_Run_ConcurrentExecutionsShareOneEngine(t *testing.T) {
	store := &fakeStore{passages: []models.Passage{{Text: "p", SourceID: "s", Score: 1}}}
	client := &fakeClient{text: "answer"}
	engine := newTestEngine(store, client)

	g := fullChain(t)
	done := make(chan error, 8)

	for range 8 {
		go func() {
			_, err := engine.Run(context.Background(), g, RunRequest{Query: "q"})
			done <- err
		}()
	}

	for range 8 {
		assert.NoError(t, <-done)
	}
}

func TestEngine_Run_PublishesLifecycleEvents(t *testing.T) {
	store := &fakeStore{passages: []models.Passage{{Text: "p", SourceID: "s.pdf", Score: 0.9}}}
	client := &fakeClient{text: "answer"}

	bus := &mocks.MockEventBus{}

	var published []events.EventType

	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			event, ok := args.Get(2).(eventbus.Event)
			require.True(t, ok)

			published = append(published, event.GetType())
		}).
		Return(nil)

	engine := NewEngine(store, client, testLogger(),
		WithRetryBackoff(time.Millisecond), WithEventBus(bus))

	_, err := engine.Run(context.Background(), fullChain(t), RunRequest{Query: "q", WorkflowID: "wf-1"})
	require.NoError(t, err)

	// One started event, one per node, one finished event.
	require.Len(t, published, 6)
	assert.Equal(t, events.ExecutionStartedEvent, published[0])
	assert.Equal(t, events.ExecutionFinishedEvent, published[5])

	for _, eventType := range published[1:5] {
		assert.Equal(t, events.NodeFinishedEvent, eventType)
	}
}

func TestEngine_Run_FailurePublishesExecutionFailed(t *testing.T) {
	store := &fakeStore{embedErrs: []error{errors.New("bad input")}}
	client := &fakeClient{}

	bus := &mocks.MockEventBus{}

	var published []events.EventType

	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			event, ok := args.Get(2).(eventbus.Event)
			require.True(t, ok)

			published = append(published, event.GetType())
		}).
		Return(nil)

	engine := NewEngine(store, client, testLogger(),
		WithRetryBackoff(time.Millisecond), WithEventBus(bus))

	_, err := engine.Run(context.Background(), fullChain(t), RunRequest{Query: "q"})
	require.Error(t, err)

	require.NotEmpty(t, published)
	assert.Equal(t, events.ExecutionStartedEvent, published[0])
	assert.Equal(t, events.ExecutionFailedEvent, published[len(published)-1])
}

func traceNodeIDs(trace []models.NodeTrace) []string {
	ids := make([]string, 0, len(trace))
	for _, entry := range trace {
		ids = append(ids, entry.NodeID)
	}

	return ids
}
