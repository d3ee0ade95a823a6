// Package components implements the per-kind execution contracts for
// workflow nodes. Dispatch is a closed switch over the node kind; the kind
// set is fixed, so there is no open registration.
package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/genstack/genstack/pkg/generation"
	"github.com/genstack/genstack/pkg/knowledge"
	"github.com/genstack/genstack/pkg/models"
)

// Failure causes carried by ExecutionError.
var (
	ErrKnowledgeUnavailable = errors.New("knowledge store unavailable")
	ErrGenerationRejected   = errors.New("generation rejected")
	ErrDeadlineExceeded     = errors.New("execution deadline exceeded")
	ErrCancelled            = errors.New("execution cancelled")
)

// ExecutionError tags a runtime failure with the node that produced it.
type ExecutionError struct {
	NodeID string
	Kind   models.NodeKind
	Cause  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("node %s (%s): %v", e.NodeID, e.Kind, e.Cause)
}

func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Default retry budgets and the fixed backoff between attempts.
const (
	defaultKnowledgeBaseRetries = 2
	defaultLLMEngineRetries     = 1
	defaultRetryBackoff         = 200 * time.Millisecond
)

// Deps are the collaborators handed to executors. They are passed explicitly,
// never held as ambient state, so tests substitute fakes without process-wide
// setup.
type Deps struct {
	Knowledge    knowledge.Store
	Generation   generation.Client
	Logger       *slog.Logger
	RetryBackoff time.Duration // zero uses the default

	// Retry budgets for transient failures. Zero uses the defaults
	// (knowledge base 2, llm engine 1); negative disables retries.
	RetrievalRetries  int
	GenerationRetries int
}

// Executor runs one node against the accumulated execution context and
// returns the updated context. Implementations must never erase context
// fields they did not produce.
type Executor interface {
	Execute(ctx context.Context, node *models.Node, ec models.ExecutionContext) (models.ExecutionContext, error)
}

// ForKind returns the executor for a node kind.
func ForKind(kind models.NodeKind, deps Deps) (Executor, error) {
	backoff := deps.RetryBackoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch kind {
	case models.KindUserQuery:
		return &UserQuery{}, nil
	case models.KindKnowledgeBase:
		return &KnowledgeBase{
			store:   deps.Knowledge,
			retries: retryBudget(deps.RetrievalRetries, defaultKnowledgeBaseRetries),
			backoff: backoff,
			logger:  logger,
		}, nil
	case models.KindLLMEngine:
		return &LLMEngine{
			client:  deps.Generation,
			retries: retryBudget(deps.GenerationRetries, defaultLLMEngineRetries),
			backoff: backoff,
			logger:  logger,
		}, nil
	case models.KindOutput:
		return &Output{}, nil
	default:
		return nil, fmt.Errorf("no executor for node kind %q", kind)
	}
}

func retryBudget(configured, fallback int) int {
	switch {
	case configured == 0:
		return fallback
	case configured < 0:
		return 0
	default:
		return configured
	}
}

// sleep waits for the backoff duration or until the context ends.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// contextCause maps a context error to the engine's failure taxonomy.
func contextCause(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrDeadlineExceeded
	}

	return ErrCancelled
}
