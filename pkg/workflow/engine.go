package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/genstack/genstack/pkg/components"
	"github.com/genstack/genstack/pkg/eventbus"
	"github.com/genstack/genstack/pkg/events"
	"github.com/genstack/genstack/pkg/generation"
	"github.com/genstack/genstack/pkg/knowledge"
	"github.com/genstack/genstack/pkg/models"
	"github.com/genstack/genstack/pkg/otelhelper"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Engine orchestrates one execution request: validate, order, then run the
// components sequentially, threading the execution context forward. The
// engine holds no mutable state between requests, so a single instance
// serves concurrent executions.
type Engine struct {
	knowledge         knowledge.Store
	generation        generation.Client
	logger            *slog.Logger
	eventBus          eventbus.EventBus
	tracer            trace.Tracer
	retryBackoff      time.Duration
	retrievalRetries  int
	generationRetries int
}

// EngineOption configures optional engine collaborators.
type EngineOption func(*Engine)

// WithEventBus publishes execution lifecycle events on bus.
func WithEventBus(bus eventbus.EventBus) EngineOption {
	return func(e *Engine) {
		e.eventBus = bus
	}
}

// WithTracer records a span per execution and per node.
func WithTracer(tracer trace.Tracer) EngineOption {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// WithRetryBackoff overrides the fixed backoff between component retries.
func WithRetryBackoff(backoff time.Duration) EngineOption {
	return func(e *Engine) {
		e.retryBackoff = backoff
	}
}

// WithRetryBudgets overrides how many times transient retrieval and
// generation failures are retried. Zero keeps a component's default budget;
// negative disables retries for that component.
func WithRetryBudgets(retrieval, generation int) EngineOption {
	return func(e *Engine) {
		e.retrievalRetries = retrieval
		e.generationRetries = generation
	}
}

// NewEngine creates an execution engine. The knowledge store and generation
// client are explicit collaborators so tests can substitute fakes.
func NewEngine(store knowledge.Store, client generation.Client, logger *slog.Logger, opts ...EngineOption) *Engine {
	engine := &Engine{
		knowledge:  store,
		generation: client,
		logger:     logger,
	}

	for _, opt := range opts {
		opt(engine)
	}

	return engine
}

// RunRequest carries the caller-supplied inputs for one execution.
type RunRequest struct {
	Query      string
	WorkflowID string
}

// Run executes a query through the graph. It fails with
// *ValidationFailedError when the graph is invalid (execution does not
// start), or with the failing component's *components.ExecutionError
// propagated verbatim. The returned result is non-nil on execution failure
// too, carrying the partial trace up to and including the failing node.
// The context deadline bounds total wall-clock time: it is checked at every
// node boundary, and an in-flight external call is never interrupted, but no
// further node starts once it has passed.
func (e *Engine) Run(ctx context.Context, g *models.Graph, req RunRequest) (*models.ExecutionResult, error) {
	if validation := Validate(g); !validation.Valid() {
		return nil, &ValidationFailedError{Errors: validation.Errors}
	}

	executionID := "exec-" + uuid.New().String()[:8]

	logger := e.logger.With(
		"execution_id", executionID,
		"workflow_id", req.WorkflowID,
	)

	var span trace.Span

	if e.tracer != nil {
		ctx, span = e.tracer.Start(ctx, "workflow.run", trace.WithAttributes(
			attribute.String(otelhelper.WorkflowIDKey, req.WorkflowID),
			attribute.String(otelhelper.ExecutionIDKey, executionID),
		))
		defer span.End()
	}

	sequence := Order(g)

	ec := models.ExecutionContext{
		WorkflowID: req.WorkflowID,
		Query:      req.Query,
	}

	result := &models.ExecutionResult{
		Sources: []string{},
		Trace:   make([]models.NodeTrace, 0, len(sequence)),
	}

	start := time.Now()

	logger.InfoContext(ctx, "starting execution", "nodes", len(sequence))
	e.publish(ctx, executionID, events.ExecutionStarted{
		BaseEvent: e.baseEvent(events.ExecutionStartedEvent, executionID, req.WorkflowID),
		Query:     req.Query,
		NodeCount: len(sequence),
	})

	deps := components.Deps{
		Knowledge:         e.knowledge,
		Generation:        e.generation,
		Logger:            logger,
		RetryBackoff:      e.retryBackoff,
		RetrievalRetries:  e.retrievalRetries,
		GenerationRetries: e.generationRetries,
	}

	for _, node := range sequence {
		// Cancellation and the deadline are advisory: checked here, at the
		// node boundary, never mid-call.
		if err := ctx.Err(); err != nil {
			result.Elapsed = time.Since(start)

			execErr := &components.ExecutionError{
				NodeID: node.ID,
				Kind:   node.Kind,
				Cause:  boundaryCause(err),
			}

			logger.WarnContext(context.WithoutCancel(ctx), "execution aborted at node boundary",
				"node_id", node.ID, "error", execErr)
			e.publishFailure(ctx, executionID, req.WorkflowID, node.ID, execErr, result.Elapsed)
			recordSpanError(span, execErr, node.ID)

			return result, execErr
		}

		executor, err := components.ForKind(node.Kind, deps)
		if err != nil {
			// Unreachable after parse-time kind checks, kept as a guard.
			result.Elapsed = time.Since(start)

			return result, &components.ExecutionError{NodeID: node.ID, Kind: node.Kind, Cause: err}
		}

		startedAt := time.Now()
		updated, err := executor.Execute(ctx, node, ec)
		entry := models.NodeTrace{
			NodeID:    node.ID,
			StartedAt: startedAt,
			Duration:  time.Since(startedAt),
			Succeeded: err == nil,
		}
		result.Trace = append(result.Trace, entry)

		e.publish(ctx, executionID, events.NodeFinished{
			BaseEvent: e.baseEvent(events.NodeFinishedEvent, executionID, req.WorkflowID),
			NodeID:    node.ID,
			Kind:      node.Kind,
			Succeeded: entry.Succeeded,
			Duration:  entry.Duration,
		})

		if err != nil {
			result.Elapsed = time.Since(start)

			logger.ErrorContext(context.WithoutCancel(ctx), "node failed, aborting chain",
				"node_id", node.ID, "kind", node.Kind, "error", err)
			e.publishFailure(ctx, executionID, req.WorkflowID, node.ID, err, result.Elapsed)
			recordSpanError(span, err, node.ID)

			return result, err
		}

		ec = updated
	}

	result.FinalText = ec.FinalText
	if ec.FinalSources != nil {
		result.Sources = ec.FinalSources
	}

	result.Elapsed = time.Since(start)

	logger.InfoContext(ctx, "execution completed",
		"elapsed", result.Elapsed, "sources", len(result.Sources))
	e.publish(ctx, executionID, events.ExecutionFinished{
		BaseEvent:   e.baseEvent(events.ExecutionFinishedEvent, executionID, req.WorkflowID),
		Duration:    result.Elapsed,
		SourceCount: len(result.Sources),
	})

	return result, nil
}

func (e *Engine) baseEvent(eventType events.EventType, executionID, workflowID string) events.BaseEvent {
	return events.BaseEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		WorkflowID:  workflowID,
		ExecutionID: executionID,
	}
}

func (e *Engine) publish(ctx context.Context, executionID string, event eventbus.Event) {
	if e.eventBus == nil {
		return
	}

	if err := e.eventBus.Publish(context.WithoutCancel(ctx), executionID, event); err != nil {
		e.logger.WarnContext(context.WithoutCancel(ctx), "failed to publish event",
			"event_type", event.GetType(), "error", err)
	}
}

func (e *Engine) publishFailure(ctx context.Context, executionID, workflowID, nodeID string, cause error, elapsed time.Duration) {
	e.publish(ctx, executionID, events.ExecutionFailed{
		BaseEvent: e.baseEvent(events.ExecutionFailedEvent, executionID, workflowID),
		NodeID:    nodeID,
		Error:     cause.Error(),
		Duration:  elapsed,
	})
}

func recordSpanError(span trace.Span, err error, nodeID string) {
	if span == nil {
		return
	}

	otelhelper.SetError(span, err, attribute.String(otelhelper.NodeIDKey, nodeID))
}

func boundaryCause(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return components.ErrDeadlineExceeded
	}

	if errors.Is(err, context.Canceled) {
		return components.ErrCancelled
	}

	return fmt.Errorf("context ended: %w", err)
}
