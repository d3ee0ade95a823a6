package components

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/genstack/genstack/pkg/knowledge"
	"github.com/genstack/genstack/pkg/models"
)

// KnowledgeBase retrieves context passages for the query: it embeds the query
// and runs a similarity search. The embed+search pair is retried as a unit on
// transient failures; an empty result set is valid, not an error.
type KnowledgeBase struct {
	store   knowledge.Store
	retries int
	backoff time.Duration
	logger  *slog.Logger
}

func (k *KnowledgeBase) Execute(ctx context.Context, node *models.Node, ec models.ExecutionContext) (models.ExecutionContext, error) {
	cfg, err := models.KnowledgeBaseConfigFrom(node)
	if err != nil {
		return ec, &ExecutionError{NodeID: node.ID, Kind: node.Kind, Cause: err}
	}

	opts := knowledge.SearchOptions{TopK: cfg.TopK}
	if cfg.ScopeToWorkflow {
		opts.WorkflowID = ec.WorkflowID
	}

	var passages []models.Passage

	for attempt := 0; ; attempt++ {
		passages, err = k.retrieve(ctx, ec.Query, opts)
		if err == nil {
			break
		}

		if !knowledge.IsTransient(err) || attempt == k.retries {
			return ec, &ExecutionError{
				NodeID: node.ID,
				Kind:   node.Kind,
				Cause:  fmt.Errorf("%w: %w", ErrKnowledgeUnavailable, err),
			}
		}

		k.logger.WarnContext(ctx, "retrieval failed, retrying",
			"node_id", node.ID, "attempt", attempt+1, "error", err)

		if err := sleep(ctx, k.backoff); err != nil {
			return ec, &ExecutionError{NodeID: node.ID, Kind: node.Kind, Cause: contextCause(err)}
		}
	}

	sources := make([]string, 0, len(passages))
	seen := make(map[string]bool, len(passages))

	for _, passage := range passages {
		if passage.SourceID == "" || seen[passage.SourceID] {
			continue
		}

		seen[passage.SourceID] = true
		sources = append(sources, passage.SourceID)
	}

	if passages == nil {
		passages = []models.Passage{}
	}

	ec.RetrievedContext = passages
	ec.Sources = sources

	return ec, nil
}

func (k *KnowledgeBase) retrieve(ctx context.Context, query string, opts knowledge.SearchOptions) ([]models.Passage, error) {
	embedding, err := k.store.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	return k.store.Search(ctx, embedding, opts)
}
