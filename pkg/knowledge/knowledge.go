// Package knowledge defines the retrieval store contract: embedding
// generation and vector similarity search over document chunks.
package knowledge

import (
	"context"
	"errors"

	"github.com/genstack/genstack/pkg/models"
)

var (
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	ErrSearchUnavailable    = errors.New("search unavailable")
)

// TransientError marks a failure expected to resolve on retry (timeout,
// connection reset, rate limit). Callers decide the retry budget.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return "transient: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a transient failure. A nil err stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}

	return &TransientError{Err: err}
}

// IsTransient reports whether err is marked transient anywhere in its chain.
func IsTransient(err error) bool {
	var transient *TransientError

	return errors.As(err, &transient)
}

// SearchOptions controls a similarity search. A non-empty WorkflowID
// restricts results to chunks of documents attached to that workflow;
// an empty one searches the global store.
type SearchOptions struct {
	TopK       int
	WorkflowID string
}

// Store is the retrieval collaborator consumed by the execution engine.
type Store interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Search(ctx context.Context, embedding []float32, opts SearchOptions) ([]models.Passage, error)
}

// Chunk is one piece of an ingested document ready for storage.
type Chunk struct {
	Index     int
	Content   string
	Embedding []float32
}

// Writer stores embedded document chunks. Kept separate from Store because
// the execution engine only ever reads.
type Writer interface {
	AddChunks(ctx context.Context, documentID string, workflowID *string, chunks []Chunk) error
	DeleteDocument(ctx context.Context, documentID string) error
}
