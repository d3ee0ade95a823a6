// Package generation defines the text generation client contract and its
// error taxonomy.
package generation

import (
	"context"
	"errors"
)

var (
	// ErrInvalidModel is permanent: retrying the same request cannot succeed.
	ErrInvalidModel = errors.New("invalid model")
	// ErrRateLimited is transient: the provider asked us to slow down.
	ErrRateLimited = errors.New("rate limited")
	// ErrUnavailable is transient: the provider failed or was unreachable.
	ErrUnavailable = errors.New("generation service unavailable")
)

// IsTransient reports whether a generation failure is expected to resolve on
// retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUnavailable)
}

// Client generates text from a prompt. Implementations classify failures
// using the package sentinels so callers can apply their retry budget.
type Client interface {
	Generate(ctx context.Context, prompt, modelName string, temperature float64) (string, error)
}
