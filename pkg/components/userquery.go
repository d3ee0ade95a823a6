package components

import (
	"context"

	"github.com/genstack/genstack/pkg/models"
)

// UserQuery is the entry component. It is pure: when the caller supplied a
// query it passes through unchanged, otherwise the node's configured query is
// used. It never fails.
type UserQuery struct{}

func (u *UserQuery) Execute(_ context.Context, node *models.Node, ec models.ExecutionContext) (models.ExecutionContext, error) {
	if ec.Query != "" {
		return ec, nil
	}

	cfg, err := models.UserQueryConfigFrom(node)
	if err != nil {
		// Validation guarantees a well-typed config; a decode failure here
		// still must not fail the component, the query just stays empty.
		return ec, nil
	}

	ec.Query = cfg.Query

	return ec, nil
}
