// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"

	"github.com/genstack/genstack/pkg/persistence"
	"github.com/genstack/genstack/pkg/persistence/file"
	"github.com/genstack/genstack/pkg/persistence/postgresql"
)

// NewPersistence creates a persistence backend from a database URL.
// postgres:// and postgresql:// URLs get the PostgreSQL backend; anything
// else is treated as a directory path for file persistence. The returned
// *sql.DB is non-nil only for PostgreSQL and is shared with the vector store.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, *sql.DB, error) {
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, nil, err
		}

		return p, p.DB(), nil
	}

	path := strings.TrimPrefix(databaseURL, "file://")

	return file.NewPersistence(path), nil, nil
}
