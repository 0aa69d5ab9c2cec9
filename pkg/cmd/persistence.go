package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/venturehq/venture/pkg/persistence"
	"github.com/venturehq/venture/pkg/persistence/file"
	"github.com/venturehq/venture/pkg/persistence/postgresql"
)

// NewPersistence selects a store from the database URL scheme. postgres://
// URLs get the SQL store with migrations applied; anything else is treated
// as a filesystem path.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch parseProvider(databaseURL) {
	case "postgres", "postgresql":
		store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to initialize postgresql persistence: %w", err))
		}

		return store
	default:
		return file.NewPersistence(databaseURL)
	}
}

func parseProvider(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return scheme
}
