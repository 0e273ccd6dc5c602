package data

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/academic360/notifier/internal/migrate"
)

// RunMigrations applies the embedded schema migrations by delegating to the migrate package.
func RunMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	return migrate.Run(ctx, db, logger)
}
