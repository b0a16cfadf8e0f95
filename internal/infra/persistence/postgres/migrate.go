package postgres

import (
	"context"
	"database/sql"
	"log/slog"

	"cookbook/internal/errors"
	"cookbook/internal/infra/persistence/migrations"

	"github.com/pressly/goose/v3"
)

const migrationDialect = "postgres"

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded goose migrations to db.
func RunMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(migrationDialect); err != nil {
		return errors.Wrap(err, "failed to set goose dialect")
	}

	if err := gooseUpContext(ctx, db, "."); err != nil {
		return errors.Wrap(err, "failed to apply migrations")
	}

	if logger != nil {
		logger.InfoContext(ctx, "Database migrations applied")
	}

	return nil
}
