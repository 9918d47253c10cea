package migrations

import (
	"context"
	"embed"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed *.sql
var sqlFiles embed.FS

// Migrations holds every schema change of the game store, oldest first.
var Migrations = migrate.NewMigrations()

func exec(name string) migrate.MigrationFunc {
	return func(ctx context.Context, db *bun.DB) error {
		body, err := sqlFiles.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	}
}

func dropTables(tables ...string) migrate.MigrationFunc {
	return func(ctx context.Context, db *bun.DB) error {
		for _, t := range tables {
			if _, err := db.NewDropTable().Table(t).IfExists().Cascade().Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}
