package postgres

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

type MigrateDirection int

const (
	MigrateUp MigrateDirection = iota
	// MigrateDownOne rolls back the most recent migration.
	MigrateDownOne
	// MigrateReset rolls back every migration.
	MigrateReset
	// MigrateReload resets and then applies everything again.
	MigrateReload
)

// Migrate runs the embedded goose migrations over a database/sql handle
// borrowed from the pool.
func Migrate(ctx context.Context, pool *pgxpool.Pool, dir MigrateDirection) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	var err error
	switch dir {
	case MigrateUp:
		err = goose.UpContext(ctx, db, migrationsDir)
	case MigrateDownOne:
		err = goose.DownContext(ctx, db, migrationsDir)
	case MigrateReset:
		err = goose.ResetContext(ctx, db, migrationsDir)
	case MigrateReload:
		if err = goose.ResetContext(ctx, db, migrationsDir); err == nil {
			err = goose.UpContext(ctx, db, migrationsDir)
		}
	default:
		return fmt.Errorf("unknown migrate direction %d", dir)
	}
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
