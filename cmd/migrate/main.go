// migrate applies or rolls back the users schema.
//
//	go run ./cmd/migrate              apply pending migrations
//	go run ./cmd/migrate -rollback-one
//	go run ./cmd/migrate -rollback    drop everything
//	go run ./cmd/migrate -reload      drop everything and re-apply
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/ErlanBelekov/account-service/internal/infrastructure/postgres"
)

func main() {
	rollback := flag.Bool("rollback", false, "roll back every migration")
	rollbackOne := flag.Bool("rollback-one", false, "roll back the latest migration")
	reload := flag.Bool("reload", false, "roll back every migration, then apply all")
	flag.Parse()

	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	dir := postgres.MigrateUp
	switch {
	case *reload:
		dir = postgres.MigrateReload
	case *rollback:
		dir = postgres.MigrateReset
	case *rollbackOne:
		dir = postgres.MigrateDownOne
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, dbURL, postgres.PoolConfig{MaxConns: 2})
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool, dir); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Println("migrations done")
}
