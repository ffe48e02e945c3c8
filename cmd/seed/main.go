// seed creates or resets the bootstrap admin account in the local dev database.
// Run: go run ./cmd/seed
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/ErlanBelekov/account-service/internal/domain"
	"github.com/ErlanBelekov/account-service/internal/infrastructure/postgres"
	"github.com/ErlanBelekov/account-service/internal/password"
)

const (
	defaultAdminEmail = "admin@test.local"
	defaultAdminName  = "admin"
)

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	ctx := context.Background()
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}
	adminPassword := os.Getenv("SEED_ADMIN_PASSWORD")
	if len(adminPassword) < 8 {
		log.Fatal("SEED_ADMIN_PASSWORD must be at least 8 characters")
	}

	pool, err := postgres.NewPool(ctx, dbURL, postgres.PoolConfig{MaxConns: 2})
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool, postgres.MigrateUp); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	hash, err := password.NewBcrypt(password.DefaultCost).Hash(adminPassword)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	admin, err := postgres.NewUserRepository(pool).UpsertAdmin(ctx, domain.NewUser{
		Email:        getenv("SEED_ADMIN_EMAIL", defaultAdminEmail),
		DisplayName:  getenv("SEED_ADMIN_NAME", defaultAdminName),
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
	})
	if err != nil {
		log.Fatalf("upsert admin: %v", err)
	}

	fmt.Println("Seed complete")
	fmt.Println()
	fmt.Printf("  Admin:    %s (%s)\n", admin.Email, admin.DisplayName)
	fmt.Printf("  User ID:  %s\n", admin.ID)
	fmt.Printf("  Verified: %t\n", admin.IsVerified)
	fmt.Println()
	fmt.Println("Log in with:")
	fmt.Println()
	fmt.Printf("    curl -s -X POST http://localhost:8080/v1/auth/login \\\n")
	fmt.Printf("      -H 'Content-Type: application/json' \\\n")
	fmt.Printf("      -d '{\"email\":\"%s\",\"password\":\"...\"}'\n", admin.Email)
}
