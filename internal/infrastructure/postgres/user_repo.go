package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ErlanBelekov/account-service/internal/domain"
	"github.com/ErlanBelekov/account-service/internal/repository"
)

const userColumns = `id, email, display_name, password_hash, is_active, is_verified, role, created_at, updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, nu domain.NewUser) (*domain.User, error) {
	role := nu.Role
	if role == "" {
		role = domain.RoleUser
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (email, display_name, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns,
		nu.Email, nu.DisplayName, nu.PasswordHash, string(role),
	)

	u, err := scanUser(row)
	if err != nil {
		return nil, storeError("create user", err)
	}
	return u, nil
}

// UpsertAdmin creates an active, verified ADMIN or promotes the existing
// account with the same email. Used by the seed command.
func (r *UserRepository) UpsertAdmin(ctx context.Context, nu domain.NewUser) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (email, display_name, password_hash, role, is_active, is_verified)
		VALUES ($1, $2, $3, 'ADMIN', TRUE, TRUE)
		ON CONFLICT ((lower(email))) DO UPDATE
		SET role = 'ADMIN', is_active = TRUE, is_verified = TRUE, updated_at = now()
		RETURNING `+userColumns,
		nu.Email, nu.DisplayName, nu.PasswordHash,
	)

	u, err := scanUser(row)
	if err != nil {
		return nil, storeError("upsert admin", err)
	}
	return u, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("find user: %w", repository.ErrNotFound)
	}

	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, storeError("find user", err)
	}
	return u, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	u, err := scanUser(row)
	if err != nil {
		return nil, storeError("find user by email", err)
	}
	return u, nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE users SET password_hash = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns,
		id, passwordHash,
	)
	u, err := scanUser(row)
	if err != nil {
		return nil, storeError("update password", err)
	}
	return u, nil
}

func (r *UserRepository) UpdateDisplayName(ctx context.Context, id, displayName string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE users SET display_name = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns,
		id, displayName,
	)
	u, err := scanUser(row)
	if err != nil {
		return nil, storeError("update display name", err)
	}
	return u, nil
}

// MarkVerified is idempotent: marking a verified user again succeeds.
func (r *UserRepository) MarkVerified(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET is_verified = TRUE, updated_at = now()
		WHERE id = $1`,
		id,
	)
	if err != nil {
		return storeError("mark verified", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark verified: %w", repository.ErrNotFound)
	}
	return nil
}

func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+` FROM users
		ORDER BY created_at, id
		LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, storeError("list users", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, storeError("list users", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list users", err)
	}
	return users, nil
}

func (r *UserRepository) CountByState(ctx context.Context) (domain.UserCounts, error) {
	var c domain.UserCounts
	err := r.pool.QueryRow(ctx, `
		SELECT
			count(*),
			count(*) FILTER (WHERE is_verified),
			count(*) FILTER (WHERE NOT is_verified),
			count(*) FILTER (WHERE NOT is_active)
		FROM users`,
	).Scan(&c.Total, &c.Verified, &c.Unverified, &c.Inactive)
	if err != nil {
		return domain.UserCounts{}, storeError("count users", err)
	}
	return c, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		u    domain.User
		role string
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash,
		&u.IsActive, &u.IsVerified, &role, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Role = domain.Role(role)
	return &u, nil
}

// storeError translates driver errors into the repository error set.
func storeError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: %w (%s)", op, repository.ErrConflict, pgErr.ConstraintName)
	}
	return fmt.Errorf("%s: %w: %v", op, repository.ErrUnavailable, err)
}
