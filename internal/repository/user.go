package repository

import (
	"context"

	"github.com/ErlanBelekov/account-service/internal/domain"
)

// UserRepository returns ErrNotFound, ErrConflict or ErrUnavailable (wrapped)
// instead of driver errors.
type UserRepository interface {
	Create(ctx context.Context, u domain.NewUser) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) (*domain.User, error)
	UpdateDisplayName(ctx context.Context, id, displayName string) (*domain.User, error)
	MarkVerified(ctx context.Context, id string) error
	List(ctx context.Context, limit, offset int) ([]*domain.User, error)
	CountByState(ctx context.Context) (domain.UserCounts, error)
}
