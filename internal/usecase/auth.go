package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/ErlanBelekov/account-service/internal/domain"
	"github.com/ErlanBelekov/account-service/internal/metrics"
	"github.com/ErlanBelekov/account-service/internal/repository"
	"github.com/ErlanBelekov/account-service/internal/token"
)

// TokenCodec is satisfied by *token.Codec.
type TokenCodec interface {
	IssueAccessToken(userID string) (string, error)
	IssueRefreshToken(userID string) (string, error)
	DecodeAccessToken(raw string) (*token.Claims, error)
	DecodeRefreshToken(raw string) (*token.Claims, error)
}

// PasswordHasher is satisfied by *password.Bcrypt.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}

// dummyPassword is hashed once so unknown emails pay the same hash
// comparison as known ones.
const dummyPassword = "account-service-timing-equalizer"

type AuthUsecase struct {
	users     repository.UserRepository
	codec     TokenCodec
	hasher    PasswordHasher
	dummyHash string
}

func NewAuthUsecase(users repository.UserRepository, codec TokenCodec, hasher PasswordHasher) *AuthUsecase {
	// A failed hash leaves dummyHash empty; Verify against it still returns false.
	dummy, _ := hasher.Hash(dummyPassword)
	return &AuthUsecase{
		users:     users,
		codec:     codec,
		hasher:    hasher,
		dummyHash: dummy,
	}
}

// Authenticate returns ErrInvalidCredentials for both an unknown email and a
// wrong password.
func (u *AuthUsecase) Authenticate(ctx context.Context, email, password string) (*domain.TokenPair, error) {
	user, err := u.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			u.hasher.Verify(password, u.dummyHash)
			metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
			return nil, domain.ErrInvalidCredentials
		}
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %v", domain.ErrUserRead, err)
	}

	if !u.hasher.Verify(password, user.PasswordHash) {
		metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
		return nil, domain.ErrInvalidCredentials
	}

	if !user.IsActive {
		metrics.LoginsTotal.WithLabelValues("inactive").Inc()
		return nil, domain.ErrUserInactive
	}

	pair, err := u.IssueTokens(user.ID)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.LoginsTotal.WithLabelValues("success").Inc()
	return pair, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token stays
// valid until it expires; there is no rotation or revocation list.
func (u *AuthUsecase) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := u.codec.DecodeRefreshToken(refreshToken)
	if err != nil {
		metrics.TokenRefreshesTotal.WithLabelValues("invalid_token").Inc()
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidAuthCredentials, err)
	}
	if claims.UserID == "" {
		metrics.TokenRefreshesTotal.WithLabelValues("invalid_token").Inc()
		return nil, domain.ErrInvalidTokenPayload
	}

	user, err := u.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.TokenRefreshesTotal.WithLabelValues("user_not_found").Inc()
			return nil, domain.ErrUserNotFound
		}
		metrics.TokenRefreshesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %v", domain.ErrUserRead, err)
	}
	if !user.IsActive {
		metrics.TokenRefreshesTotal.WithLabelValues("user_not_found").Inc()
		return nil, domain.ErrUserNotFound
	}

	pair, err := u.IssueTokens(user.ID)
	if err != nil {
		metrics.TokenRefreshesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.TokenRefreshesTotal.WithLabelValues("success").Inc()
	return pair, nil
}

// CurrentUser resolves the user an access token was issued to.
func (u *AuthUsecase) CurrentUser(ctx context.Context, accessToken string) (*domain.User, error) {
	claims, err := u.codec.DecodeAccessToken(accessToken)
	if err != nil {
		return nil, domain.ErrInvalidAuthCredentials
	}
	if claims.UserID == "" {
		return nil, domain.ErrTokenPayloadMissingUserID
	}

	user, err := u.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrUserRead, err)
	}
	return user, nil
}

func (u *AuthUsecase) IssueTokens(userID string) (*domain.TokenPair, error) {
	access, err := u.codec.IssueAccessToken(userID)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := u.codec.IssueRefreshToken(userID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    domain.TokenTypeBearer,
	}, nil
}
