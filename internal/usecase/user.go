package usecase

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/account-service/internal/domain"
	"github.com/ErlanBelekov/account-service/internal/metrics"
	"github.com/ErlanBelekov/account-service/internal/repository"
	"github.com/ErlanBelekov/account-service/internal/verification"
)

const (
	defaultVerificationTTL = 300 * time.Second
	defaultListLimit       = 50
	maxListLimit           = 100
)

type VerificationConfig struct {
	TTL        time.Duration
	RoutingKey string
}

type RegisterInput struct {
	Email       string
	DisplayName string
	Password    string
}

type RegisterResult struct {
	User           *domain.User
	VerificationID string
	// NotificationQueued is false when the user and code were stored but the
	// event could not be published.
	NotificationQueued bool
}

type UserUsecase struct {
	users     repository.UserRepository
	cache     repository.Cache
	publisher repository.Publisher
	hasher    PasswordHasher
	cfg       VerificationConfig
	logger    *slog.Logger
	now       func() time.Time
	newCode   func() (string, error)
}

type UserOption func(*UserUsecase)

func WithClock(now func() time.Time) UserOption {
	return func(u *UserUsecase) { u.now = now }
}

func WithCodeGenerator(gen func() (string, error)) UserOption {
	return func(u *UserUsecase) { u.newCode = gen }
}

func NewUserUsecase(
	users repository.UserRepository,
	cache repository.Cache,
	publisher repository.Publisher,
	hasher PasswordHasher,
	cfg VerificationConfig,
	logger *slog.Logger,
	opts ...UserOption,
) *UserUsecase {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultVerificationTTL
	}
	if cfg.RoutingKey == "" {
		cfg.RoutingKey = domain.EventVerificationRequested
	}
	u := &UserUsecase{
		users:     users,
		cache:     cache,
		publisher: publisher,
		hasher:    hasher,
		cfg:       cfg,
		logger:    logger.With("component", "user_usecase"),
		now:       time.Now,
		newCode:   verification.NewCode,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Register creates the user, caches a pending verification record and emits
// the verification-requested event. A publish failure does not fail the call.
func (u *UserUsecase) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	hash, err := u.hasher.Hash(in.Password)
	if err != nil {
		metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: hash password: %v", domain.ErrUserCreate, err)
	}

	user, err := u.users.Create(ctx, domain.NewUser{
		Email:        in.Email,
		DisplayName:  in.DisplayName,
		PasswordHash: hash,
		Role:         domain.RoleUser,
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			metrics.RegistrationsTotal.WithLabelValues("conflict").Inc()
			return nil, domain.ErrUserAlreadyExists
		}
		metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %v", domain.ErrUserCreate, err)
	}

	code, err := u.newCode()
	if err != nil {
		metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: generate code: %v", domain.ErrVerificationStore, err)
	}
	verificationID := verification.NewID()

	record, err := json.Marshal(domain.VerificationRecord{UserID: user.ID, Code: code})
	if err != nil {
		metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: encode record: %v", domain.ErrVerificationStore, err)
	}
	if err := u.cache.Set(ctx, domain.VerificationKey(verificationID), record, u.cfg.TTL); err != nil {
		u.logger.ErrorContext(ctx, "store verification record", "user_id", user.ID, "error", err)
		metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %v", domain.ErrVerificationStore, err)
	}

	event := domain.NewVerificationRequestedEvent(verificationID, user.ID, user.Email, code, u.now())
	queued := true
	if err := u.publisher.Publish(ctx, u.cfg.RoutingKey, event); err != nil {
		queued = false
		u.logger.ErrorContext(ctx, "publish verification event",
			"user_id", user.ID,
			"verification_id", verificationID,
			"event_id", event.EventID,
			"error", err,
		)
		metrics.EventsPublishedTotal.WithLabelValues(event.Event, "failure").Inc()
	} else {
		metrics.EventsPublishedTotal.WithLabelValues(event.Event, "success").Inc()
	}

	metrics.RegistrationsTotal.WithLabelValues("success").Inc()
	u.logger.InfoContext(ctx, "user registered", "user_id", user.ID, "verification_id", verificationID)

	return &RegisterResult{
		User:               user,
		VerificationID:     verificationID,
		NotificationQueued: queued,
	}, nil
}

// Verify consumes the pending record for verificationID and marks its user
// verified. It returns the verified user's id.
func (u *UserUsecase) Verify(ctx context.Context, verificationID, code string) (string, error) {
	key := domain.VerificationKey(verificationID)

	raw, err := u.cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.VerificationsTotal.WithLabelValues("expired").Inc()
			return "", domain.ErrVerificationCodeExpired
		}
		metrics.VerificationsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: %v", domain.ErrVerificationStore, err)
	}

	var record domain.VerificationRecord
	if err := json.Unmarshal(raw, &record); err != nil || record.UserID == "" || record.Code == "" {
		metrics.VerificationsTotal.WithLabelValues("error").Inc()
		return "", domain.ErrInvalidVerificationPayload
	}

	if subtle.ConstantTimeCompare([]byte(record.Code), []byte(code)) != 1 {
		metrics.VerificationsTotal.WithLabelValues("invalid_code").Inc()
		return "", domain.ErrInvalidVerificationCode
	}

	// Consume before the update so a replay inside the TTL window finds nothing.
	if err := u.cache.Delete(ctx, key); err != nil {
		metrics.VerificationsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: %v", domain.ErrVerificationStore, err)
	}

	if err := u.users.MarkVerified(ctx, record.UserID); err != nil {
		metrics.VerificationsTotal.WithLabelValues("error").Inc()
		if errors.Is(err, repository.ErrNotFound) {
			return "", domain.ErrUserNotFound
		}
		return "", fmt.Errorf("%w: %v", domain.ErrUserUpdate, err)
	}

	metrics.VerificationsTotal.WithLabelValues("success").Inc()
	u.logger.InfoContext(ctx, "user verified", "user_id", record.UserID, "verification_id", verificationID)
	return record.UserID, nil
}

func (u *UserUsecase) ChangePassword(ctx context.Context, user *domain.User, oldPassword, newPassword string) (*domain.User, error) {
	if !u.hasher.Verify(oldPassword, user.PasswordHash) {
		return nil, domain.ErrIncorrectOldPassword
	}

	hash, err := u.hasher.Hash(newPassword)
	if err != nil {
		return nil, fmt.Errorf("%w: hash password: %v", domain.ErrUserUpdate, err)
	}

	updated, err := u.users.UpdatePassword(ctx, user.ID, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrUserUpdate, err)
	}
	return updated, nil
}

func (u *UserUsecase) ChangeDisplayName(ctx context.Context, userID, displayName string) (*domain.User, error) {
	updated, err := u.users.UpdateDisplayName(ctx, userID, displayName)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			return nil, domain.ErrUserAlreadyExists
		case errors.Is(err, repository.ErrNotFound):
			return nil, domain.ErrUserNotFound
		default:
			return nil, fmt.Errorf("%w: %v", domain.ErrUserUpdate, err)
		}
	}
	return updated, nil
}

func (u *UserUsecase) List(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	users, err := u.users.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUserRead, err)
	}
	return users, nil
}
