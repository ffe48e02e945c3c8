package domain

import "errors"

// Auth
var (
	ErrInvalidCredentials        = errors.New("invalid email or password")
	ErrUserInactive              = errors.New("user is inactive")
	ErrInvalidTokenPayload       = errors.New("invalid token payload")
	ErrInvalidAuthCredentials    = errors.New("invalid authentication credentials")
	ErrTokenPayloadMissingUserID = errors.New("token payload missing user_id")
	ErrIncorrectOldPassword      = errors.New("incorrect old password")
	ErrForbidden                 = errors.New("forbidden")
)

// User store
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserCreate        = errors.New("error creating user")
	ErrUserUpdate        = errors.New("error updating user")
	ErrUserRead          = errors.New("error reading user")
)

// Verification
var (
	ErrVerificationCodeExpired    = errors.New("verification code expired")
	ErrInvalidVerificationPayload = errors.New("invalid verification payload")
	ErrInvalidVerificationCode    = errors.New("invalid verification code")
	ErrVerificationStore          = errors.New("verification store unavailable")
)
