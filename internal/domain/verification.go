package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	verificationKeyPrefix = "verify:"

	EventVerificationRequested = "user.verification.requested"
)

// VerificationKey is the cache key holding the pending record for a verification id.
func VerificationKey(verificationID string) string {
	return verificationKeyPrefix + verificationID
}

// VerificationRecord is the cached payload stored under VerificationKey.
type VerificationRecord struct {
	UserID string `json:"user_id"`
	Code   string `json:"verification_code"`
}

// VerificationRequestedEvent carries everything a notification consumer needs
// to email the code without reading the user store.
type VerificationRequestedEvent struct {
	Event            string    `json:"event"`
	EventID          string    `json:"event_id"`
	OccurredAt       time.Time `json:"occurred_at"`
	VerificationID   string    `json:"verification_id"`
	UserID           string    `json:"user_id"`
	Email            string    `json:"email"`
	VerificationCode string    `json:"verification_code"`
}

func NewVerificationRequestedEvent(verificationID, userID, email, code string, occurredAt time.Time) VerificationRequestedEvent {
	return VerificationRequestedEvent{
		Event:            EventVerificationRequested,
		EventID:          uuid.NewString(),
		OccurredAt:       occurredAt.UTC(),
		VerificationID:   verificationID,
		UserID:           userID,
		Email:            email,
		VerificationCode: code,
	}
}

// MessageID lets publishers stamp the broker message with the event id.
func (e VerificationRequestedEvent) MessageID() string {
	return e.EventID
}
