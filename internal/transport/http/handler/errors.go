package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ErlanBelekov/account-service/internal/domain"
)

const (
	errInternalServer  = "Internal server error"
	errInvalidRequest  = "Invalid request"
	errNotAuthorized   = "Could not validate credentials"
	errMissingRefresh  = "Refresh token is required"
	errServiceDegraded = "Service temporarily unavailable"
)

type errorMapping struct {
	err     error
	status  int
	message string
}

// errorTable is checked in order with errors.Is. Messages for 4xx come from
// the domain error; 5xx never expose the cause.
var errorTable = []errorMapping{
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, ""},
	{domain.ErrInvalidAuthCredentials, http.StatusUnauthorized, errNotAuthorized},
	{domain.ErrInvalidTokenPayload, http.StatusUnauthorized, errNotAuthorized},
	{domain.ErrTokenPayloadMissingUserID, http.StatusUnauthorized, errNotAuthorized},
	{domain.ErrUserInactive, http.StatusForbidden, ""},
	{domain.ErrForbidden, http.StatusForbidden, ""},
	{domain.ErrUserNotFound, http.StatusNotFound, ""},
	{domain.ErrUserAlreadyExists, http.StatusConflict, ""},
	{domain.ErrIncorrectOldPassword, http.StatusBadRequest, ""},
	{domain.ErrInvalidVerificationCode, http.StatusBadRequest, ""},
	{domain.ErrVerificationCodeExpired, http.StatusGone, ""},
	{domain.ErrVerificationStore, http.StatusServiceUnavailable, errServiceDegraded},
	{domain.ErrInvalidVerificationPayload, http.StatusInternalServerError, errInternalServer},
	{domain.ErrUserCreate, http.StatusInternalServerError, errInternalServer},
	{domain.ErrUserUpdate, http.StatusInternalServerError, errInternalServer},
	{domain.ErrUserRead, http.StatusInternalServerError, errInternalServer},
}

// StatusFor returns the HTTP status and client-facing message for err.
func StatusFor(err error) (int, string) {
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			msg := m.message
			if msg == "" {
				msg = m.err.Error()
			}
			return m.status, msg
		}
	}
	return http.StatusInternalServerError, errInternalServer
}

// writeError logs 5xx responses with the full cause and aborts with JSON.
func writeError(c *gin.Context, logger *slog.Logger, op string, err error) {
	status, msg := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(c.Request.Context(), op, "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func writeBindError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": errInvalidRequest, "details": err.Error()})
}
