package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ErlanBelekov/account-service/internal/domain"
	ctxlog "github.com/ErlanBelekov/account-service/internal/log"
)

const (
	errUnauthorized = "Could not validate credentials"
	errForbidden    = "Forbidden"

	accessTokenCookie = "access_token"
	userKey           = "user"
)

// UserResolver turns an access token into the user it was issued to.
// Satisfied by *usecase.AuthUsecase.
type UserResolver interface {
	CurrentUser(ctx context.Context, accessToken string) (*domain.User, error)
}

// Auth reads the access token from the access_token cookie or an
// "Authorization: Bearer" header, in that order, and stores the resolved
// user in the gin context.
func Auth(resolver UserResolver, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := accessToken(c)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
			return
		}

		user, err := resolver.CurrentUser(c.Request.Context(), raw)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrUserNotFound):
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": domain.ErrUserNotFound.Error()})
			case errors.Is(err, domain.ErrUserRead):
				logger.ErrorContext(c.Request.Context(), "resolve current user", "error", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			default:
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
			}
			return
		}

		c.Set(userKey, user)
		c.Request = c.Request.WithContext(ctxlog.WithUserID(c.Request.Context(), user.ID))
		c.Next()
	}
}

// UserFrom returns the user stored by Auth.
func UserFrom(c *gin.Context) (*domain.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*domain.User)
	return user, ok && user != nil
}

func accessToken(c *gin.Context) string {
	if v, err := c.Cookie(accessTokenCookie); err == nil && v != "" {
		return v
	}
	header := c.GetHeader("Authorization")
	scheme, tok, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}
