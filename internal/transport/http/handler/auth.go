package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ErlanBelekov/account-service/internal/domain"
	"github.com/ErlanBelekov/account-service/internal/transport/http/middleware"
)

// authUsecaser is the subset of AuthUsecase the handler needs.
// Defined here (point of use) so tests can inject a fake.
type authUsecaser interface {
	Authenticate(ctx context.Context, email, password string) (*domain.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error)
}

type AuthHandler struct {
	authUsecase authUsecaser
	cookies     CookieConfig
	logger      *slog.Logger
}

func NewAuthHandler(authUsecase authUsecaser, cookies CookieConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authUsecase: authUsecase,
		cookies:     cookies,
		logger:      logger.With("component", "auth_handler"),
	}
}

type loginRequest struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// POST /v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	pair, err := h.authUsecase.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, h.logger, "authenticate", err)
		return
	}

	h.cookies.set(c, pair)
	c.JSON(http.StatusOK, pair)
}

// POST /v1/auth/refresh
// The refresh token is read from the JSON body, falling back to the cookie.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		writeBindError(c, err)
		return
	}
	if req.RefreshToken == "" {
		req.RefreshToken, _ = c.Cookie(RefreshTokenCookie)
	}
	if req.RefreshToken == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errMissingRefresh})
		return
	}

	pair, err := h.authUsecase.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		writeError(c, h.logger, "refresh", err)
		return
	}

	h.cookies.set(c, pair)
	c.JSON(http.StatusOK, pair)
}

// POST /v1/auth/logout
// Tokens are stateless, so logging out only clears the cookies.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.cookies.clear(c)
	c.Status(http.StatusNoContent)
}

// GET /v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.UserFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errNotAuthorized})
		return
	}
	c.JSON(http.StatusOK, newUserResponse(user))
}
