package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ErlanBelekov/account-service/internal/domain"
	"github.com/ErlanBelekov/account-service/internal/transport/http/middleware"
	"github.com/ErlanBelekov/account-service/internal/usecase"
)

type userUsecaser interface {
	Register(ctx context.Context, in usecase.RegisterInput) (*usecase.RegisterResult, error)
	Verify(ctx context.Context, verificationID, code string) (string, error)
	ChangePassword(ctx context.Context, user *domain.User, oldPassword, newPassword string) (*domain.User, error)
	ChangeDisplayName(ctx context.Context, userID, displayName string) (*domain.User, error)
	List(ctx context.Context, limit, offset int) ([]*domain.User, error)
}

type tokenIssuer interface {
	IssueTokens(userID string) (*domain.TokenPair, error)
}

type UserHandler struct {
	users   userUsecaser
	tokens  tokenIssuer
	cookies CookieConfig
	logger  *slog.Logger
}

func NewUserHandler(users userUsecaser, tokens tokenIssuer, cookies CookieConfig, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		users:   users,
		tokens:  tokens,
		cookies: cookies,
		logger:  logger.With("component", "user_handler"),
	}
}

type registerRequest struct {
	Email       string `json:"email"        binding:"required,email,max=254"`
	DisplayName string `json:"display_name" binding:"required,min=3,max=64"`
	Password    string `json:"password"     binding:"required,min=8,max=72"`
}

type verifyRequest struct {
	VerificationID string `json:"verification_id" form:"verification_id" binding:"required,uuid"`
	Code           string `json:"code"            form:"code"            binding:"required,len=6,numeric"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8,max=72,nefield=OldPassword"`
}

type changeDataRequest struct {
	DisplayName string `json:"display_name" binding:"required,min=3,max=64"`
}

// maxPasswordBytes is bcrypt's input limit. The max=72 binding tag counts
// runes, so multibyte passwords need this extra check.
const maxPasswordBytes = 72

var errPasswordTooLong = fmt.Errorf("password must not exceed %d bytes", maxPasswordBytes)

func checkPasswordBytes(pw string) error {
	if len(pw) > maxPasswordBytes {
		return errPasswordTooLong
	}
	return nil
}

type userResponse struct {
	ID          string      `json:"id"`
	Email       string      `json:"email"`
	DisplayName string      `json:"display_name"`
	IsActive    bool        `json:"is_active"`
	IsVerified  bool        `json:"is_verified"`
	Role        domain.Role `json:"role"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   *time.Time  `json:"updated_at,omitempty"`
}

func newUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		IsActive:    u.IsActive,
		IsVerified:  u.IsVerified,
		Role:        u.Role,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

type registerResponse struct {
	userResponse
	VerificationID   string `json:"verification_id"`
	VerificationSent bool   `json:"verification_sent"`
}

type verifyResponse struct {
	Verified bool `json:"verified"`
	*domain.TokenPair
}

// POST /v1/users/register
func (h *UserHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	if err := checkPasswordBytes(req.Password); err != nil {
		writeBindError(c, err)
		return
	}

	res, err := h.users.Register(c.Request.Context(), usecase.RegisterInput{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Password:    req.Password,
	})
	if err != nil {
		writeError(c, h.logger, "register", err)
		return
	}

	c.JSON(http.StatusCreated, registerResponse{
		userResponse:     newUserResponse(res.User),
		VerificationID:   res.VerificationID,
		VerificationSent: res.NotificationQueued,
	})
}

// PATCH /v1/users/verify
// On success the user is signed in straight away.
func (h *UserHandler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	h.verify(c, req)
}

// GET /v1/users/verify?verification_id=&code=
// Target of the emailed link.
func (h *UserHandler) VerifyLink(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		writeBindError(c, err)
		return
	}
	h.verify(c, req)
}

func (h *UserHandler) verify(c *gin.Context, req verifyRequest) {
	userID, err := h.users.Verify(c.Request.Context(), req.VerificationID, req.Code)
	if err != nil {
		writeError(c, h.logger, "verify", err)
		return
	}

	pair, err := h.tokens.IssueTokens(userID)
	if err != nil {
		// The user is verified; they can still log in with their password.
		h.logger.ErrorContext(c.Request.Context(), "issue tokens after verification", "user_id", userID, "error", err)
		c.JSON(http.StatusOK, verifyResponse{Verified: true})
		return
	}

	h.cookies.set(c, pair)
	c.JSON(http.StatusOK, verifyResponse{Verified: true, TokenPair: pair})
}

// PATCH /v1/users/change_password
func (h *UserHandler) ChangePassword(c *gin.Context) {
	user, ok := middleware.UserFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errNotAuthorized})
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	if err := checkPasswordBytes(req.NewPassword); err != nil {
		writeBindError(c, err)
		return
	}

	updated, err := h.users.ChangePassword(c.Request.Context(), user, req.OldPassword, req.NewPassword)
	if err != nil {
		writeError(c, h.logger, "change password", err)
		return
	}
	c.JSON(http.StatusOK, newUserResponse(updated))
}

// PATCH /v1/users/change_data
func (h *UserHandler) ChangeData(c *gin.Context) {
	user, ok := middleware.UserFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errNotAuthorized})
		return
	}

	var req changeDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	updated, err := h.users.ChangeDisplayName(c.Request.Context(), user.ID, req.DisplayName)
	if err != nil {
		writeError(c, h.logger, "change display name", err)
		return
	}
	c.JSON(http.StatusOK, newUserResponse(updated))
}

// GET /v1/users?limit=&offset=
func (h *UserHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	users, err := h.users.List(c.Request.Context(), limit, offset)
	if err != nil {
		writeError(c, h.logger, "list users", err)
		return
	}

	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, newUserResponse(u))
	}
	c.JSON(http.StatusOK, gin.H{"users": out, "limit": limit, "offset": offset})
}
