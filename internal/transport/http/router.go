package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	sloggin "github.com/samber/slog-gin"

	"github.com/ErlanBelekov/account-service/internal/transport/http/handler"
	"github.com/ErlanBelekov/account-service/internal/transport/http/middleware"
)

type RouterConfig struct {
	// Limiter throttles the unauthenticated credential endpoints. Nil disables it.
	Limiter       middleware.Limiter
	AdminAPIToken string
	HSTS          bool
	// TrustedProxies lists proxy IPs/CIDRs whose X-Forwarded-For is honoured
	// when resolving the client IP. Empty trusts none.
	TrustedProxies []string
}

func NewRouter(
	logger *slog.Logger,
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	resolver middleware.UserResolver,
	cfg RouterConfig,
) *gin.Engine {
	r := gin.New()
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		logger.Error("invalid trusted proxies, trusting none", "error", err)
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security(cfg.HSTS))
	r.Use(sloggin.NewWithConfig(logger, sloggin.Config{
		WithRequestID: false,
		Filters:       []sloggin.Filter{sloggin.IgnorePath("/ping")},
	}))
	r.Use(middleware.Metrics())

	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	throttle := func(c *gin.Context) { c.Next() }
	if cfg.Limiter != nil {
		throttle = middleware.RateLimit(cfg.Limiter, logger)
	}
	authMW := middleware.Auth(resolver, logger)

	v1 := r.Group("/v1")

	auth := v1.Group("/auth")
	auth.POST("/login", throttle, authHandler.Login)
	auth.POST("/refresh", throttle, authHandler.Refresh)
	auth.POST("/logout", authHandler.Logout)
	auth.GET("/me", authMW, authHandler.Me)

	users := v1.Group("/users")
	users.POST("/register", throttle, userHandler.Register)
	users.PATCH("/verify", throttle, userHandler.Verify)
	users.GET("/verify", throttle, userHandler.VerifyLink)
	users.PATCH("/change_password", authMW, userHandler.ChangePassword)
	users.PATCH("/change_data", authMW, userHandler.ChangeData)
	users.GET("", authMW, middleware.RequireAdmin(cfg.AdminAPIToken), userHandler.List)

	return r
}
