package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ErlanBelekov/account-service/config"
	"github.com/ErlanBelekov/account-service/internal/health"
	"github.com/ErlanBelekov/account-service/internal/infrastructure/postgres"
	"github.com/ErlanBelekov/account-service/internal/infrastructure/rabbitmq"
	"github.com/ErlanBelekov/account-service/internal/infrastructure/redis"
	ctxlog "github.com/ErlanBelekov/account-service/internal/log"
	"github.com/ErlanBelekov/account-service/internal/metrics"
	"github.com/ErlanBelekov/account-service/internal/password"
	"github.com/ErlanBelekov/account-service/internal/stats"
	"github.com/ErlanBelekov/account-service/internal/token"
	httptransport "github.com/ErlanBelekov/account-service/internal/transport/http"
	"github.com/ErlanBelekov/account-service/internal/transport/http/handler"
	"github.com/ErlanBelekov/account-service/internal/usecase"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := ctxlog.New(os.Stdout, cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.DefaultPoolConfig)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	if cfg.MigrateOnStart {
		if err := postgres.Migrate(ctx, pool, postgres.MigrateUp); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		logger.Info("migrations applied")
	}

	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer redisClient.Close()
	cache := redis.NewStore(redisClient)

	amqpConn, err := rabbitmq.Dial(cfg.AMQPURL, "account-service", logger)
	if err != nil {
		log.Fatalf("rabbitmq: %v", err)
	}
	defer amqpConn.Close()
	publisher := rabbitmq.NewPublisher(amqpConn, cfg.AMQPExchange)
	defer publisher.Close()

	codec, err := token.NewCodec(token.Config{
		AccessSecret:  []byte(cfg.JWTSecret),
		RefreshSecret: []byte(cfg.JWTRefreshSecret),
		Algorithm:     cfg.JWTAlgorithm,
		AccessTTL:     cfg.AccessTokenTTL(),
		RefreshTTL:    cfg.RefreshTokenTTL(),
	})
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}
	hasher := password.NewBcrypt(cfg.BcryptCost)

	userRepo := postgres.NewUserRepository(pool)

	authUsecase := usecase.NewAuthUsecase(userRepo, codec, hasher)
	userUsecase := usecase.NewUserUsecase(userRepo, cache, publisher, hasher, usecase.VerificationConfig{
		TTL:        cfg.VerificationTTL(),
		RoutingKey: cfg.VerificationQueue,
	}, logger)

	cookies := handler.CookieConfig{
		Secure:     cfg.CookieSecure,
		AccessTTL:  codec.AccessTTL(),
		RefreshTTL: codec.RefreshTTL(),
	}
	authHandler := handler.NewAuthHandler(authUsecase, cookies, logger)
	userHandler := handler.NewUserHandler(userUsecase, authUsecase, cookies, logger)

	routerCfg := httptransport.RouterConfig{
		AdminAPIToken:  cfg.AdminAPIToken,
		HSTS:           cfg.CookieSecure,
		TrustedProxies: cfg.TrustedProxies,
	}
	if cfg.RateLimitEnabled {
		routerCfg.Limiter = redis.NewLimiter(redisClient, redis.LimiterConfig{
			Capacity:       cfg.RateLimitCapacity,
			RefillTokens:   cfg.RateLimitCapacity,
			RefillInterval: cfg.RateLimitRefillInterval,
		})
	}

	metrics.Register()
	checker := health.NewChecker(map[string]health.Pinger{
		"postgres": pool,
		"redis":    cache,
		"rabbitmq": amqpConn,
	}, logger, prometheus.DefaultRegisterer)

	refresher, err := stats.NewRefresher(userRepo, cfg.StatsSchedule, logger)
	if err != nil {
		log.Fatalf("stats: %v", err)
	}
	go refresher.Start(ctx)

	srv := http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httptransport.NewRouter(logger, authHandler, userHandler, authUsecase, routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	go func() {
		logger.Info("server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
}
