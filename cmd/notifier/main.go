// notifier consumes verification-requested events and emails the code.
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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ErlanBelekov/account-service/config"
	"github.com/ErlanBelekov/account-service/internal/email"
	"github.com/ErlanBelekov/account-service/internal/health"
	"github.com/ErlanBelekov/account-service/internal/infrastructure/rabbitmq"
	"github.com/ErlanBelekov/account-service/internal/infrastructure/redis"
	ctxlog "github.com/ErlanBelekov/account-service/internal/log"
	"github.com/ErlanBelekov/account-service/internal/metrics"
	"github.com/ErlanBelekov/account-service/internal/notifier"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadNotifier()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := ctxlog.New(os.Stdout, cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer redisClient.Close()
	cache := redis.NewStore(redisClient)

	amqpConn, err := rabbitmq.Dial(cfg.AMQPURL, "account-notifier", logger)
	if err != nil {
		log.Fatalf("rabbitmq: %v", err)
	}
	defer amqpConn.Close()

	sender, err := email.NewSender(email.Config{
		Backend:      cfg.NotifierBackend,
		ResendAPIKey: cfg.ResendAPIKey,
		ResendFrom:   cfg.ResendFrom,
		APIURL:       cfg.NotificationAPIURL,
		APIToken:     cfg.NotificationAPIToken,
	}, logger)
	if err != nil {
		log.Fatalf("email: %v", err)
	}

	subscriber := rabbitmq.NewSubscriber(amqpConn, cfg.AMQPExchange, cfg.NotifierConcurrency, logger)
	worker := notifier.NewWorker(subscriber, cache, sender, notifier.Config{
		Queue:       cfg.VerificationQueue,
		LinkBase:    cfg.VerifyLinkBase,
		Concurrency: cfg.NotifierConcurrency,
	}, logger)

	metrics.Register()
	checker := health.NewChecker(map[string]health.Pinger{
		"redis":    cache,
		"rabbitmq": amqpConn,
	}, logger, prometheus.DefaultRegisterer)

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)
	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	if err := worker.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("notifier stopped", "error", err)
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
}
