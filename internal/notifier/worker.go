package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ErlanBelekov/account-service/internal/domain"
	"github.com/ErlanBelekov/account-service/internal/email"
	"github.com/ErlanBelekov/account-service/internal/metrics"
	"github.com/ErlanBelekov/account-service/internal/repository"
)

const (
	dedupPrefix = "notified:"
	dedupTTL    = 24 * time.Hour
	sendTimeout = 15 * time.Second
)

var errMalformed = errors.New("malformed verification event")

type Config struct {
	Queue       string
	LinkBase    string
	Concurrency int
}

// Worker turns verification-requested events into emails. Each event id is
// sent at most once per dedupTTL even when the broker redelivers it.
type Worker struct {
	subscriber repository.Subscriber
	cache      repository.Cache
	sender     email.Sender
	cfg        Config
	logger     *slog.Logger
	sem        chan struct{}
	wg         sync.WaitGroup
}

func NewWorker(
	subscriber repository.Subscriber,
	cache repository.Cache,
	sender email.Sender,
	cfg Config,
	logger *slog.Logger,
) *Worker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Queue == "" {
		cfg.Queue = domain.EventVerificationRequested
	}
	return &Worker{
		subscriber: subscriber,
		cache:      cache,
		sender:     sender,
		cfg:        cfg,
		logger:     logger.With("component", "notifier"),
		sem:        make(chan struct{}, cfg.Concurrency),
	}
}

// Start blocks until ctx is cancelled and every in-flight send has finished.
func (w *Worker) Start(ctx context.Context) error {
	deliveries, err := w.subscriber.Subscribe(ctx, w.cfg.Queue)
	if err != nil {
		return err
	}

	w.logger.Info("notifier started", "queue", w.cfg.Queue, "concurrency", w.cfg.Concurrency)

	for d := range deliveries {
		w.sem <- struct{}{}
		w.wg.Add(1)
		go func(d repository.Delivery) {
			metrics.NotificationsInFlight.Inc()
			defer metrics.NotificationsInFlight.Dec()
			defer func() { <-w.sem }()
			defer w.wg.Done()
			w.handle(ctx, d)
		}(d)
	}

	w.wg.Wait()
	w.logger.Info("notifier shut down")
	return nil
}

func (w *Worker) handle(ctx context.Context, d repository.Delivery) {
	// Let an accepted message finish even if shutdown has started.
	ctx = context.WithoutCancel(ctx)

	ev, err := decodeEvent(d.Body)
	if err != nil {
		metrics.NotificationsSentTotal.WithLabelValues("malformed").Inc()
		w.logger.Error("drop message", "error", err)
		w.settle(d.Nack(false))
		return
	}
	log := w.logger.With("event_id", ev.EventID, "user_id", ev.UserID)

	key := dedupPrefix + ev.EventID
	first, err := w.cache.SetNX(ctx, key, []byte(time.Now().UTC().Format(time.RFC3339)), dedupTTL)
	switch {
	case err != nil:
		log.Warn("dedup check failed, sending without it", "error", err)
	case !first:
		metrics.NotificationsSentTotal.WithLabelValues("duplicate").Inc()
		log.Info("event already handled, skipping")
		w.settle(d.Ack())
		return
	}

	msg, err := renderMessage(ev, w.cfg.LinkBase)
	if err != nil {
		metrics.NotificationsSentTotal.WithLabelValues("failed").Inc()
		log.Error("render verification email", "error", err)
		w.release(ctx, key)
		w.settle(d.Nack(false))
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if err := w.sender.Send(sendCtx, msg); err != nil {
		w.release(ctx, key)
		if d.Redelivered {
			metrics.NotificationsSentTotal.WithLabelValues("failed").Inc()
			log.Error("send verification email failed twice, dropping", "error", err)
			w.settle(d.Nack(false))
			return
		}
		metrics.NotificationsSentTotal.WithLabelValues("retry").Inc()
		log.Warn("send verification email failed, requeueing", "error", err)
		w.settle(d.Nack(true))
		return
	}

	metrics.NotificationsSentTotal.WithLabelValues("sent").Inc()
	log.Info("verification email sent")
	w.settle(d.Ack())
}

func (w *Worker) release(ctx context.Context, key string) {
	if err := w.cache.Delete(ctx, key); err != nil {
		w.logger.Warn("release dedup key", "key", key, "error", err)
	}
}

func (w *Worker) settle(err error) {
	if err != nil {
		w.logger.Error("settle delivery", "error", err)
	}
}

func decodeEvent(body []byte) (domain.VerificationRequestedEvent, error) {
	var ev domain.VerificationRequestedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return ev, errors.Join(errMalformed, err)
	}
	if ev.Event != domain.EventVerificationRequested ||
		ev.EventID == "" || ev.Email == "" || ev.VerificationID == "" || ev.VerificationCode == "" {
		return ev, errMalformed
	}
	return ev, nil
}
