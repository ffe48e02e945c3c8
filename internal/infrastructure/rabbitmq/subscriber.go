package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ErlanBelekov/account-service/internal/repository"
)

const maxBackoff = 30 * time.Second

// Subscriber consumes a durable queue bound to the exchange with manual
// acknowledgements. The delivery channel survives broker reconnects and is
// closed once ctx is done.
type Subscriber struct {
	conn     *Conn
	exchange string
	prefetch int
	logger   *slog.Logger
}

func NewSubscriber(conn *Conn, exchange string, prefetch int, logger *slog.Logger) *Subscriber {
	if prefetch < 1 {
		prefetch = 1
	}
	return &Subscriber{
		conn:     conn,
		exchange: exchange,
		prefetch: prefetch,
		logger:   logger.With("component", "rabbitmq_subscriber"),
	}
}

// Subscribe binds queue to the exchange using the queue name as routing key.
func (s *Subscriber) Subscribe(ctx context.Context, queue string) (<-chan repository.Delivery, error) {
	ch, msgs, err := s.consume(queue)
	if err != nil {
		return nil, err
	}

	out := make(chan repository.Delivery)
	go s.run(ctx, queue, ch, msgs, out)
	return out, nil
}

func (s *Subscriber) consume(queue string) (*amqp.Channel, <-chan amqp.Delivery, error) {
	ch, err := s.conn.Channel()
	if err != nil {
		return nil, nil, err
	}

	if err := ch.Qos(s.prefetch, 0, false); err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("set qos: %w", err)
	}
	if err := declareExchange(ch, s.exchange); err != nil {
		_ = ch.Close()
		return nil, nil, err
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	if err := ch.QueueBind(queue, queue, s.exchange, false, nil); err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("bind queue %s: %w", queue, err)
	}

	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("consume %s: %w", queue, err)
	}
	return ch, msgs, nil
}

func (s *Subscriber) run(ctx context.Context, queue string, ch *amqp.Channel, msgs <-chan amqp.Delivery, out chan<- repository.Delivery) {
	defer close(out)

	for {
		forward(ctx, msgs, out)
		_ = ch.Close()
		if ctx.Err() != nil {
			return
		}

		s.logger.Warn("consumer channel closed, reconnecting", "queue", queue)
		var ok bool
		ch, msgs, ok = s.reconnect(ctx, queue)
		if !ok {
			return
		}
	}
}

func (s *Subscriber) reconnect(ctx context.Context, queue string) (*amqp.Channel, <-chan amqp.Delivery, bool) {
	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return nil, nil, false
		case <-time.After(backoff):
		}

		ch, msgs, err := s.consume(queue)
		if err == nil {
			s.logger.Info("consumer resumed", "queue", queue)
			return ch, msgs, true
		}

		s.logger.Error("resubscribe failed", "queue", queue, "error", err, "retry_in", backoff)
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// forward returns when msgs closes or ctx is done.
func forward(ctx context.Context, msgs <-chan amqp.Delivery, out chan<- repository.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-msgs:
			if !ok {
				return
			}
			select {
			case out <- toDelivery(d):
			case <-ctx.Done():
				_ = d.Nack(false, true)
				return
			}
		}
	}
}

func toDelivery(d amqp.Delivery) repository.Delivery {
	return repository.Delivery{
		Body:        d.Body,
		Redelivered: d.Redelivered,
		Ack:         func() error { return d.Ack(false) },
		Nack:        func(requeue bool) error { return d.Nack(false, requeue) },
	}
}
