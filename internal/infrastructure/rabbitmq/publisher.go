package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type publishChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

// Publisher sends JSON events to a durable topic exchange as persistent
// messages. Before the first publish of a routing key it declares the durable
// queue of the same name and binds it, matching Subscriber, so events are
// retained even if no consumer has ever started. Safe for concurrent use;
// publishes are serialised on one channel.
type Publisher struct {
	exchange string
	open     func() (publishChannel, error)
	now      func() time.Time

	mu    sync.Mutex
	ch    publishChannel
	bound map[string]bool
}

func NewPublisher(conn *Conn, exchange string) *Publisher {
	return &Publisher{
		exchange: exchange,
		open: func() (publishChannel, error) {
			ch, err := conn.Channel()
			if err != nil {
				return nil, err
			}
			return ch, nil
		},
		now: time.Now,
	}
}

func (p *Publisher) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    p.now().UTC(),
		Type:         routingKey,
		Body:         body,
	}
	if m, ok := payload.(interface{ MessageID() string }); ok {
		msg.MessageId = m.MessageID()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}
	if err := p.bindQueue(ch, routingKey); err != nil {
		_ = ch.Close()
		p.ch = nil
		return err
	}
	if err := ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg); err != nil {
		_ = ch.Close()
		p.ch = nil
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	return nil
}

// channel must be called with mu held.
func (p *Publisher) channel() (publishChannel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	ch, err := p.open()
	if err != nil {
		return nil, err
	}
	if err := declareExchange(ch, p.exchange); err != nil {
		_ = ch.Close()
		return nil, err
	}
	p.ch = ch
	p.bound = make(map[string]bool)
	return ch, nil
}

// bindQueue must be called with mu held.
func (p *Publisher) bindQueue(ch publishChannel, routingKey string) error {
	if p.bound[routingKey] {
		return nil
	}
	if _, err := ch.QueueDeclare(routingKey, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", routingKey, err)
	}
	if err := ch.QueueBind(routingKey, routingKey, p.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", routingKey, err)
	}
	p.bound[routingKey] = true
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return nil
	}
	err := p.ch.Close()
	p.ch = nil
	return err
}
