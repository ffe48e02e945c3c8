package repository

import "context"

// Publisher emits events onto a durable queue. Delivery is at-least-once.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// Delivery is a broker message handed to a consumer. Exactly one of Ack or
// Nack must be called.
type Delivery struct {
	Body        []byte
	Redelivered bool
	Ack         func() error
	Nack        func(requeue bool) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, queue string) (<-chan Delivery, error)
}
