package domain

import "context"

// EventPublisher pushes notification events onto the durable queue.
// Publish failures are the caller's to log; the business operation that
// triggered the event must not fail because of them.
type EventPublisher interface {
	Publish(ctx context.Context, event *NotificationEvent) error
	Close() error
}

// Delivery is one message handed to the consumer. The broker adapter owns
// the underlying envelope; the consumer only holds it until Ack or Nack.
type Delivery struct {
	Body        []byte
	Redelivered bool
	AckFunc     func() error
	NackFunc    func() error
}

// Ack removes the message from the queue.
func (d Delivery) Ack() error {
	if d.AckFunc == nil {
		return nil
	}
	return d.AckFunc()
}

// Nack returns the message to the queue for redelivery.
func (d Delivery) Nack() error {
	if d.NackFunc == nil {
		return nil
	}
	return d.NackFunc()
}

// Subscription is an open stream of deliveries, bounded to one
// unacknowledged message at a time by the broker adapter.
type Subscription interface {
	Deliveries() <-chan Delivery
	Close() error
}
