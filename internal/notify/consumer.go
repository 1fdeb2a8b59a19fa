package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/swaplane/offersvc/internal/core/domain"
	"github.com/swaplane/offersvc/internal/infra/storage"
	"github.com/swaplane/offersvc/internal/metrics"
)

// Deduper suppresses redeliveries of an already-stored event. Optional:
// without it the pipeline is plainly at-least-once. Seen must be a pure
// read; Mark is only called once the event is durably stored.
type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

// Consumer is the long-running background worker that drains the
// notification queue into durable storage. It runs decoupled from request
// handling; one in-flight message at a time per instance.
type Consumer struct {
	sub   domain.Subscription
	store storage.NotificationRepository
	dedup Deduper
	log   *slog.Logger

	stop chan struct{}
	done chan struct{}
}

// NewConsumer creates a consumer over an open subscription. dedup may be nil.
func NewConsumer(sub domain.Subscription, store storage.NotificationRepository, dedup Deduper, log *slog.Logger) *Consumer {
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{
		sub:   sub,
		store: store,
		dedup: dedup,
		log:   log,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Start launches the processing loop.
func (c *Consumer) Start() {
	go c.loop()
}

func (c *Consumer) loop() {
	defer close(c.done)
	for {
		select {
		case <-c.stop:
			return
		case d, ok := <-c.sub.Deliveries():
			if !ok {
				return
			}
			c.process(context.Background(), d)
		}
	}
}

// process handles one delivery to its ack/nack verdict.
// A message is never acked before the store write succeeds, except for
// undecodable payloads, which are acked to keep a poison message from
// blocking the queue.
func (c *Consumer) process(ctx context.Context, d domain.Delivery) {
	var event domain.NotificationEvent
	if err := json.Unmarshal(d.Body, &event); err != nil {
		c.log.Warn("discarding malformed notification payload",
			"error", err, "redelivered", d.Redelivered)
		metrics.NotificationsDiscarded.Inc()
		if err := d.Ack(); err != nil {
			c.log.Error("ack failed", "error", err)
		}
		return
	}

	if c.dedup != nil && event.ID != uuid.Nil {
		seen, err := c.dedup.Seen(ctx, event.ID.String())
		if err != nil {
			// Dedup is best effort; a redis hiccup degrades to at-least-once.
			c.log.Warn("dedup check failed", "event_id", event.ID, "error", err)
		} else if seen {
			c.log.Debug("skipping duplicate notification", "event_id", event.ID)
			if err := d.Ack(); err != nil {
				c.log.Error("ack failed", "error", err)
			}
			return
		}
	}

	if err := c.store.Save(ctx, &event); err != nil {
		c.log.Error("storing notification failed, requeueing",
			"event_id", event.ID, "user_id", event.UserID, "error", err)
		metrics.NotificationsRequeued.Inc()
		if err := d.Nack(); err != nil {
			c.log.Error("nack failed", "error", err)
		}
		return
	}

	// Marked only after the durable write, so a failed Save leaves the
	// event eligible for redelivery rather than silently dropped.
	if c.dedup != nil && event.ID != uuid.Nil {
		if err := c.dedup.Mark(ctx, event.ID.String()); err != nil {
			c.log.Warn("dedup mark failed", "event_id", event.ID, "error", err)
		}
	}

	metrics.NotificationsConsumed.Inc()
	if err := d.Ack(); err != nil {
		c.log.Error("ack failed", "event_id", event.ID, "error", err)
	}
}

// Stop stops accepting new messages and waits for the in-flight message
// to reach its ack/nack before returning. ctx bounds the wait.
func (c *Consumer) Stop(ctx context.Context) error {
	close(c.stop)
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
