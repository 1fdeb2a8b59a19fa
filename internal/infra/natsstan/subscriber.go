package natsstan

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	stan "github.com/nats-io/stan.go"

	"github.com/swaplane/offersvc/internal/core/domain"
)

// Subscription adapts a durable NATS Streaming queue subscription to the
// domain port. MaxInflight(1) bounds each instance to one unacknowledged
// message; horizontal scaling means running more instances on the same
// queue group.
type Subscription struct {
	sc  stan.Conn
	sub stan.Subscription
	ch  chan domain.Delivery
	log *slog.Logger

	closed    chan struct{}
	closeOnce sync.Once
}

var _ domain.Subscription = (*Subscription)(nil)

// Open connects and starts the durable queue subscription.
func Open(cfg Config, log *slog.Logger) (*Subscription, error) {
	cfg.applyDefaults()
	if log == nil {
		log = slog.Default()
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = fmt.Sprintf("offersvc-sub-%d", time.Now().UnixNano())
	}

	sc, err := stan.Connect(cfg.ClusterID, clientID, stan.NatsURL(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("stan connect: %w", err)
	}

	s := &Subscription{
		sc:     sc,
		ch:     make(chan domain.Delivery),
		log:    log,
		closed: make(chan struct{}),
	}

	sub, err := sc.QueueSubscribe(cfg.Subject, cfg.Queue, func(m *stan.Msg) {
		s.dispatch(domain.Delivery{
			Body:        m.Data,
			Redelivered: m.Redelivered,
			AckFunc:     m.Ack,
			// Requeue by withholding the ack: the broker redelivers
			// after AckWait, to this instance or any other on the queue.
			NackFunc: func() error { return nil },
		})
	},
		stan.DurableName(cfg.Durable),
		stan.SetManualAckMode(),
		stan.AckWait(cfg.AckWait),
		stan.MaxInflight(1),
		stan.DeliverAllAvailable(),
	)
	if err != nil {
		_ = sc.Close()
		return nil, fmt.Errorf("queue subscribe %s: %w", cfg.Subject, err)
	}
	s.sub = sub

	log.Info("subscribed to broker queue",
		"subject", cfg.Subject, "queue", cfg.Queue, "durable", cfg.Durable)
	return s, nil
}

// dispatch hands a delivery to the consumer. Once Close has been called
// nobody reads the channel anymore, so the send is abandoned and the
// unacked message is left to the broker for redelivery.
func (s *Subscription) dispatch(d domain.Delivery) {
	select {
	case s.ch <- d:
	case <-s.closed:
	}
}

// Deliveries returns the stream of inbound messages.
func (s *Subscription) Deliveries() <-chan domain.Delivery {
	return s.ch
}

// Close stops delivery and closes the connection. The durable state is
// kept on the broker so a restarted consumer resumes where it left off.
func (s *Subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		if s.sub != nil {
			if cerr := s.sub.Close(); cerr != nil {
				s.log.Warn("closing subscription", "error", cerr)
			}
		}
		err = s.sc.Close()
	})
	return err
}
