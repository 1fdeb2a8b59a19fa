package natsstan

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	stan "github.com/nats-io/stan.go"

	"github.com/swaplane/offersvc/internal/core/domain"
	"github.com/swaplane/offersvc/internal/metrics"
)

// Config holds NATS Streaming connection and queue settings. The cluster's
// file store makes accepted messages survive a broker restart.
type Config struct {
	ClusterID string        `yaml:"cluster_id"`
	ClientID  string        `yaml:"client_id"`
	URL       string        `yaml:"url"`
	Subject   string        `yaml:"subject"`
	Durable   string        `yaml:"durable"`
	Queue     string        `yaml:"queue"`
	AckWait   time.Duration `yaml:"ack_wait"`
}

func (c *Config) applyDefaults() {
	if c.Subject == "" {
		c.Subject = "notifications"
	}
	if c.Durable == "" {
		c.Durable = "notifications-durable"
	}
	if c.Queue == "" {
		c.Queue = "notification-workers"
	}
	if c.AckWait <= 0 {
		c.AckWait = 30 * time.Second
	}
}

// Publisher pushes notification events onto the durable queue. The
// connection is re-established lazily: a lost connection is dropped and
// the next publish redials, so one broker outage costs at most the
// events published during it.
type Publisher struct {
	cfg Config
	log *slog.Logger

	mu sync.Mutex
	sc stan.Conn
}

// NewPublisher creates a publisher. No connection is made until the first
// publish; a down broker must not block process startup.
func NewPublisher(cfg Config, log *slog.Logger) *Publisher {
	cfg.applyDefaults()
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{cfg: cfg, log: log}
}

func (p *Publisher) conn() (stan.Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sc != nil {
		return p.sc, nil
	}

	clientID := p.cfg.ClientID
	if clientID == "" {
		clientID = fmt.Sprintf("offersvc-pub-%d", time.Now().UnixNano())
	}

	sc, err := stan.Connect(p.cfg.ClusterID, clientID,
		stan.NatsURL(p.cfg.URL),
		stan.Pings(10, 5),
		stan.SetConnectionLostHandler(func(_ stan.Conn, reason error) {
			p.log.Warn("broker connection lost, will redial on next publish", "error", reason)
			p.drop()
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("stan connect: %w", err)
	}
	p.sc = sc
	p.log.Info("connected to broker", "cluster", p.cfg.ClusterID, "subject", p.cfg.Subject)
	return sc, nil
}

func (p *Publisher) drop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sc = nil
}

// Publish sends one event to the queue. Errors are returned for the caller
// to log; business operations must not fail on them.
func (p *Publisher) Publish(ctx context.Context, event *domain.NotificationEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	sc, err := p.conn()
	if err != nil {
		metrics.NotificationPublishErrors.Inc()
		return err
	}

	if err := sc.Publish(p.cfg.Subject, payload); err != nil {
		// Stale connection; drop it so the next publish redials.
		p.drop()
		metrics.NotificationPublishErrors.Inc()
		return fmt.Errorf("publish to %s: %w", p.cfg.Subject, err)
	}

	metrics.NotificationsPublished.Inc()
	return nil
}

// Close closes the broker connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sc == nil {
		return nil
	}
	err := p.sc.Close()
	p.sc = nil
	return err
}
