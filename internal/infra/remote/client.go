package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/swaplane/offersvc/internal/core/domain"
	"github.com/swaplane/offersvc/internal/infra/resilience"
	"github.com/swaplane/offersvc/internal/metrics"
)

// CatalogAPI is the raw validation call, satisfied by CatalogClient.
type CatalogAPI interface {
	ValidateItems(ctx context.Context, itemIDs []uuid.UUID) ([]domain.ValidationResult, error)
}

// ChatAPI is the raw room-creation call, satisfied by ChatClient.
type ChatAPI interface {
	CreateRoom(ctx context.Context, participantA, participantB uuid.UUID, roomContext string) (uuid.UUID, error)
}

// Config tunes the resilience layer shared by both dependencies.
type Config struct {
	Breaker resilience.BreakerConfig
	Retry   resilience.RetryConfig
}

// Client wraps the catalog and chat dependencies with retry around a
// per-dependency circuit breaker: each retry attempt passes through the
// breaker, so the failure counter accumulates across the attempts of a
// single call as well as across distinct calls.
type Client struct {
	catalog CatalogAPI
	chat    ChatAPI

	validateBreaker *resilience.Breaker
	chatBreaker     *resilience.Breaker
	retry           resilience.RetryConfig

	log *slog.Logger
}

// NewClient creates the resilient client. Each dependency gets its own
// breaker instance; they are never shared.
func NewClient(catalog CatalogAPI, chat ChatAPI, cfg Config, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		catalog:         catalog,
		chat:            chat,
		validateBreaker: resilience.NewBreaker("catalog-validate", cfg.Breaker),
		chatBreaker:     resilience.NewBreaker("chat-create", cfg.Breaker),
		retry:           cfg.Retry,
		log:             log,
	}
}

// ValidateItems checks existence, activity and ownership of the given items.
// Exhausted retries or an open breaker surface as ErrServiceUnavailable;
// the business content of the results is for the caller to judge.
func (c *Client) ValidateItems(ctx context.Context, itemIDs []uuid.UUID) ([]domain.ValidationResult, error) {
	metrics.RemoteCallsTotal.WithLabelValues("catalog-validate").Inc()

	var results []domain.ValidationResult
	err := resilience.Retry(ctx, c.retry, resilience.IsTransient, func(ctx context.Context) error {
		return c.validateBreaker.Do(func() error {
			r, err := c.catalog.ValidateItems(ctx, itemIDs)
			if err != nil {
				return err
			}
			results = r
			return nil
		})
	})
	if err != nil {
		return nil, c.mapError("catalog-validate", err)
	}
	return results, nil
}

// CreateChatRoom opens a chat room for the two trade parties.
func (c *Client) CreateChatRoom(ctx context.Context, participantA, participantB uuid.UUID, roomContext string) (uuid.UUID, error) {
	metrics.RemoteCallsTotal.WithLabelValues("chat-create").Inc()

	var roomID uuid.UUID
	err := resilience.Retry(ctx, c.retry, resilience.IsTransient, func(ctx context.Context) error {
		return c.chatBreaker.Do(func() error {
			id, err := c.chat.CreateRoom(ctx, participantA, participantB, roomContext)
			if err != nil {
				return err
			}
			roomID = id
			return nil
		})
	})
	if err != nil {
		return uuid.Nil, c.mapError("chat-create", err)
	}
	return roomID, nil
}

// BreakerStates exposes the per-dependency breaker snapshots for the
// health endpoint. The service does not format metrics itself.
func (c *Client) BreakerStates() []resilience.Snapshot {
	return []resilience.Snapshot{
		c.validateBreaker.State(),
		c.chatBreaker.State(),
	}
}

// mapError folds breaker-open and exhausted-transient failures into
// ErrServiceUnavailable. Anything else passes through untouched.
func (c *Client) mapError(dependency string, err error) error {
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		metrics.RemoteCallErrors.WithLabelValues(dependency, "circuit_open").Inc()
		c.log.Warn("dependency circuit open", "dependency", dependency)
		return fmt.Errorf("%s: %w", dependency, domain.ErrServiceUnavailable)
	case resilience.IsTransient(err):
		metrics.RemoteCallErrors.WithLabelValues(dependency, "transient").Inc()
		c.log.Warn("dependency unavailable after retries", "dependency", dependency, "error", err)
		return fmt.Errorf("%s: %w", dependency, domain.ErrServiceUnavailable)
	default:
		metrics.RemoteCallErrors.WithLabelValues(dependency, "permanent").Inc()
		return err
	}
}
