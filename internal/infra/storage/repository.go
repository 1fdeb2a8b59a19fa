package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/swaplane/offersvc/internal/core/domain"
)

// OfferRepository persists trade offers. UpdateStatus is a compare-and-swap
// on the status column: it fails with ErrInvalidState when the stored status
// no longer matches from, so two concurrent transitions cannot both win.
type OfferRepository interface {
	Create(ctx context.Context, offer *domain.TradeOffer) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.TradeOffer, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OfferStatus) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.TradeOffer, error)
}

// NotificationRepository persists delivered notification events.
// Save must be safe to call twice with the same event id; delivery is
// at-least-once.
type NotificationRepository interface {
	Save(ctx context.Context, event *domain.NotificationEvent) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.NotificationEvent, error)
}
