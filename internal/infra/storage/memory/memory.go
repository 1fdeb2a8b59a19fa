package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/swaplane/offersvc/internal/core/domain"
)

// MemoryStorage is an in-memory mirror of the PostgreSQL repos, used for
// local development and tests.
type MemoryStorage struct {
	offers        map[uuid.UUID]*domain.TradeOffer
	notifications map[uuid.UUID]*domain.NotificationEvent
	mu            sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		offers:        make(map[uuid.UUID]*domain.TradeOffer),
		notifications: make(map[uuid.UUID]*domain.NotificationEvent),
	}
}

// -----------------------------------------------------------------------------
// Offer Repository
// -----------------------------------------------------------------------------

type OfferRepo struct {
	store *MemoryStorage
}

func NewOfferRepo(store *MemoryStorage) *OfferRepo {
	return &OfferRepo{store: store}
}

func (r *OfferRepo) Create(ctx context.Context, offer *domain.TradeOffer) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *offer
	r.store.offers[offer.ID] = &cp
	return nil
}

func (r *OfferRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.TradeOffer, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	offer, ok := r.store.offers[id]
	if !ok {
		return nil, fmt.Errorf("offer %s: %w", id, domain.ErrNotFound)
	}
	cp := *offer
	return &cp, nil
}

func (r *OfferRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OfferStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	offer, ok := r.store.offers[id]
	if !ok {
		return fmt.Errorf("offer %s: %w", id, domain.ErrNotFound)
	}
	if offer.Status != from {
		return fmt.Errorf("offer %s: status changed concurrently: %w", id, domain.ErrInvalidState)
	}
	offer.Status = to
	offer.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *OfferRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.TradeOffer, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if limit <= 0 {
		limit = 50
	}
	var offers []*domain.TradeOffer
	for _, o := range r.store.offers {
		if o.ProposerID == userID || o.ReceiverID == userID {
			cp := *o
			offers = append(offers, &cp)
		}
	}
	sort.Slice(offers, func(i, j int) bool {
		return offers[i].CreatedAt.After(offers[j].CreatedAt)
	})
	if len(offers) > limit {
		offers = offers[:limit]
	}
	return offers, nil
}

// -----------------------------------------------------------------------------
// Notification Repository
// -----------------------------------------------------------------------------

type NotificationRepo struct {
	store *MemoryStorage
}

func NewNotificationRepo(store *MemoryStorage) *NotificationRepo {
	return &NotificationRepo{store: store}
}

func (r *NotificationRepo) Save(ctx context.Context, event *domain.NotificationEvent) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, exists := r.store.notifications[event.ID]; exists {
		return nil // redelivery, keep the first write
	}
	cp := *event
	r.store.notifications[event.ID] = &cp
	return nil
}

func (r *NotificationRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.NotificationEvent, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if limit <= 0 {
		limit = 50
	}
	var events []*domain.NotificationEvent
	for _, ev := range r.store.notifications {
		if ev.UserID == userID {
			cp := *ev
			events = append(events, &cp)
		}
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].CreatedAt.After(events[j].CreatedAt)
	})
	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}
