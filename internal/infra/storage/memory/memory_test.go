package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/swaplane/offersvc/internal/core/domain"
)

func seedOffer(t *testing.T, repo *OfferRepo) *domain.TradeOffer {
	t.Helper()
	now := time.Now().UTC().Add(-time.Minute)
	offer := &domain.TradeOffer{
		ID:               uuid.New(),
		ProposerID:       uuid.New(),
		ReceiverID:       uuid.New(),
		OfferedItemIDs:   []uuid.UUID{uuid.New()},
		RequestedItemIDs: []uuid.UUID{uuid.New()},
		Status:           domain.StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := repo.Create(context.Background(), offer); err != nil {
		t.Fatalf("create: %v", err)
	}
	return offer
}

func TestOfferRepo_UpdateStatusSwapsAndTouches(t *testing.T) {
	repo := NewOfferRepo(NewMemoryStorage())
	offer := seedOffer(t, repo)

	err := repo.UpdateStatus(context.Background(), offer.ID, domain.StatusPending, domain.StatusAccepted)
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := repo.GetByID(context.Background(), offer.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.StatusAccepted {
		t.Errorf("expected status accepted, got %s", got.Status)
	}
	if !got.UpdatedAt.After(offer.UpdatedAt) {
		t.Errorf("expected updated_at refreshed, got %v (was %v)", got.UpdatedAt, offer.UpdatedAt)
	}
}

func TestOfferRepo_UpdateStatusStaleRead(t *testing.T) {
	repo := NewOfferRepo(NewMemoryStorage())
	offer := seedOffer(t, repo)

	// Another transition has already moved the offer on.
	if err := repo.UpdateStatus(context.Background(), offer.ID, domain.StatusPending, domain.StatusCancelled); err != nil {
		t.Fatalf("first update: %v", err)
	}

	err := repo.UpdateStatus(context.Background(), offer.ID, domain.StatusPending, domain.StatusAccepted)
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for a stale update, got %v", err)
	}
	if got, _ := repo.GetByID(context.Background(), offer.ID); got.Status != domain.StatusCancelled {
		t.Errorf("stale update must not overwrite, got %s", got.Status)
	}
}

func TestOfferRepo_UpdateStatusUnknownOffer(t *testing.T) {
	repo := NewOfferRepo(NewMemoryStorage())
	err := repo.UpdateStatus(context.Background(), uuid.New(), domain.StatusPending, domain.StatusAccepted)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
