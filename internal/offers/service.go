package offers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/swaplane/offersvc/internal/core/domain"
	"github.com/swaplane/offersvc/internal/infra/storage"
	"github.com/swaplane/offersvc/internal/metrics"
)

// ItemValidator checks traded items against the catalog service.
type ItemValidator interface {
	ValidateItems(ctx context.Context, itemIDs []uuid.UUID) ([]domain.ValidationResult, error)
}

// ChatRoomCreator opens a chat room between the trade parties.
type ChatRoomCreator interface {
	CreateChatRoom(ctx context.Context, participantA, participantB uuid.UUID, roomContext string) (uuid.UUID, error)
}

// Config holds orchestration policy.
type Config struct {
	// ChatRequired rejects the acceptance transition when chat-room
	// creation fails. When false (default) the offer is accepted anyway
	// and room creation is left to be retried out-of-band.
	ChatRequired bool `yaml:"chat_required"`
}

// Service orchestrates the trade-offer lifecycle: validate against the
// catalog, persist, notify, and on acceptance coordinate with chat.
type Service struct {
	offers    storage.OfferRepository
	validator ItemValidator
	chat      ChatRoomCreator
	publisher domain.EventPublisher
	cfg       Config
	log       *slog.Logger
}

// NewService creates the orchestrator.
func NewService(
	offers storage.OfferRepository,
	validator ItemValidator,
	chat ChatRoomCreator,
	publisher domain.EventPublisher,
	cfg Config,
	log *slog.Logger,
) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		offers:    offers,
		validator: validator,
		chat:      chat,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
	}
}

// CreateOfferInput is the inbound create request.
type CreateOfferInput struct {
	ProposerID       uuid.UUID   `json:"proposer_id"`
	ReceiverID       uuid.UUID   `json:"receiver_id"`
	OfferedItemIDs   []uuid.UUID `json:"offered_item_ids"`
	RequestedItemIDs []uuid.UUID `json:"requested_item_ids"`
	Message          string      `json:"message,omitempty"`
}

func (in CreateOfferInput) validate() error {
	if in.ProposerID == uuid.Nil || in.ReceiverID == uuid.Nil {
		return fmt.Errorf("proposer and receiver are required: %w", domain.ErrInvalidRequest)
	}
	if in.ProposerID == in.ReceiverID {
		return fmt.Errorf("proposer and receiver must differ: %w", domain.ErrInvalidRequest)
	}
	if len(in.OfferedItemIDs) == 0 {
		return fmt.Errorf("offered items must not be empty: %w", domain.ErrInvalidRequest)
	}
	if len(in.RequestedItemIDs) == 0 {
		return fmt.Errorf("requested items must not be empty: %w", domain.ErrInvalidRequest)
	}
	return nil
}

// CreateOffer validates the traded items remotely, persists the offer as
// pending and notifies the receiver. No remote call is made when the
// structural validation fails; no offer is created when the catalog is
// unavailable.
func (s *Service) CreateOffer(ctx context.Context, in CreateOfferInput) (*domain.TradeOffer, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	union := unionIDs(in.OfferedItemIDs, in.RequestedItemIDs)
	results, err := s.validator.ValidateItems(ctx, union)
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]domain.ValidationResult, len(results))
	for _, r := range results {
		byID[r.ItemID] = r
	}

	if err := checkItems(byID, in.OfferedItemIDs, in.ProposerID); err != nil {
		return nil, err
	}
	if err := checkItems(byID, in.RequestedItemIDs, in.ReceiverID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	offer := &domain.TradeOffer{
		ID:               uuid.New(),
		ProposerID:       in.ProposerID,
		ReceiverID:       in.ReceiverID,
		OfferedItemIDs:   in.OfferedItemIDs,
		RequestedItemIDs: in.RequestedItemIDs,
		Status:           domain.StatusPending,
		Message:          in.Message,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.offers.Create(ctx, offer); err != nil {
		return nil, fmt.Errorf("persist offer: %w", err)
	}
	metrics.OffersCreated.Inc()

	s.notify(ctx, offer.ReceiverID, domain.NotificationTradeOfferReceived,
		"New trade offer", "You have received a new trade offer", &offer.ProposerID)

	return offer, nil
}

// UpdateStatus applies one transition of the offer state machine. On
// acceptance it also creates a chat room for the parties; whether a chat
// failure blocks the transition is policy (Config.ChatRequired).
func (s *Service) UpdateStatus(ctx context.Context, offerID uuid.UUID, next domain.OfferStatus) (*domain.TradeOffer, error) {
	if !next.Valid() || next == domain.StatusPending {
		return nil, fmt.Errorf("status %q: %w", next, domain.ErrInvalidRequest)
	}

	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if !offer.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("cannot transition from %s to %s: %w",
			offer.Status, next, domain.ErrInvalidState)
	}

	if next == domain.StatusAccepted && s.chat != nil {
		roomCtx := "trade:" + offer.ID.String()
		roomID, err := s.chat.CreateChatRoom(ctx, offer.ProposerID, offer.ReceiverID, roomCtx)
		if err != nil {
			if s.cfg.ChatRequired {
				return nil, err
			}
			s.log.Warn("chat room creation failed, accepting offer anyway",
				"offer_id", offer.ID, "error", err)
		} else {
			s.log.Info("chat room created for accepted offer",
				"offer_id", offer.ID, "room_id", roomID)
		}
	}

	// Compare-and-swap against the status this transition was validated
	// on; a concurrent transition surfaces as ErrInvalidState.
	if err := s.offers.UpdateStatus(ctx, offer.ID, offer.Status, next); err != nil {
		return nil, err
	}
	offer.Status = next
	offer.UpdatedAt = time.Now().UTC()
	metrics.OfferTransitions.WithLabelValues(string(next)).Inc()

	switch next {
	case domain.StatusAccepted:
		s.notify(ctx, offer.ProposerID, domain.NotificationTradeOfferAccepted,
			"Trade offer accepted", "Your trade offer was accepted", &offer.ReceiverID)
	case domain.StatusRejected:
		s.notify(ctx, offer.ProposerID, domain.NotificationTradeOfferRejected,
			"Trade offer rejected", "Your trade offer was rejected", &offer.ReceiverID)
	case domain.StatusCompleted:
		s.notify(ctx, offer.ProposerID, domain.NotificationTradeCompleted,
			"Trade completed", "Your trade has been completed", &offer.ReceiverID)
		s.notify(ctx, offer.ReceiverID, domain.NotificationTradeCompleted,
			"Trade completed", "Your trade has been completed", &offer.ProposerID)
	}

	return offer, nil
}

// GetOffer returns one offer by id.
func (s *Service) GetOffer(ctx context.Context, offerID uuid.UUID) (*domain.TradeOffer, error) {
	return s.offers.GetByID(ctx, offerID)
}

// ListOffers returns offers where the user is proposer or receiver.
func (s *Service) ListOffers(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.TradeOffer, error) {
	return s.offers.ListByUser(ctx, userID, limit)
}

// notify publishes fire-and-forget: a broker failure is logged and must
// never fail the business operation that triggered it.
func (s *Service) notify(ctx context.Context, userID uuid.UUID, typ domain.NotificationType, title, body string, related *uuid.UUID) {
	event := &domain.NotificationEvent{
		ID:            uuid.New(),
		UserID:        userID,
		Type:          typ,
		Title:         title,
		Body:          body,
		RelatedUserID: related,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Error("publishing notification failed",
			"type", typ, "user_id", userID, "error", err)
	}
}

func checkItems(byID map[uuid.UUID]domain.ValidationResult, itemIDs []uuid.UUID, wantOwner uuid.UUID) error {
	for _, id := range itemIDs {
		r, ok := byID[id]
		if !ok || !r.Exists {
			return fmt.Errorf("item %s: %w", id, domain.ErrNotFound)
		}
		if !r.IsActive {
			return fmt.Errorf("item %s is not active: %w", id, domain.ErrInvalidState)
		}
		if r.OwnerID != wantOwner {
			return fmt.Errorf("item %s is not owned by %s: %w", id, wantOwner, domain.ErrForbidden)
		}
	}
	return nil
}

func unionIDs(a, b []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(a)+len(b))
	union := make([]uuid.UUID, 0, len(a)+len(b))
	for _, id := range append(append([]uuid.UUID{}, a...), b...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		union = append(union, id)
	}
	return union
}
