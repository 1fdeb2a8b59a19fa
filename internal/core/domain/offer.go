package domain

import (
	"time"

	"github.com/google/uuid"
)

// OfferStatus is the lifecycle state of a trade offer.
type OfferStatus string

const (
	StatusPending   OfferStatus = "pending"
	StatusAccepted  OfferStatus = "accepted"
	StatusRejected  OfferStatus = "rejected"
	StatusCancelled OfferStatus = "cancelled"
	StatusCompleted OfferStatus = "completed"
)

// transitions holds the allowed status transitions. Everything else is terminal.
var transitions = map[OfferStatus][]OfferStatus{
	StatusPending:  {StatusAccepted, StatusRejected, StatusCancelled},
	StatusAccepted: {StatusCompleted},
}

// Valid reports whether s is a known offer status.
func (s OfferStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// CanTransitionTo reports whether the state machine allows moving from s to next.
func (s OfferStatus) CanTransitionTo(next OfferStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TradeOffer is a proposed exchange of items between two users.
// Immutable once completed, rejected or cancelled.
type TradeOffer struct {
	ID               uuid.UUID   `json:"id"`
	ProposerID       uuid.UUID   `json:"proposer_id"`
	ReceiverID       uuid.UUID   `json:"receiver_id"`
	OfferedItemIDs   []uuid.UUID `json:"offered_item_ids"`
	RequestedItemIDs []uuid.UUID `json:"requested_item_ids"`
	Status           OfferStatus `json:"status"`
	Message          string      `json:"message,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// ValidationResult is the catalog's verdict on a single item.
// Produced per validation call, never persisted.
type ValidationResult struct {
	ItemID   uuid.UUID `json:"item_id"`
	Exists   bool      `json:"exists"`
	IsActive bool      `json:"is_active"`
	OwnerID  uuid.UUID `json:"owner_id"`
}
