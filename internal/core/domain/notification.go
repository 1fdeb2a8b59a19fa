package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType classifies a notification event.
type NotificationType string

const (
	NotificationTradeOfferReceived NotificationType = "trade_offer_received"
	NotificationTradeOfferAccepted NotificationType = "trade_offer_accepted"
	NotificationTradeOfferRejected NotificationType = "trade_offer_rejected"
	NotificationTradeCompleted     NotificationType = "trade_completed"
	NotificationNewMessage         NotificationType = "new_message"
	NotificationItemLiked          NotificationType = "item_liked"
	NotificationSystem             NotificationType = "system"
)

// NotificationEvent is the payload carried through the broker queue.
// The ID doubles as an idempotency key on the consumer side; delivery
// is at-least-once, so the same event may arrive more than once.
type NotificationEvent struct {
	ID            uuid.UUID        `json:"id"`
	UserID        uuid.UUID        `json:"user_id"`
	Type          NotificationType `json:"type"`
	Title         string           `json:"title"`
	Body          string           `json:"body"`
	RelatedUserID *uuid.UUID       `json:"related_user_id,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}
