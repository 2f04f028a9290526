package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/lfgraphics/khadimemillat-backend/pkg/enums"
)

// ReservationAcquiredEvent signals stock moving into a hold.
type ReservationAcquiredEvent struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	ItemID        uuid.UUID `json:"item_id"`
	BuyerID       uuid.UUID `json:"buyer_id"`
	Quantity      int       `json:"quantity"`
	AmountPaise   int64     `json:"amount_paise"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// ReservationReleasedEvent is emitted when a hold returns its stock.
type ReservationReleasedEvent struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	ItemID        uuid.UUID `json:"item_id"`
	Quantity      int       `json:"quantity"`
	ReleasedAt    time.Time `json:"released_at"`
}

// ReservationExpiredEvent is emitted by the sweep or a lazy expiry check.
type ReservationExpiredEvent struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	ItemID        uuid.UUID `json:"item_id"`
	Quantity      int       `json:"quantity"`
	ExpiredAt     time.Time `json:"expired_at"`
}

// SettlementRecordedEvent surfaces a verified payment tied to a consumed hold.
type SettlementRecordedEvent struct {
	SettlementID   uuid.UUID               `json:"settlement_id"`
	ReservationID  uuid.UUID               `json:"reservation_id"`
	ItemID         uuid.UUID               `json:"item_id"`
	BuyerID        uuid.UUID               `json:"buyer_id"`
	GatewayOrderID string                  `json:"gateway_order_id"`
	AmountPaise    int64                   `json:"amount_paise"`
	Channel        enums.SettlementChannel `json:"channel"`
	PaidAt         time.Time               `json:"paid_at"`
}

// ItemSoldOutEvent signals available stock reaching zero after a settlement.
type ItemSoldOutEvent struct {
	ItemID uuid.UUID `json:"item_id"`
	SoldAt time.Time `json:"sold_at"`
}

// PaymentRequestPostedEvent mirrors a payable marker attached to a conversation.
type PaymentRequestPostedEvent struct {
	ConversationID uuid.UUID  `json:"conversation_id"`
	MessageID      uuid.UUID  `json:"message_id"`
	ReservationID  uuid.UUID  `json:"reservation_id"`
	AmountPaise    int64      `json:"amount_paise"`
	SupersededID   *uuid.UUID `json:"superseded_id,omitempty"`
}

// PaymentCompletedPostedEvent mirrors the completion marker after settlement.
type PaymentCompletedPostedEvent struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	MessageID      uuid.UUID `json:"message_id"`
	SettlementID   uuid.UUID `json:"settlement_id"`
	AmountPaise    int64     `json:"amount_paise"`
	PaidAt         time.Time `json:"paid_at"`
}
