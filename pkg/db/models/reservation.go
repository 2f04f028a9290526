package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lfgraphics/khadimemillat-backend/pkg/enums"
)

// Reservation is a time-boxed claim on item quantity for one buyer.
// A held reservation transitions exactly once, to consumed, released or
// expired; it never returns to held.
type Reservation struct {
	ID             uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	ItemID         uuid.UUID               `gorm:"column:item_id;type:uuid;not null;index:idx_reservations_item_status"`
	BuyerID        uuid.UUID               `gorm:"column:buyer_id;type:uuid;not null"`
	Quantity       int                     `gorm:"column:quantity;not null"`
	AmountPaise    int64                   `gorm:"column:amount_paise;not null"`
	Status         enums.ReservationStatus `gorm:"column:status;type:reservation_status;not null;default:'held';index:idx_reservations_item_status"`
	ConversationID *uuid.UUID              `gorm:"column:conversation_id;type:uuid"`
	CreatedAt      time.Time               `gorm:"column:created_at;autoCreateTime"`
	ExpiresAt      time.Time               `gorm:"column:expires_at;not null;index"`
	ReleasedAt     *time.Time              `gorm:"column:released_at"`
	ConsumedAt     *time.Time              `gorm:"column:consumed_at"`
}
