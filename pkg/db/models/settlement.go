package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lfgraphics/khadimemillat-backend/pkg/enums"
)

// Settlement is the permanent record of a completed sale. Rows are
// append-only; finance and audit reporting read them directly.
type Settlement struct {
	ID            uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	ItemID        uuid.UUID               `gorm:"column:item_id;type:uuid;not null;index"`
	ReservationID uuid.UUID               `gorm:"column:reservation_id;type:uuid;not null;unique"`
	BuyerID       uuid.UUID               `gorm:"column:buyer_id;type:uuid;not null"`
	Quantity      int                     `gorm:"column:quantity;not null"`
	AmountPaise   int64                   `gorm:"column:amount_paise;not null"`
	Channel       enums.SettlementChannel `gorm:"column:channel;type:settlement_channel;not null;default:'direct'"`
	PaidAt        time.Time               `gorm:"column:paid_at;not null"`
	CreatedAt     time.Time               `gorm:"column:created_at;autoCreateTime"`
}
