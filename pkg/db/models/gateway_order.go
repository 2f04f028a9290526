package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lfgraphics/khadimemillat-backend/pkg/enums"
)

// GatewayOrder mirrors the external payment gateway's order locally.
// One order per reservation; verified exactly once, in the same
// transaction that consumes the reservation.
type GatewayOrder struct {
	ID             uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	GatewayOrderID string                   `gorm:"column:gateway_order_id;not null;unique"`
	ReservationID  uuid.UUID                `gorm:"column:reservation_id;type:uuid;not null;unique"`
	AmountPaise    int64                    `gorm:"column:amount_paise;not null"`
	Currency       enums.Currency           `gorm:"column:currency;not null;default:'INR'"`
	Status         enums.GatewayOrderStatus `gorm:"column:status;type:gateway_order_status;not null;default:'created'"`
	PaymentID      *string                  `gorm:"column:payment_id"`
	CreatedAt      time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
