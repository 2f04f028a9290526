package models

import (
	"time"

	"github.com/google/uuid"
)

// Item is a sellable unit of donated merchandise. Availability only moves
// through reservation/settlement transactions, never by direct writes.
type Item struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Title            string    `gorm:"column:title;not null"`
	TotalQty         int       `gorm:"column:total_qty;not null;default:0"`
	AvailableQty     int       `gorm:"column:available_qty;not null;default:0"`
	ListedPricePaise *int64    `gorm:"column:listed_price_paise"`
	Listed           bool      `gorm:"column:listed;not null;default:true"`
	Sold             bool      `gorm:"column:sold;not null;default:false"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
