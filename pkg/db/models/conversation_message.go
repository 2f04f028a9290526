package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lfgraphics/khadimemillat-backend/pkg/enums"
)

// ConversationMessage is a payment marker posted into a chat transcript.
// The chat rendering layer consumes these rows; the engine only writes them.
// At most one payable payment-request marker exists per conversation.
type ConversationMessage struct {
	ID             uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	ConversationID uuid.UUID                 `gorm:"column:conversation_id;type:uuid;not null;index:idx_conversation_markers"`
	ItemID         uuid.UUID                 `gorm:"column:item_id;type:uuid;not null"`
	ReservationID  *uuid.UUID                `gorm:"column:reservation_id;type:uuid"`
	Kind           enums.PaymentMarkerKind   `gorm:"column:kind;type:payment_marker_kind;not null"`
	Status         enums.PaymentMarkerStatus `gorm:"column:status;type:payment_marker_status;not null;default:'payable';index:idx_conversation_markers"`
	AmountPaise    int64                     `gorm:"column:amount_paise;not null"`
	CreatedAt      time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}
