package conversations

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lfgraphics/khadimemillat-backend/pkg/db/models"
	"github.com/lfgraphics/khadimemillat-backend/pkg/enums"
	pkgerrors "github.com/lfgraphics/khadimemillat-backend/pkg/errors"
)

// Repository persists payment markers inside conversation transcripts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, marker *models.ConversationMessage) error
	FindPayableRequest(ctx context.Context, conversationID uuid.UUID) (*models.ConversationMessage, error)
	ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]models.ConversationMessage, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.PaymentMarkerStatus) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a conversation marker repository.
func NewRepository(db *gorm.DB) Repository {
	if db == nil {
		return nil
	}
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, marker *models.ConversationMessage) error {
	if marker == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "marker required")
	}
	return r.db.WithContext(ctx).Create(marker).Error
}

func (r *repository) FindPayableRequest(ctx context.Context, conversationID uuid.UUID) (*models.ConversationMessage, error) {
	if conversationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "conversation id required")
	}
	var marker models.ConversationMessage
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND kind = ? AND status = ?",
			conversationID, enums.PaymentMarkerRequest, enums.PaymentMarkerStatusPayable).
		First(&marker).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &marker, nil
}

func (r *repository) ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]models.ConversationMessage, error) {
	if conversationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "conversation id required")
	}
	var rows []models.ConversationMessage
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

// UpdateStatus flips a marker status with a guard on the current value.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.PaymentMarkerStatus) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.ConversationMessage{}).
		Where("id = ? AND status = ?", id, from).
		UpdateColumn("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
