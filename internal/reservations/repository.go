package reservations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lfgraphics/khadimemillat-backend/pkg/db/models"
	"github.com/lfgraphics/khadimemillat-backend/pkg/enums"
	pkgerrors "github.com/lfgraphics/khadimemillat-backend/pkg/errors"
)

// Repository persists reservations and their single-shot status transitions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, reservation *models.Reservation) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID, limit, offset int) ([]models.Reservation, error)
	ListExpiredHeld(ctx context.Context, cutoff time.Time, limit int) ([]models.Reservation, error)
	ListHeldByItemConversation(ctx context.Context, itemID, conversationID uuid.UUID) ([]models.Reservation, error)
	Transition(ctx context.Context, id uuid.UUID, from, to enums.ReservationStatus, at time.Time) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a reservation repository backed by the provided DB handle.
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

func (r *repository) Create(ctx context.Context, reservation *models.Reservation) error {
	if reservation == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "reservation required")
	}
	return r.db.WithContext(ctx).Create(reservation).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation id required")
	}
	var reservation models.Reservation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&reservation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
		}
		return nil, err
	}
	return &reservation, nil
}

func (r *repository) ListByBuyer(ctx context.Context, buyerID uuid.UUID, limit, offset int) ([]models.Reservation, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var rows []models.Reservation
	err := r.db.WithContext(ctx).
		Where("buyer_id = ?", buyerID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListExpiredHeld(ctx context.Context, cutoff time.Time, limit int) ([]models.Reservation, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.Reservation
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", enums.ReservationStatusHeld, cutoff).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListHeldByItemConversation(ctx context.Context, itemID, conversationID uuid.UUID) ([]models.Reservation, error) {
	if itemID == uuid.Nil || conversationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id and conversation id required")
	}
	var rows []models.Reservation
	err := r.db.WithContext(ctx).
		Where("item_id = ? AND conversation_id = ? AND status = ?", itemID, conversationID, enums.ReservationStatusHeld).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

// Transition flips the status with a guarded UPDATE. The WHERE clause on the
// current status makes the transition single-shot; a false return means
// another writer got there first.
func (r *repository) Transition(ctx context.Context, id uuid.UUID, from, to enums.ReservationStatus, at time.Time) (bool, error) {
	if !from.IsValid() || !to.IsValid() {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "invalid reservation status")
	}
	updates := map[string]any{"status": to}
	switch to {
	case enums.ReservationStatusConsumed:
		updates["consumed_at"] = at
	case enums.ReservationStatusReleased, enums.ReservationStatusExpired:
		updates["released_at"] = at
	}
	result := r.db.WithContext(ctx).Model(&models.Reservation{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
